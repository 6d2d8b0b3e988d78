package transcription

import (
	"context"
	"errors"
	"testing"
	"time"
)

const sampleOutput = `Loading model base on cpu...
Detected language: en
{"segments": [{"start": 0.0, "end": 2.5, "text": " Hello there."}, {"start": 2.5, "end": 5.0, "text": "General greeting."}], "language": "en"}`

func TestParseSegments(t *testing.T) {
	segments, err := parseSegments([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("parseSegments() error = %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("parseSegments() returned %d segments, want 2", len(segments))
	}
	if segments[0].Text != " Hello there." || segments[1].End != 5.0 {
		t.Errorf("unexpected segments: %+v", segments)
	}
}

func TestParseSegmentsNoJSON(t *testing.T) {
	if _, err := parseSegments([]byte("progress 50%\nprogress 100%\n")); err == nil {
		t.Error("parseSegments() succeeded on output without JSON")
	}
}

func TestParseSegmentsEmptySegments(t *testing.T) {
	if _, err := parseSegments([]byte(`{"segments": [], "language": "en"}`)); err == nil {
		t.Error("parseSegments() succeeded on empty segment list")
	}
}

func TestTranscribeParsesCommandOutput(t *testing.T) {
	e := NewEngine(EngineConfig{Model: "base"})

	var gotArgs []string
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(sampleOutput), nil
	}

	segments, err := e.Transcribe(context.Background(), "/tmp/audio.mp3")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(segments) != 2 {
		t.Errorf("Transcribe() returned %d segments, want 2", len(segments))
	}
	if gotArgs[0] != "whisperx" || gotArgs[1] != "/tmp/audio.mp3" {
		t.Errorf("unexpected command: %v", gotArgs)
	}
}

func TestTranscribeRetriesThenFails(t *testing.T) {
	e := NewEngine(EngineConfig{Model: "base"})
	e.backoffBase = time.Millisecond

	calls := 0
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		return []byte("boom"), errors.New("exit status 1")
	}

	if _, err := e.Transcribe(context.Background(), "/tmp/audio.mp3"); err == nil {
		t.Fatal("Transcribe() succeeded, want failure")
	}
	if calls != maxRetries {
		t.Errorf("command run %d times, want %d", calls, maxRetries)
	}
}

func TestTranscribeLanguageFlag(t *testing.T) {
	e := NewEngine(EngineConfig{Model: "base", Language: "en"})

	var gotArgs []string
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(sampleOutput), nil
	}

	if _, err := e.Transcribe(context.Background(), "a.mp3"); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	found := false
	for i, a := range gotArgs {
		if a == "--language" && i+1 < len(gotArgs) && gotArgs[i+1] == "en" {
			found = true
		}
	}
	if !found {
		t.Errorf("args missing language flag: %v", gotArgs)
	}
}
