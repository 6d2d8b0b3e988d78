package transcription

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "00:00:00,000"},
		{"sub-second", 0.5, "00:00:00,500"},
		{"seconds only", 42.042, "00:00:42,042"},
		{"minutes", 125.9, "00:02:05,900"},
		{"hours", 3723.25, "01:02:03,250"},
		{"negative clamps to zero", -5, "00:00:00,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.seconds); got != tt.want {
				t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestRenderSRT(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2.5, Text: " Hello there. "},
		{Start: 2.5, End: 4, Text: ""},
		{Start: 4, End: 7.25, Text: "Second line."},
	}

	got := RenderSRT(segments)

	want := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n" +
		"\n" +
		"2\n00:00:04,000 --> 00:00:07,250\nSecond line.\n"
	if got != want {
		t.Errorf("RenderSRT() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderSRTEmpty(t *testing.T) {
	if got := RenderSRT(nil); got != "" {
		t.Errorf("RenderSRT(nil) = %q, want empty", got)
	}
}

func TestWriteSRT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	segments := []Segment{{Start: 1, End: 2, Text: "hi"}}

	if err := WriteSRT(segments, path); err != nil {
		t.Fatalf("WriteSRT() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "00:00:01,000 --> 00:00:02,000") {
		t.Errorf("written file missing timestamp line: %q", data)
	}
}
