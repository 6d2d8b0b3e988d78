package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os/exec"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries     = 3
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
)

// EngineConfig controls the speech-recognition subprocess.
type EngineConfig struct {
	// BinPath is the whisper CLI binary or wrapper script.
	BinPath string
	// Model is the model size passed to the CLI (tiny, base, small, ...).
	Model string
	// Language forces a recognition language; empty means auto-detect.
	Language string
	// Timeout bounds a single recognition run.
	Timeout time.Duration
}

func (c *EngineConfig) applyDefaults() {
	if c.BinPath == "" {
		c.BinPath = "whisperx"
	}
	if c.Model == "" {
		c.Model = "base"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
}

// Engine runs the whisper CLI over an audio file and parses the segments it
// emits as JSON.
type Engine struct {
	config      EngineConfig
	logger      *logrus.Logger
	backoffBase time.Duration

	// runCommand is swapped out in tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewEngine(cfg EngineConfig) *Engine {
	cfg.applyDefaults()
	return &Engine{
		config:      cfg,
		logger:      logrus.StandardLogger(),
		backoffBase: initialBackoff,
		runCommand:  runCombined,
	}
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// Transcribe recognizes speech in audioPath. Transient subprocess failures
// are retried with exponential backoff and jitter; the parsed segments of the
// first successful run are returned.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	logger := e.logger.WithFields(logrus.Fields{
		"audio": audioPath,
		"model": e.config.Model,
	})
	logger.Info("Starting speech recognition")

	output, err := e.runWithRetry(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	segments, err := parseSegments(output)
	if err != nil {
		return nil, err
	}

	logger.WithField("segments", len(segments)).Info("Speech recognition complete")
	return segments, nil
}

func (e *Engine) runWithRetry(ctx context.Context, audioPath string) ([]byte, error) {
	logger := e.logger.WithField("audio", audioPath)

	var (
		output []byte
		err    error
	)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		output, err = e.runCommand(runCtx, e.config.BinPath, e.buildArgs(audioPath)...)
		cancel()
		if err == nil {
			return output, nil
		}

		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Recognition attempt failed")

		if attempt == maxRetries {
			break
		}

		backoff := time.Duration(float64(e.backoffBase) * math.Pow(backoffFactor, float64(attempt-1)))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		if half := backoff / 2; half > 0 {
			backoff += time.Duration(rand.Int63n(int64(half)))
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "cancelled during retry backoff")
		}
	}

	return nil, errors.Errorf("recognition failed after %d attempts: %v, output: %s",
		maxRetries, err, output)
}

func (e *Engine) buildArgs(audioPath string) []string {
	args := []string{
		audioPath,
		"--model", e.config.Model,
		"--output_format", "json",
	}
	if e.config.Language != "" {
		args = append(args, "--language", e.config.Language)
	}
	return args
}

var jsonPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseSegments extracts the last JSON object from mixed CLI output and reads
// its segments. The CLI writes progress lines before the payload.
func parseSegments(output []byte) ([]Segment, error) {
	matches := jsonPattern.FindAll(output, -1)
	if len(matches) == 0 {
		return nil, errors.New("no JSON found in recognition output")
	}

	var payload struct {
		Segments []Segment `json:"segments"`
		Language string    `json:"language"`
	}
	if err := json.Unmarshal(matches[len(matches)-1], &payload); err != nil {
		return nil, errors.Wrap(err, "parsing recognition output")
	}
	if len(payload.Segments) == 0 {
		return nil, fmt.Errorf("recognition produced no segments")
	}
	return payload.Segments, nil
}
