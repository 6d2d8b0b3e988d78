package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Invocation is one download attempt handed to the external tool: a single
// (url, proxy, cookie-mode, client) combination.
type Invocation struct {
	URL            string
	OutputTemplate string // output path with a %(ext)s placeholder
	AudioOnly      bool
	Proxy          string // proxy URL, or empty for a direct attempt
	CookiesFile    string // Netscape cookie jar path, or empty
	Client         PlayerClient
}

// VideoInfo is the metadata probe result.
type VideoInfo struct {
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	ViewCount  int64   `json:"view_count"`
	UploadDate string  `json:"upload_date"`
}

// Runner invokes the external downloader tool.
type Runner interface {
	Download(ctx context.Context, inv Invocation) error
	Probe(ctx context.Context, url string) (VideoInfo, error)
	CheckFFmpeg(ctx context.Context) error
}

// RunnerConfig holds the yt-dlp invocation settings.
type RunnerConfig struct {
	BinPath      string // explicit yt-dlp path; discovered when empty
	Timeout      time.Duration
	ProbeTimeout time.Duration
	MaxHeight    int
	AudioQuality string
}

type commandRunner struct {
	config RunnerConfig
	logger *logrus.Logger

	binOnce sync.Once
	bin     string
	binErr  error
}

func NewRunner(cfg RunnerConfig) Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 720
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "192K"
	}
	return &commandRunner{
		config: cfg,
		logger: logrus.StandardLogger(),
	}
}

var ytdlpCandidates = []string{
	"/usr/local/bin/yt-dlp",
	"/usr/bin/yt-dlp",
	"yt-dlp",
}

func (r *commandRunner) binary() (string, error) {
	r.binOnce.Do(func() {
		candidates := ytdlpCandidates
		if r.config.BinPath != "" {
			candidates = append([]string{r.config.BinPath}, candidates...)
		}
		for _, candidate := range candidates {
			if path, err := exec.LookPath(candidate); err == nil {
				r.bin = path
				return
			}
		}
		r.binErr = fmt.Errorf("yt-dlp binary not found")
	})
	return r.bin, r.binErr
}

func (r *commandRunner) Download(ctx context.Context, inv Invocation) error {
	bin, err := r.binary()
	if err != nil {
		return newToolError(KindToolError, "%v", err)
	}

	args := []string{
		"--extractor-args", fmt.Sprintf("youtube:player_client=%s,no_sabr=1", inv.Client),
		"--no-warnings",
		"--quiet",
	}

	if inv.Proxy != "" {
		args = append(args, "--proxy", inv.Proxy)
	}

	if inv.CookiesFile != "" {
		args = append(args, "--cookies", inv.CookiesFile)
		if !ValidCookiesFile(inv.CookiesFile) {
			r.logger.WithField("path", inv.CookiesFile).
				Warn("Cookies file is not valid Netscape format, passing it anyway")
		}
	}

	if inv.AudioOnly {
		args = append(args,
			"-f", "bestaudio",
			"-x", "--audio-format", "mp3",
			"--audio-quality", r.config.AudioQuality,
		)
	} else {
		args = append(args, "-f", fmt.Sprintf("best[height<=%d]", r.config.MaxHeight))
	}

	args = append(args, "-o", inv.OutputTemplate, inv.URL)

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.WithFields(logrus.Fields{
		"client":     inv.Client,
		"proxy":      inv.Proxy != "",
		"cookies":    inv.CookiesFile != "",
		"audio_only": inv.AudioOnly,
	}).Debug("Invoking yt-dlp")

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return newToolError(KindTimeout, "download timed out after %s", r.config.Timeout)
		}

		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		if output == "" {
			output = err.Error()
		}
		return &ToolError{Kind: KindToolError, Output: output}
	}

	return nil
}

func (r *commandRunner) Probe(ctx context.Context, url string) (VideoInfo, error) {
	var info VideoInfo

	bin, err := r.binary()
	if err != nil {
		return info, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"--dump-json",
		"--skip-download",
		"--quiet",
		"--no-warnings",
		url,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return info, fmt.Errorf("probe failed: %v (stderr: %s)", err, stderr.String())
	}

	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return info, fmt.Errorf("failed to parse probe output: %w", err)
	}

	return info, nil
}

// CheckFFmpeg verifies the ffmpeg binary needed for mp3 conversion is
// reachable.
func (r *commandRunner) CheckFFmpeg(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, "ffmpeg", "-version").Run(); err != nil {
		return newToolError(KindFFmpegNotFound,
			"ffmpeg not found; install ffmpeg to convert audio to mp3")
	}
	return nil
}
