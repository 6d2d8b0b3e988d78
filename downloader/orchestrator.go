package downloader

import (
	"context"
	"fmt"

	"tubetext/proxy"

	"github.com/sirupsen/logrus"
)

// ProxyPool is the pool surface the orchestrator drives.
type ProxyPool interface {
	ShouldRefresh() bool
	Refresh(ctx context.Context)
	Next() (proxy.Proxy, bool)
	Evict(p proxy.Proxy)
}

// FileStore locates produced artifacts and provides the templated output path
// for new downloads.
type FileStore interface {
	FindMedia(videoID string, audioOnly bool) (name string, size int64, ok bool)
	OutputTemplate(videoID string) string
}

// ProgressFunc receives advisory status updates; it never affects control
// flow.
type ProgressFunc func(status string, percent int)

// Request is one logical download.
type Request struct {
	URL       string
	VideoID   string
	AudioOnly bool
	Progress  ProgressFunc
}

// Result is a successful download outcome.
type Result struct {
	Cached     bool
	Title      string
	Duration   float64
	Uploader   string
	ViewCount  int64
	UploadDate string
	FileName   string
	FileSize   int64
}

// Orchestrator drives a download request across proxy choice, client
// strategies, and the one-time cookie-escalation retry.
type Orchestrator struct {
	runner      Runner
	pool        ProxyPool
	store       FileStore
	cookiesFile string
	logger      *logrus.Logger
}

func NewOrchestrator(runner Runner, pool ProxyPool, store FileStore, cookiesFile string) *Orchestrator {
	return &Orchestrator{
		runner:      runner,
		pool:        pool,
		store:       store,
		cookiesFile: cookiesFile,
		logger:      logrus.StandardLogger(),
	}
}

// Download runs one request to a terminal outcome. Failures come back as
// *ToolError values carrying the raw tool output and a kind tag; the caller
// owns any re-enqueue policy.
func (o *Orchestrator) Download(ctx context.Context, req Request) (*Result, error) {
	logger := o.logger.WithFields(logrus.Fields{
		"video_id":   req.VideoID,
		"audio_only": req.AudioOnly,
	})

	// Idempotence: an existing artifact short-circuits everything.
	if name, size, ok := o.store.FindMedia(req.VideoID, req.AudioOnly); ok {
		logger.WithField("file", name).Info("Artifact already present, skipping download")
		report(req.Progress, "Found locally, skipping download", 100)
		result := o.newResult(ctx, req.URL, name, size)
		result.Cached = true
		return result, nil
	}

	if req.AudioOnly {
		if err := o.runner.CheckFFmpeg(ctx); err != nil {
			return nil, err
		}
	}

	report(req.Progress, "Starting download...", 0)

	// Prime the pool synchronously when empty so even the first attempt can
	// go through a proxy. No proxy at all is an accepted mode.
	if o.pool.ShouldRefresh() {
		o.pool.Refresh(ctx)
	}

	current, hasProxy, proxyURL := o.acquireProxy(logger)

	cookiesValid := CookiesPresent(o.cookiesFile) && ValidCookiesFile(o.cookiesFile)

	cookieArg := ""
	if cookiesValid {
		cookieArg = o.cookiesFile
	}

	report(req.Progress, "Downloading (trying all clients)...", 5)
	err := o.sweep(ctx, req, ClientOrder(cookiesValid), cookieArg, proxyURL)

	// A single cookie-enabled second sweep, only for auth-class failures and
	// only when the first sweep ran without cookies.
	if err != nil && !cookiesValid && IsAuthError(errText(err)) && CookiesPresent(o.cookiesFile) {
		logger.WithField("error", errText(err)).Info("Authentication failure, retrying with cookies")
		report(req.Progress, "Retrying download with cookies...", 10)
		err = o.sweep(ctx, req, ClientOrder(true), o.cookiesFile, proxyURL)
	}

	if err != nil {
		if hasProxy && IsProxyError(errText(err)) {
			logger.WithField("proxy", current.Addr()).Info("Evicting proxy after connection failure")
			o.pool.Evict(current)
		}
		return nil, finalError(err)
	}

	name, size, ok := o.store.FindMedia(req.VideoID, req.AudioOnly)
	if !ok {
		return nil, newToolError(KindToolError,
			"file not found after download for id %s", req.VideoID)
	}

	report(req.Progress, "Download complete", 90)
	return o.newResult(ctx, req.URL, name, size), nil
}

// sweep tries every client in order with a fixed proxy and cookie mode,
// stopping at the first success. Attempts are strictly sequential; they share
// the output path.
func (o *Orchestrator) sweep(ctx context.Context, req Request, clients []PlayerClient, cookiesFile, proxyURL string) error {
	var lastErr error

	for i, client := range clients {
		if ctx.Err() != nil {
			return newToolError(KindTimeout, "download cancelled: %v", ctx.Err())
		}

		report(req.Progress,
			fmt.Sprintf("Trying client %s...", client),
			5+(85*i)/len(clients))

		err := o.runner.Download(ctx, Invocation{
			URL:            req.URL,
			OutputTemplate: o.store.OutputTemplate(req.VideoID),
			AudioOnly:      req.AudioOnly,
			Proxy:          proxyURL,
			CookiesFile:    cookiesFile,
			Client:         client,
		})
		if err == nil {
			o.logger.WithField("client", client).Info("Download succeeded")
			return nil
		}

		lastErr = err
		o.logger.WithFields(logrus.Fields{
			"client": client,
			"error":  truncate(errText(err), 200),
		}).Warn("Client attempt failed")
	}

	return lastErr
}

func (o *Orchestrator) acquireProxy(logger *logrus.Entry) (proxy.Proxy, bool, string) {
	current, ok := o.pool.Next()
	if !ok {
		logger.Info("No working proxies, downloading directly")
		return proxy.Proxy{}, false, ""
	}
	logger.WithFields(logrus.Fields{
		"proxy":   current.Addr(),
		"country": current.Country,
	}).Info("Using proxy")
	return current, true, current.URL()
}

// newResult resolves metadata for a produced or cached artifact. Probe
// failures degrade to placeholder metadata rather than failing the request.
func (o *Orchestrator) newResult(ctx context.Context, url, name string, size int64) *Result {
	result := &Result{
		Title:    "Unknown",
		FileName: name,
		FileSize: size,
	}

	info, err := o.runner.Probe(ctx, url)
	if err != nil {
		o.logger.WithError(err).Warn("Metadata probe failed, using placeholders")
		return result
	}

	result.Title = info.Title
	result.Duration = info.Duration
	result.Uploader = info.Uploader
	result.ViewCount = info.ViewCount
	result.UploadDate = info.UploadDate
	return result
}

// finalError normalizes a sweep failure into the terminal kind tag, keeping
// the raw output.
func finalError(err error) error {
	te, ok := err.(*ToolError)
	if !ok {
		return &ToolError{Kind: KindAllClientsFailed, Output: err.Error()}
	}
	switch te.Kind {
	case KindTimeout, KindFFmpegNotFound:
		return te
	default:
		return &ToolError{
			Kind:   KindAllClientsFailed,
			Output: fmt.Sprintf("all clients failed; last error: %s", te.Output),
		}
	}
}

func errText(err error) string {
	if te, ok := err.(*ToolError); ok {
		return te.Output
	}
	return err.Error()
}

func report(fn ProgressFunc, status string, percent int) {
	if fn != nil {
		fn(status, percent)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
