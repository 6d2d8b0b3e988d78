package downloader

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"tubetext/proxy"
)

type fakeRunner struct {
	mu          sync.Mutex
	invocations []Invocation
	// download decides the outcome of each attempt; success should flip the
	// store's hasFile flag to mimic a produced artifact.
	download    func(inv Invocation) error
	probeInfo   VideoInfo
	probeErr    error
	ffmpegErr   error
}

func (r *fakeRunner) Download(ctx context.Context, inv Invocation) error {
	r.mu.Lock()
	r.invocations = append(r.invocations, inv)
	r.mu.Unlock()
	if r.download == nil {
		return nil
	}
	return r.download(inv)
}

func (r *fakeRunner) Probe(ctx context.Context, url string) (VideoInfo, error) {
	return r.probeInfo, r.probeErr
}

func (r *fakeRunner) CheckFFmpeg(ctx context.Context) error {
	return r.ffmpegErr
}

type fakeStore struct {
	mu      sync.Mutex
	hasFile bool
	name    string
	size    int64
}

func (s *fakeStore) FindMedia(videoID string, audioOnly bool) (string, int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFile {
		return "", 0, false
	}
	return s.name, s.size, true
}

func (s *fakeStore) OutputTemplate(videoID string) string {
	return "/tmp/assets/media/" + videoID + ".%(ext)s"
}

func (s *fakeStore) produce(name string, size int64) {
	s.mu.Lock()
	s.hasFile = true
	s.name = name
	s.size = size
	s.mu.Unlock()
}

type fakePool struct {
	mu           sync.Mutex
	proxies      []proxy.Proxy
	cursor       int
	evicted      []proxy.Proxy
	refreshCalls int
}

func (p *fakePool) ShouldRefresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies) == 0
}

func (p *fakePool) Refresh(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
}

func (p *fakePool) Next() (proxy.Proxy, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return proxy.Proxy{}, false
	}
	out := p.proxies[p.cursor%len(p.proxies)]
	p.cursor++
	return out, true
}

func (p *fakePool) Evict(victim proxy.Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evicted = append(p.evicted, victim)
}

func testRequest() Request {
	return Request{
		URL:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		VideoID: "dQw4w9WgXcQ",
	}
}

func TestDownloadCachedShortCircuit(t *testing.T) {
	runner := &fakeRunner{probeInfo: VideoInfo{Title: "Cached Video", Duration: 120}}
	store := &fakeStore{}
	store.produce("dQw4w9WgXcQ.mp4", 1024)
	pool := &fakePool{proxies: []proxy.Proxy{{Host: "10.0.0.1", Port: 8080}}}

	o := NewOrchestrator(runner, pool, store, filepath.Join(t.TempDir(), "cookies.txt"))

	result, err := o.Download(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !result.Cached {
		t.Error("result.Cached = false for existing artifact")
	}
	if result.FileName != "dQw4w9WgXcQ.mp4" || result.FileSize != 1024 {
		t.Errorf("result file = %s/%d, want cached artifact", result.FileName, result.FileSize)
	}
	if len(runner.invocations) != 0 {
		t.Errorf("downloader invoked %d times for cached artifact, want 0", len(runner.invocations))
	}
}

func TestDownloadFirstClientSucceeds(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{
		probeInfo: VideoInfo{Title: "A Video", Duration: 33},
	}
	runner.download = func(inv Invocation) error {
		store.produce("dQw4w9WgXcQ.mp4", 2048)
		return nil
	}
	pool := &fakePool{proxies: []proxy.Proxy{{Host: "10.0.0.1", Port: 8080}}}

	o := NewOrchestrator(runner, pool, store, filepath.Join(t.TempDir(), "cookies.txt"))

	result, err := o.Download(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.Cached {
		t.Error("result.Cached = true for fresh download")
	}
	if result.Title != "A Video" {
		t.Errorf("result.Title = %q, want probed title", result.Title)
	}
	if len(runner.invocations) != 1 {
		t.Errorf("downloader invoked %d times, want 1", len(runner.invocations))
	}
	if got := runner.invocations[0].Proxy; got != "http://10.0.0.1:8080" {
		t.Errorf("invocation proxy = %q, want pool proxy", got)
	}
}

func TestSweepFallsThroughClients(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		if len(runner.invocations) < 3 {
			return newToolError(KindToolError, "requested format not available")
		}
		store.produce("dQw4w9WgXcQ.mp4", 100)
		return nil
	}
	pool := &fakePool{}

	o := NewOrchestrator(runner, pool, store, filepath.Join(t.TempDir(), "cookies.txt"))

	if _, err := o.Download(context.Background(), testRequest()); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(runner.invocations) != 3 {
		t.Errorf("downloader invoked %d times, want 3", len(runner.invocations))
	}

	order := ClientOrder(false)
	for i, inv := range runner.invocations {
		if inv.Client != order[i] {
			t.Errorf("attempt %d used client %s, want %s", i, inv.Client, order[i])
		}
	}
}

func TestCookieEscalationOnAuthError(t *testing.T) {
	// Present but malformed jar: first sweep runs without cookies, the
	// escalation sweep still gets the file.
	cookiesPath := writeCookieFile(t, "malformed jar contents")

	store := &fakeStore{}
	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		if inv.CookiesFile == "" {
			return newToolError(KindToolError, "Please sign in to confirm you're not a bot")
		}
		store.produce("dQw4w9WgXcQ.mp4", 100)
		return nil
	}
	pool := &fakePool{}

	o := NewOrchestrator(runner, pool, store, cookiesPath)

	if _, err := o.Download(context.Background(), testRequest()); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	withoutCookies := len(ClientOrder(false))
	if len(runner.invocations) != withoutCookies+1 {
		t.Fatalf("downloader invoked %d times, want full sweep then one cookie attempt", len(runner.invocations))
	}
	for i := 0; i < withoutCookies; i++ {
		if runner.invocations[i].CookiesFile != "" {
			t.Errorf("first-sweep attempt %d used cookies", i)
		}
	}
	last := runner.invocations[withoutCookies]
	if last.CookiesFile != cookiesPath {
		t.Error("escalation attempt did not use the cookie jar")
	}
	if last.Client != ClientOrder(true)[0] {
		t.Errorf("escalation used client %s, want cookie-prioritized ordering", last.Client)
	}
}

func TestNoCookieEscalationOnGenericError(t *testing.T) {
	cookiesPath := writeCookieFile(t, "malformed jar contents")

	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		return newToolError(KindToolError, "HTTP 500 server error")
	}

	o := NewOrchestrator(runner, &fakePool{}, &fakeStore{}, cookiesPath)

	_, err := o.Download(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Download() succeeded, want failure")
	}
	if got := len(runner.invocations); got != len(ClientOrder(false)) {
		t.Errorf("downloader invoked %d times, want exactly one sweep", got)
	}
	if ErrKind(err) != KindAllClientsFailed {
		t.Errorf("error kind = %v, want %v", ErrKind(err), KindAllClientsFailed)
	}
}

func TestNoEscalationWhenCookiesAlreadyUsed(t *testing.T) {
	cookiesPath := writeCookieFile(t, validJar)

	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		return newToolError(KindToolError, "Please sign in to confirm you're not a bot")
	}

	o := NewOrchestrator(runner, &fakePool{}, &fakeStore{}, cookiesPath)

	_, err := o.Download(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Download() succeeded, want failure")
	}

	// Valid jar means the first sweep already had cookies on; no second sweep.
	if got := len(runner.invocations); got != len(ClientOrder(true)) {
		t.Errorf("downloader invoked %d times, want one cookie sweep", got)
	}
	for i, inv := range runner.invocations {
		if inv.CookiesFile != cookiesPath {
			t.Errorf("attempt %d missing cookies in cookie-first sweep", i)
		}
	}
}

func TestProxyEvictedOnConnectionError(t *testing.T) {
	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		return newToolError(KindToolError, "Unable to connect to proxy: connection refused")
	}
	pool := &fakePool{proxies: []proxy.Proxy{{Host: "10.0.0.1", Port: 8080}}}

	o := NewOrchestrator(runner, pool, &fakeStore{}, filepath.Join(t.TempDir(), "cookies.txt"))

	if _, err := o.Download(context.Background(), testRequest()); err == nil {
		t.Fatal("Download() succeeded, want failure")
	}
	if len(pool.evicted) != 1 || !pool.evicted[0].Same(pool.proxies[0]) {
		t.Errorf("evicted = %v, want the proxy used for the request", pool.evicted)
	}
}

func TestProxyKeptOnUnrelatedError(t *testing.T) {
	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		return newToolError(KindToolError, "video unavailable")
	}
	pool := &fakePool{proxies: []proxy.Proxy{{Host: "10.0.0.1", Port: 8080}}}

	o := NewOrchestrator(runner, pool, &fakeStore{}, filepath.Join(t.TempDir(), "cookies.txt"))

	if _, err := o.Download(context.Background(), testRequest()); err == nil {
		t.Fatal("Download() succeeded, want failure")
	}
	if len(pool.evicted) != 0 {
		t.Errorf("evicted = %v, want none for a non-proxy error", pool.evicted)
	}
}

func TestEmptyPoolRefreshedSynchronously(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		store.produce("dQw4w9WgXcQ.mp4", 100)
		return nil
	}
	pool := &fakePool{}

	o := NewOrchestrator(runner, pool, store, filepath.Join(t.TempDir(), "cookies.txt"))

	if _, err := o.Download(context.Background(), testRequest()); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if pool.refreshCalls != 1 {
		t.Errorf("refresh called %d times before first attempt, want 1", pool.refreshCalls)
	}
}

func TestTimeoutKindPreserved(t *testing.T) {
	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		return newToolError(KindTimeout, "download timed out after 10m0s")
	}

	o := NewOrchestrator(runner, &fakePool{}, &fakeStore{}, filepath.Join(t.TempDir(), "cookies.txt"))

	_, err := o.Download(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Download() succeeded, want timeout failure")
	}
	if ErrKind(err) != KindTimeout {
		t.Errorf("error kind = %v, want %v", ErrKind(err), KindTimeout)
	}
}

func TestAudioRequiresFFmpeg(t *testing.T) {
	runner := &fakeRunner{ffmpegErr: newToolError(KindFFmpegNotFound, "ffmpeg not found")}

	o := NewOrchestrator(runner, &fakePool{}, &fakeStore{}, filepath.Join(t.TempDir(), "cookies.txt"))

	req := testRequest()
	req.AudioOnly = true

	_, err := o.Download(context.Background(), req)
	if err == nil {
		t.Fatal("Download() succeeded without ffmpeg")
	}
	if ErrKind(err) != KindFFmpegNotFound {
		t.Errorf("error kind = %v, want %v", ErrKind(err), KindFFmpegNotFound)
	}
	if len(runner.invocations) != 0 {
		t.Errorf("downloader invoked %d times despite missing ffmpeg, want 0", len(runner.invocations))
	}
}

func TestProgressUpdatesEmitted(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{}
	runner.download = func(inv Invocation) error {
		store.produce("dQw4w9WgXcQ.mp4", 100)
		return nil
	}

	o := NewOrchestrator(runner, &fakePool{}, store, filepath.Join(t.TempDir(), "cookies.txt"))

	var updates []int
	req := testRequest()
	req.Progress = func(status string, percent int) {
		updates = append(updates, percent)
	}

	if _, err := o.Download(context.Background(), req); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(updates) == 0 {
		t.Fatal("no progress updates emitted")
	}
	for i := 1; i < len(updates); i++ {
		if updates[i] < updates[i-1] {
			t.Errorf("progress went backwards: %v", updates)
		}
	}
}
