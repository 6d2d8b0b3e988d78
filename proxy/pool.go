package proxy

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Checker probes a single proxy for liveness.
type Checker interface {
	Check(ctx context.Context, p Proxy) error
}

type httpChecker struct {
	checkURL string
	timeout  time.Duration
}

// NewHTTPChecker probes proxies by issuing a GET to checkURL through each
// candidate. Any 200 response within the timeout counts as alive.
func NewHTTPChecker(checkURL string, timeout time.Duration) Checker {
	return &httpChecker{checkURL: checkURL, timeout: timeout}
}

func (c *httpChecker) Check(ctx context.Context, p Proxy) error {
	proxyURL, err := url.Parse(p.URL())
	if err != nil {
		return err
	}

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyURL),
			DisableKeepAlives: true,
		},
		Timeout: c.timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.checkURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}

// PoolConfig controls refresh behavior.
type PoolConfig struct {
	// SnapshotTTL is how long a persisted snapshot is trusted without
	// revalidation.
	SnapshotTTL time.Duration
}

// Pool maintains the rotating working set of validated proxies. All state is
// guarded by a single mutex; refreshes never run concurrently with each other.
type Pool struct {
	source  Source
	checker Checker
	store   Store
	config  PoolConfig
	logger  *logrus.Logger

	mu          sync.Mutex
	working     []Proxy
	cursor      int
	lastRefresh time.Time
	refreshing  bool
}

func NewPool(source Source, checker Checker, store Store, cfg PoolConfig) *Pool {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 24 * time.Hour
	}
	return &Pool{
		source:  source,
		checker: checker,
		store:   store,
		config:  cfg,
		logger:  logrus.StandardLogger(),
	}
}

// Refresh rebuilds the working set. A snapshot younger than the TTL is loaded
// as-is; otherwise candidates are fetched upstream and validated concurrently,
// and the survivors replace the working set and are persisted. Failures are
// absorbed: on any error the previous working set is left untouched.
func (p *Pool) Refresh(ctx context.Context) {
	p.mu.Lock()
	if p.refreshing {
		p.mu.Unlock()
		return
	}
	p.refreshing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.refreshing = false
		p.mu.Unlock()
	}()

	if p.loadSnapshot() {
		return
	}

	candidates, err := p.source.Fetch(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("Proxy listing fetch failed, keeping current set")
		return
	}
	if len(candidates) == 0 {
		p.logger.Warn("Proxy listing returned no candidates, keeping current set")
		return
	}

	working := p.validateAll(ctx, candidates)
	p.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"working":    len(working),
	}).Info("Proxy validation complete")

	if len(working) == 0 {
		return
	}

	p.replace(working)
	p.persist(working)
}

// loadSnapshot restores a persisted working set if it is still fresh. Entries
// in a fresh snapshot were positively validated before the save and are
// trusted without rechecking.
func (p *Pool) loadSnapshot() bool {
	if p.store == nil {
		return false
	}

	snap, err := p.store.Load()
	if err != nil {
		p.logger.WithError(err).Warn("Failed to load proxy snapshot")
		return false
	}
	if snap == nil || len(snap.Proxies) == 0 {
		return false
	}
	if time.Since(snap.SavedAt) > p.config.SnapshotTTL {
		p.logger.WithField("saved_at", snap.SavedAt).Info("Proxy snapshot is stale, refetching")
		return false
	}

	p.replace(snap.Proxies)
	p.logger.WithField("count", len(snap.Proxies)).Info("Loaded proxies from snapshot")
	return true
}

// validateAll probes every candidate concurrently. Each check succeeds or
// fails on its own; a failed check only drops that candidate.
func (p *Pool) validateAll(ctx context.Context, candidates []Proxy) []Proxy {
	results := make([]bool, len(candidates))

	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := p.checker.Check(ctx, candidates[i]); err != nil {
				p.logger.WithError(err).WithField("proxy", candidates[i].Addr()).
					Debug("Proxy check failed")
				return
			}
			results[i] = true
		}(i)
	}
	wg.Wait()

	now := time.Now().UTC()
	var working []Proxy
	for i, ok := range results {
		if ok {
			candidate := candidates[i]
			candidate.CheckedAt = now
			working = append(working, candidate)
		}
	}
	return working
}

func (p *Pool) replace(proxies []Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.working = append([]Proxy(nil), proxies...)
	p.cursor = 0
	p.lastRefresh = time.Now()
}

func (p *Pool) persist(proxies []Proxy) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(proxies); err != nil {
		p.logger.WithError(err).Warn("Failed to persist proxy snapshot")
	}
}

// Next hands out the proxy at the cursor and advances it, wrapping at the end
// of the set. The second return is false when no proxy is available.
func (p *Pool) Next() (Proxy, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.working) == 0 {
		return Proxy{}, false
	}

	// Cursor can drift past the end after a concurrent eviction.
	if p.cursor >= len(p.working) {
		p.cursor = 0
	}

	proxy := p.working[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.working)
	return proxy, true
}

// Evict removes a proxy from the working set after a download attributed to it
// failed with a proxy or connection error. Emptying the set kicks off a
// background refresh the caller does not wait for.
func (p *Pool) Evict(victim Proxy) {
	p.mu.Lock()

	idx := -1
	for i, candidate := range p.working {
		if candidate.Same(victim) {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return
	}

	p.working = append(p.working[:idx], p.working[idx+1:]...)

	// Keep rotation order intact: entries before the cursor stay consumed.
	if idx < p.cursor {
		p.cursor--
	}
	if len(p.working) == 0 {
		p.cursor = 0
	} else {
		p.cursor %= len(p.working)
	}

	remaining := append([]Proxy(nil), p.working...)
	empty := len(remaining) == 0
	p.mu.Unlock()

	p.logger.WithField("proxy", victim.Addr()).Info("Evicted proxy from working set")
	p.persist(remaining)

	if empty {
		p.logger.Info("Proxy pool exhausted, refreshing in background")
		go p.Refresh(context.Background())
	}
}

// ShouldRefresh reports whether the working set is empty.
func (p *Pool) ShouldRefresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.working) == 0
}

// Size returns the number of proxies currently in the working set.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.working)
}

// Status reports pool state for the status endpoint.
type Status struct {
	WorkingCount  int       `json:"working_proxies_count"`
	Cursor        int       `json:"current_proxy_index"`
	LastRefresh   time.Time `json:"last_refresh"`
	Refreshing    bool      `json:"refreshing"`
	ShouldRefresh bool      `json:"should_refresh"`
}

func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		WorkingCount:  len(p.working),
		Cursor:        p.cursor,
		LastRefresh:   p.lastRefresh,
		Refreshing:    p.refreshing,
		ShouldRefresh: len(p.working) == 0,
	}
}
