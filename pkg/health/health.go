// Package health serves liveness and readiness probes backed by periodic
// checks. A check flips to unhealthy after FailureThreshold consecutive
// failures and back after SuccessThreshold consecutive successes.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc reports a problem with a component, or nil when it is healthy.
type CheckFunc func(ctx context.Context) error

// Kind tells which probe a check contributes to.
type Kind uint8

const (
	Liveness Kind = iota
	Readiness
)

func (k Kind) String() string {
	if k == Liveness {
		return "liveness"
	}
	return "readiness"
}

// Config tunes check scheduling and flapping protection.
type Config struct {
	Interval         time.Duration
	FailureThreshold int
	SuccessThreshold int
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
}

// check is one registered probe. The counters are owned by the goroutine
// running the check; healthy and lastErr are read by HTTP handlers.
type check struct {
	name    string
	kind    Kind
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	fails, oks int
}

func (c *check) status() string {
	if c.healthy.Load() {
		return "ok"
	}
	if msg := c.lastErr.Load(); msg != nil {
		return *msg
	}
	return "unhealthy"
}

// Health owns the registered checks and the manual readiness switch.
type Health struct {
	cfg   Config
	lg    *zap.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Health that is not ready until SetReady(true).
func New(cfg Config, lg *zap.Logger) *Health {
	cfg.setDefaults()
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{cfg: cfg, lg: lg}
}

// Add registers a check. Checks start healthy.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, fn CheckFunc) {
	c := &check{name: name, kind: kind, timeout: timeout, fn: fn}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start runs every check immediately and then once per interval until Stop
// or ctx cancellation.
func (h *Health) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.loop(ctx, c)
		}()
	}
}

func (h *Health) loop(ctx context.Context, c *check) {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()
	for {
		h.run(ctx, c)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) run(ctx context.Context, c *check) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.fn(checkCtx)
	cancel()

	if err == nil {
		c.fails = 0
		c.oks++
		if c.oks >= h.cfg.SuccessThreshold && !c.healthy.Swap(true) {
			h.lg.Info("Check recovered", zap.String("check", c.name), zap.Stringer("kind", c.kind))
		}
		return
	}

	msg := err.Error()
	c.lastErr.Store(&msg)
	c.oks = 0
	c.fails++
	if c.fails >= h.cfg.FailureThreshold && c.healthy.Swap(false) {
		h.lg.Warn("Check failing", zap.String("check", c.name), zap.Stringer("kind", c.kind), zap.Error(err))
	}
}

// Stop cancels the check goroutines and waits for them. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// SetReady flips the manual readiness switch.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and all readiness
// checks pass.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	healthy, _ := h.evaluate(Readiness)
	return healthy
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	healthy, checks := h.evaluate(Liveness)
	writeStatus(w, healthy, checks)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	healthy, checks := h.evaluate(Readiness)
	if !h.ready.Load() {
		healthy = false
		checks = append(checks, result{name: "_readiness", status: "service is not ready"})
	}
	writeStatus(w, healthy, checks)
}

type result struct {
	name   string
	status string
}

func (h *Health) evaluate(kind Kind) (bool, []result) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	healthy := true
	var out []result
	for _, c := range h.checks {
		if c.kind != kind {
			continue
		}
		if !c.healthy.Load() {
			healthy = false
		}
		out = append(out, result{name: c.name, status: c.status()})
	}
	return healthy, out
}

// writeStatus writes {"status":"ok"|"unhealthy","checks":{name: status}}.
func writeStatus(w http.ResponseWriter, healthy bool, checks []result) {
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(checks) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, r := range checks {
					e.Field(r.name, func(e *jx.Encoder) { e.Str(r.status) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
