// Package health serves the /livez and /readyz probe endpoints. Every
// registered check runs on its own ticker goroutine; thresholds keep a
// single slow database ping from flapping the pod out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports on one dependency: nil when it is healthy, an error
// describing the problem otherwise.
type CheckFunc func(ctx context.Context) error

const (
	// failAfter consecutive failures flip a check unhealthy.
	failAfter = 3
	// recoverAfter consecutive passes flip it back.
	recoverAfter = 1
)

// check pairs a CheckFunc with its rolling state. The counters belong to
// the single loop goroutine; healthy and lastErr cross into the HTTP
// handlers and are atomic.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func (c *check) ok() bool {
	return c.healthy.Load()
}

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// run executes the check once and advances the thresholds. Only the loop
// goroutine (and tests) may call it.
func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	if err != nil {
		c.oks = 0
		if c.fails++; c.fails >= failAfter {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	if c.oks++; c.oks >= recoverAfter {
		c.healthy.Store(true)
	}
}

// loop re-runs the check at the interval until the context is cancelled.
func (c *check) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Health holds the probe registry for one service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New returns an empty registry. The service starts not-ready; call
// SetReady(true) once startup completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process
// itself is functioning, like the goroutine count.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a check that decides whether the service
// can take traffic, like database connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn))
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	// Healthy until the failure threshold says otherwise.
	c.healthy.Store(true)
	return c
}

// Start launches one goroutine per registered check. Register everything
// before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append(h.snapshot(h.liveness), h.snapshot(h.readiness)...)
	h.mu.Unlock()

	for _, c := range checks {
		go c.loop(ctx, interval)
	}
}

// SetReady flips the manual readiness gate: true after initialization,
// false at the start of a graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every
// readiness check is currently passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	checks := h.snapshot(h.readiness)
	h.mu.RUnlock()

	for _, c := range checks {
		if !c.ok() {
			return false
		}
	}
	return true
}

// Stop cancels the check goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// snapshot copies a check slice so handlers never hold mu while reading
// check state. Callers hold mu.
func (h *Health) snapshot(checks []*check) []*check {
	out := make([]*check, len(checks))
	copy(out, checks)
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint answers /livez: 200 {"status":"ok"} when every liveness
// check passes, 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := h.snapshot(h.liveness)
	h.mu.RUnlock()

	respond(w, failuresOf(checks))
}

// ReadyEndpoint answers /readyz: 200 only when the service is marked
// ready and every readiness check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	checks := h.snapshot(h.readiness)
	h.mu.RUnlock()

	failures := failuresOf(checks)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	respond(w, failures)
}

// failuresOf maps each unhealthy check to its stored last error, without
// re-running anything on the request path.
func failuresOf(checks []*check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if c.ok() {
			continue
		}
		if err := c.lastError(); err != nil {
			failures[c.name] = err.Error()
		} else {
			failures[c.name] = "check is unhealthy"
		}
	}
	return failures
}

func respond(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	// The status code is out the door; an encode failure here means the
	// client hung up.
	_ = json.NewEncoder(w).Encode(resp)
}
