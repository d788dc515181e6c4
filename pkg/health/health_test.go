package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Helpers ---

type probeBody struct {
	Status string
	Checks map[string]string
}

func probe(t *testing.T, handler http.HandlerFunc) (int, probeBody) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body probeBody
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = map[string]string{}
			return d.Obj(func(d *jx.Decoder, key string) error {
				s, err := d.Str()
				body.Checks[key] = s
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return w.Code, body
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func runN(h *Health, name string, n int) {
	for _, c := range h.checks {
		if c.name == name {
			for range n {
				h.run(context.Background(), c)
			}
		}
	}
}

// --- Tests ---

func TestLiveEndpoint(t *testing.T) {
	h := New(Config{}, nil)
	h.Add(Liveness, "goroutines", time.Second, passing())
	h.Add(Readiness, "source", time.Second, failing("down"))
	runN(h, "source", 3)

	code, body := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"goroutines": "ok"}, body.Checks)
}

func TestLiveEndpoint_NoChecks(t *testing.T) {
	code, body := probe(t, New(Config{}, nil).LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, body.Checks)
}

func TestFailureThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := New(Config{FailureThreshold: 3}, zap.New(core))
	h.Add(Liveness, "db", time.Second, failing("connection refused"))

	runN(h, "db", 2)
	code, _ := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	runN(h, "db", 1)
	code, body := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
	assert.Equal(t, 1, logs.FilterMessage("Check failing").Len())

	// Further failures do not log again.
	runN(h, "db", 2)
	assert.Equal(t, 1, logs.FilterMessage("Check failing").Len())
}

func TestSuccessThreshold(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	core, logs := observer.New(zapcore.InfoLevel)
	h := New(Config{FailureThreshold: 1, SuccessThreshold: 2}, zap.New(core))
	h.Add(Readiness, "source", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("flaky")
		}
		return nil
	})
	h.SetReady(true)

	runN(h, "source", 1)
	assert.False(t, h.IsReady())

	fail.Store(false)
	runN(h, "source", 1)
	assert.False(t, h.IsReady(), "needs two successes")
	runN(h, "source", 1)
	assert.True(t, h.IsReady())
	assert.Equal(t, 1, logs.FilterMessage("Check recovered").Len())
}

func TestReadyEndpoint(t *testing.T) {
	h := New(Config{}, nil)
	h.Add(Readiness, "source", time.Second, passing())

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "not ready until SetReady")
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Checks["source"])

	h.SetReady(false)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OneFailing(t *testing.T) {
	h := New(Config{FailureThreshold: 1}, nil)
	h.Add(Readiness, "source", time.Second, passing())
	h.Add(Readiness, "cache", time.Second, failing("cold"))
	h.SetReady(true)
	runN(h, "cache", 1)

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"source": "ok", "cache": "cold"}, body.Checks)
}

func TestCheckTimeout(t *testing.T) {
	h := New(Config{FailureThreshold: 1}, nil)
	h.Add(Readiness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.SetReady(true)
	runN(h, "slow", 1)
	assert.False(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New(Config{Interval: 5 * time.Millisecond}, nil)
	h.Add(Liveness, "counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestConcurrentAccess(t *testing.T) {
	h := New(Config{Interval: time.Millisecond}, nil)
	h.Add(Liveness, "a", time.Second, passing())
	h.Add(Readiness, "b", time.Second, failing("x"))
	h.SetReady(true)
	h.Start(context.Background())
	t.Cleanup(h.Stop)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
				h.IsReady()
			}
		}()
	}
	wg.Wait()
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, PingCheck(pingerFunc(func(context.Context) error { return nil }))(ctx))
	err := PingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))(ctx)
	require.ErrorContains(t, err, "refused")

	require.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	require.Error(t, GoroutineCountCheck(0)(ctx))

	require.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
