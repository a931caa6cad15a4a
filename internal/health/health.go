// Package health serves the liveness and readiness probes of the evaluator.
//
// /healthz always answers 200 while the process serves HTTP. /readyz runs
// every registered [Checker] concurrently and answers 200 only when all of
// them pass. Both respond with {"status": "ok"|"fail", "checks": {...}}.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/speakeval/internal/resilience"
	"github.com/MrWong99/speakeval/pkg/cache"
	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
)

// checkTimeout bounds every readiness check.
const checkTimeout = 5 * time.Second

// probeKey is looked up by [CacheChecker]; it never exists.
const probeKey = "health:probe"

// Checker is a named readiness check.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Its checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New returns a Handler running checkers on every readiness request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		failed bool
	)
	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			status := "ok"
			if err := c.Check(ctx); err != nil {
				status = "fail: " + err.Error()
			}
			mu.Lock()
			checks[c.Name] = status
			failed = failed || status != "ok"
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res, code := result{Status: "ok", Checks: checks}, http.StatusOK
	if failed {
		res.Status, code = "fail", http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// EmbeddingsChecker embeds a short probe text and checks the vector length
// against the provider's advertised dimensions.
func EmbeddingsChecker(p embeddings.Provider) Checker {
	return Checker{Name: "embeddings", Check: func(ctx context.Context) error {
		vec, err := p.Embed(ctx, "준비")
		if err != nil {
			return err
		}
		if d := p.Dimensions(); d > 0 && len(vec) != d {
			return fmt.Errorf("got %d dimensions, want %d", len(vec), d)
		}
		return nil
	}}
}

// CacheChecker issues an Exists call against the cache backend.
func CacheChecker(c cache.Cache) Checker {
	return Checker{Name: "cache", Check: func(ctx context.Context) error {
		_, err := c.Exists(ctx, probeKey)
		return err
	}}
}

// BreakerChecker fails when every provider breaker reported by states is
// open.
func BreakerChecker(name string, states func() map[string]resilience.State) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		s := states()
		for _, st := range s {
			if st != resilience.StateOpen {
				return nil
			}
		}
		if len(s) == 0 {
			return nil
		}
		return errors.New("all circuit breakers open")
	}}
}
