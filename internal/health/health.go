// Package health serves the liveness and readiness probes of the gaussvad
// service.
//
//   - GET /healthz: liveness; always 200 while the process serves HTTP.
//   - GET /readyz: readiness; 200 only when every registered [Checker]
//     passes, 503 otherwise.
//
// Both answer with a JSON object whose "status" is "ok" or "fail". /readyz
// adds a "checks" object with one entry per checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the component
// is able to serve.
type Checker struct {
	// Name keys the check in the /readyz response, e.g. "transform".
	Name string

	// Check must respect context cancellation.
	Check func(ctx context.Context) error
}

type report struct {
	Status string                 `json:"status"`
	Checks map[string]checkReport `json:"checks,omitempty"`
}

type checkReport struct {
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction, so a Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New returns a Handler evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every checker concurrently, each under its own
// [checkTimeout]. A failing checker does not cancel the others.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu  sync.Mutex
		res = report{Status: "ok", Checks: make(map[string]checkReport, len(h.checkers))}
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(ctx)
			cr := checkReport{Status: "ok", DurationMs: float64(time.Since(start).Microseconds()) / 1000}
			if err != nil {
				cr.Status, cr.Error = "fail", err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			res.Checks[c.Name] = cr
			if err != nil {
				res.Status = "fail"
			}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
