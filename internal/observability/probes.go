package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// liveness answers 200 as long as the process can serve HTTP at all. The
// orchestrator restarts the pod when this stops responding.
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every registered checker in parallel and answers 200 only
// when all of them pass. The body names each dependency and its state so an
// operator can tell which one is down without reading logs.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}

	results := make(chan result, len(s.checkers))
	var wg sync.WaitGroup
	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			results <- result{name: c.Name(), err: c.Check(ctx)}
		}(checker)
	}
	wg.Wait()
	close(results)

	states := make(map[string]string, len(s.checkers))
	ready := true
	for res := range results {
		if res.err != nil {
			// Warn, not Error: the orchestrator retries readiness on its own
			// schedule and a flapping dependency should not page anyone.
			s.logger.Warn("readiness check failed",
				slog.String("dependency", res.name),
				slog.String("error", res.err.Error()),
			)
			states[res.name] = fmt.Sprintf("down: %v", res.err)
			ready = false
		} else {
			states[res.name] = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	// The status code already went out; the body is for humans.
	_ = json.NewEncoder(w).Encode(map[string]any{"status": states})
}
