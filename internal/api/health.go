package api

import (
	"net/http"
	"time"
)

// Health reports liveness and catalog reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if h.cat != nil {
		if err := h.cat.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	JSON(w, code, map[string]interface{}{
		"status":   status,
		"sessions": h.store.Len(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
