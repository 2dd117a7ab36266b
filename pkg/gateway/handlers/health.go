package handlers

import (
	"net/http"

	"github.com/owui-labs/voicegate/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler fails once the process starts draining so load balancers
// stop routing new sessions here.
type ReadyHandler struct {
	State *lifecycle.State
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool `json:"ok"`
		Draining bool `json:"draining"`
	}
	draining := h.State != nil && h.State.Draining()
	status := http.StatusOK
	if draining {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResp{OK: !draining, Draining: draining})
}
