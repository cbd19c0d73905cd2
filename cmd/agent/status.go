package main

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	orchestration "github.com/yeschef/yeschef-agent/core"
)

type statusResponse struct {
	Sessions []orchestration.Status `json:"sessions"`
}

func newStatusHandler(registry *orchestration.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statusResponse{Sessions: registry.Statuses()}); err != nil {
			logger.WarnContext(r.Context(), "failed to write session status", "error", err)
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return otelhttp.NewHandler(mux, "status")
}
