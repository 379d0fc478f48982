package router

import (
	"net/http"

	"invoicewallet/internal/adapters/inbound/http/controllers"
)

type Dependencies struct {
	HealthController *controllers.HealthController
	MetricsHandler   http.Handler
}

// New builds the ops mux. There is no public invoice API on this server.
func New(deps Dependencies) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", deps.HealthController.GetHealth)
	if deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", deps.MetricsHandler)
	}

	return mux
}
