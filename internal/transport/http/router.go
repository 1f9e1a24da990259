// Package http wires the chi router: middleware chain, authenticated
// verification routes, the public report fetch, and operational endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pehchan/internal/collaborators"
	reportsvc "pehchan/internal/report"
	verifsvc "pehchan/internal/verification/service"
	"pehchan/pkg/platform/middleware/auth"
	"pehchan/pkg/platform/middleware/metadata"
	"pehchan/pkg/platform/middleware/requestid"
	"pehchan/pkg/platform/middleware/requesttime"
)

// RouterDeps carries everything the router needs. Health is optional probes
// keyed by dependency name.
type RouterDeps struct {
	Verifications *verifsvc.Service
	Reports       *reportsvc.Service
	Storage       collaborators.Storage
	TokenCheck    auth.TokenValidator
	Logger        *slog.Logger
	Registry      *prometheus.Registry
	Health        map[string]func() error
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	vh := &verificationHandler{svc: deps.Verifications, reports: deps.Reports, storage: deps.Storage, logger: deps.Logger}
	rh := &reportHandler{svc: deps.Reports, logger: deps.Logger}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.TokenCheck, deps.Logger))

		r.Route("/verifications", func(r chi.Router) {
			r.Post("/", vh.create)
			r.Get("/", vh.list)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", vh.get)
				r.Post("/documents", vh.submitDocuments)
				r.Post("/order", vh.createOrder)
				r.Post("/payment", vh.verifyPayment)
				r.Post("/otp", vh.requestOTP)
				r.Post("/otp/confirm", vh.confirm)
				r.Post("/reject", vh.reject)
				r.Post("/report", vh.generateReport)
			})
		})
	})

	// The tracking id is the access capability; no session required.
	r.Get("/reports/{trackingId}", rh.getByTracking)

	r.Get("/healthz", healthHandler(deps.Health))
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

func healthHandler(probes map[string]func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := make(map[string]string, len(probes))
		for name, probe := range probes {
			if err := probe(); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				checks[name] = "ok"
			}
		}
		writeJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
