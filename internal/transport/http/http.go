package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microshop/orders/internal/logger"
	"github.com/microshop/orders/pkg/http/middleware/trace"
	"github.com/spf13/viper"
)

// HTTPTransport is the operational HTTP surface. The business API is
// bus-only; this server exposes liveness and readiness probes.
type HTTPTransport struct {
	server *http.Server
	router *chi.Mux
	ready  func(ctx context.Context) error
}

func NewHTTPTransport(ready func(ctx context.Context) error) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server: server,
		router: router,
		ready:  ready,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", h.healthz)
	h.router.Get("/readyz", h.readyz)
}

func (h *HTTPTransport) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPTransport) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.ready(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
