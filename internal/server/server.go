package server

import (
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/ws"
)

//go:embed openapi.yaml
var openapiSpec []byte

func NewRouter(server *Server, wsHub *ws.Hub, negotiate *ws.NegotiateHandler, logger *zap.Logger) (http.Handler, error) {
	// Load OpenAPI spec for validation
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, err
	}
	doc.Servers = nil // Allow any host

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(logger))

	// Streaming routes bypass OpenAPI validation and response compression;
	// both interfere with flushed, long-lived responses.
	r.Get("/signals/feed", server.HandleFeed)
	r.Get("/demo/stream", server.HandleDemoStream)
	r.Get("/demo/events", server.HandleDemoEvents)
	r.Get("/openapi.yaml", openapiHandler)

	// WebSocket routes (optional)
	if wsHub != nil {
		r.Get("/negotiate", negotiate.HandleNegotiate)
		r.Get("/ws/feed", wsHub.HandleFeedWS)
	}

	// JSON API routes with OpenAPI validation
	r.Group(func(apiRouter chi.Router) {
		apiRouter.Use(middleware.Compress(5))
		apiRouter.Use(oapimiddleware.OapiRequestValidator(doc))

		apiRouter.Get("/signals", server.HandleListSignals)
		apiRouter.Post("/signals", server.HandleCreateSignal)
		apiRouter.Get("/signals/{id}", server.HandleGetSignal)
		apiRouter.Post("/admin/feed/reset", server.HandleFeedReset)
		apiRouter.Get("/healthz", server.HandleHealth)
	})

	return r, nil
}

func openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapiSpec)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remoteAddr", r.RemoteAddr),
			)
			next.ServeHTTP(w, r)
		})
	}
}
