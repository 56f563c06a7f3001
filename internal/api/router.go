package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/CaioWing/harbor-console/internal/api/docs"
	"github.com/CaioWing/harbor-console/internal/api/management"
	"github.com/CaioWing/harbor-console/internal/api/middleware"
	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/auth"
	"github.com/CaioWing/harbor-console/internal/service"
	"github.com/CaioWing/harbor-console/internal/storage"
)

type RouterDeps struct {
	Views       *service.Views
	Transfers   *service.TransferService
	AuditSvc    *service.AuditService
	Staging     storage.FileStore
	MaxStaged   int64
	LogDialer   management.LogDialer
	JWTManager  *auth.JWTManager
	Credentials *auth.Credentials
	Metrics     *middleware.Metrics
	CORSOrigins string
	Logger      *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	metrics := deps.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(metrics.Middleware())

	// CORS
	origins := strings.Split(deps.CORSOrigins, ",")
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", metrics.Handler())
	r.Handle("/docs/*", http.StripPrefix("/docs", docs.Handler()))

	authHandler := management.NewAuthHandler(deps.JWTManager, deps.Credentials)
	viewHandler := management.NewViewHandler(deps.Views)
	transferHandler := management.NewTransferHandler(deps.Transfers)
	stagingHandler := management.NewStagingHandler(deps.Staging, deps.MaxStaged)
	logHandler := management.NewLogHandler(deps.LogDialer, originChecker(origins), deps.Logger)
	auditHandler := management.NewAuditHandler(deps.AuditSvc)

	r.Route("/api/v1/console", func(r chi.Router) {
		// 30 req/s with burst of 60
		r.Use(middleware.RateLimit(30, 60))

		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.OperatorAuth(deps.JWTManager))
			r.Post("/auth/refresh", authHandler.Refresh)
			r.Get("/logs/{device}", logHandler.Stream)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OperatorAuth(deps.JWTManager))
			r.Use(middleware.AuditLog(deps.AuditSvc))

			// Views
			r.Get("/views", viewHandler.List)
			r.Get("/views/software/download", viewHandler.Download)
			r.Get("/views/{view}", viewHandler.Get)
			r.Post("/views/{view}/selection", viewHandler.Select)
			r.Put("/views/{view}/scroll", viewHandler.Scroll)
			r.Put("/views/{view}/params", viewHandler.SetParams)
			r.Post("/views/{view}/refresh", viewHandler.Refresh)
			r.Post("/views/{view}/actions/{action}", viewHandler.Action)

			// Staging and transfers
			r.Get("/staging", stagingHandler.List)
			r.Put("/staging/{name}", stagingHandler.Put)
			r.Delete("/staging/{name}", stagingHandler.Delete)
			r.Post("/transfers", transferHandler.Start)
			r.Get("/transfers/current", transferHandler.Current)

			// Audit Log
			r.Get("/audit", auditHandler.List)
		})
	})

	return r
}

// originChecker allows websocket upgrades from the configured CORS origins
// and from clients that send no Origin at all, such as the CLI.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}
