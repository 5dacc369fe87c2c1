package app

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/chatspace/internal/api/middlewares"
	"github.com/markdave123-py/chatspace/internal/config"
)

// serverServices groups what the handlers are built from.
type serverServices struct {
	users      handlers.AuthService
	chatSpaces handlers.ChatSpaceService
	documents  handlers.DocumentService
	chat       handlers.WidgetService
	settings   handlers.SettingsService
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, svcs serverServices, logger *zap.Logger) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, svcs, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, logger: logger}
}

func newRouter(cfg *config.Config, svcs serverServices, logger *zap.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(svcs.users, logger)
	chatSpaceHandler := handlers.NewChatSpaceHandler(svcs.chatSpaces, logger)
	docHandler := handlers.NewDocumentHandler(svcs.documents, cfg.MaxUploadBytes, logger)
	widgetHandler := handlers.NewWidgetHandler(svcs.chat, logger)
	settingsHandler := handlers.NewSettingsHandler(svcs.settings, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.CompletionTimeout + 30*time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/auth/signup", authHandler.Signup)
		api.Post("/auth/login", authHandler.Login)

		api.Get("/widget/{slug}/config", widgetHandler.Config)
		api.Post("/widget/{slug}/chat", widgetHandler.Chat)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Route("/chat-spaces", func(cs chi.Router) {
				cs.Post("/", chatSpaceHandler.Create)
				cs.Get("/", chatSpaceHandler.List)

				cs.Route("/{id}", func(one chi.Router) {
					one.Get("/", chatSpaceHandler.Get)
					one.Patch("/", chatSpaceHandler.Update)
					one.Delete("/", chatSpaceHandler.Delete)

					one.Post("/process", chatSpaceHandler.Process)
					one.Delete("/process", chatSpaceHandler.CancelProcess)

					one.Get("/documents", docHandler.List)
					one.Post("/documents", docHandler.Create)
					one.Delete("/documents", chatSpaceHandler.ClearDocuments)
					one.Post("/documents/upload", docHandler.Upload)
				})
			})

			protected.Get("/documents/{id}", docHandler.Get)
			protected.Delete("/documents/{id}", docHandler.Delete)

			protected.Get("/settings", settingsHandler.Get)
			protected.Put("/settings", settingsHandler.Update)
		})
	})

	return r
}

// allowOrigin admits the dashboard origins everywhere and any origin on the
// widget routes, whose access is decided by each chat space's allow-list.
func allowOrigin(dashboard []string) func(*http.Request, string) bool {
	return func(r *http.Request, origin string) bool {
		if strings.HasPrefix(r.URL.Path, "/api/widget/") {
			return true
		}
		return slices.Contains(dashboard, origin)
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
