package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vkrMiniApp/backend/internal/http/handler"
	"vkrMiniApp/backend/internal/http/middleware"
	"vkrMiniApp/pkg/logger/sl"
)

type Config struct {
	Port           int           `yaml:"port" env:"HTTP_PORT" env-default:"8000"`
	Timeout        time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// Services is what the routes are built from. Nil members make the routes
// that need them answer 503.
type Services struct {
	Env              string
	Verifier         handler.InitDataVerifier
	Users            handler.UserService
	Projects         handler.ProjectService
	Sessions         *handler.Sessions
	BotInternalToken string
}

type App struct {
	log        *slog.Logger
	httpServer *http.Server
	port       int
}

func New(
	log *slog.Logger,
	config *Config,
	svc Services,
) *App {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(config.Port),
		Handler:      NewRouter(log, config, svc),
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		IdleTimeout:  2 * config.Timeout,
	}

	return &App{log: log, httpServer: srv, port: config.Port}
}

func NewRouter(log *slog.Logger, config *Config, svc Services) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /health", handler.HealthHandler(log))
	router.HandleFunc("GET /{$}", handler.RootHandler(log, svc.Env))

	router.HandleFunc(
		"POST /auth/telegram",
		handler.AuthTelegramHandler(log, svc.Verifier, svc.Users, svc.Projects, svc.Sessions),
	)

	router.HandleFunc(
		"GET /me",
		handler.MeHandler(log, svc.Users, svc.Sessions),
	)

	router.HandleFunc(
		"GET /projects",
		handler.GetProjectsHandler(log, svc.Projects, svc.Sessions),
	)

	router.HandleFunc(
		"DELETE /projects/{project_id}",
		handler.DeleteProjectHandler(log, svc.Projects, svc.Sessions),
	)

	router.HandleFunc(
		"POST /projects/{project_id}/leave",
		handler.LeaveProjectHandler(log, svc.Projects, svc.Sessions),
	)

	// internal, called by the bot
	router.Handle(
		"POST /bot/chat-project",
		middleware.BotToken(log, svc.BotInternalToken)(
			http.HandlerFunc(handler.BotChatProjectHandler(log, svc.Users, svc.Projects)),
		),
	)

	return corsMiddleware(log, config.AllowedOrigins, router)
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "httpapp.Run"

	a.log.With(slog.String("op", op)).
		Info("server started", slog.Int("port", a.port))

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error("failed to start http server", sl.Err(err))
		return err
	}

	return nil
}

func (a *App) Stop() {
	const op = "httpapp.Stop"

	a.log.With(slog.String("op", op)).
		Info("stopping HTTP server", slog.Int("port", a.port))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("server closed with error", sl.Err(err))
		return
	}

	a.log.Info("gracefully stopped")
}

// corsMiddleware allows the configured origins; "*" allows any origin.
func corsMiddleware(log *slog.Logger, origins []string, next http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(origins))
	allowAny := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAny = true
			continue
		}
		if o != "" {
			allowedOrigins[o] = true
		}
	}

	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (allowAny || allowedOrigins[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set(
					"Access-Control-Allow-Methods",
					"GET, POST, OPTIONS, DELETE",
				)
				w.Header().Set(
					"Access-Control-Allow-Headers",
					"Origin, Content-Type, Authorization, Accept",
				)
				w.Header().Set("Access-Control-Max-Age", "43200") // 12 hours
			} else if origin != "" {
				log.Debug("origin not allowed", slog.String("origin", origin))
			}

			w.Header().Set("Cache-Control", "no-store")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		},
	)
}
