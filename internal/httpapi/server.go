// Package httpapi exposes the focus engine over JSON HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"clearfocus/internal/auth"
	"clearfocus/internal/config"
	"clearfocus/internal/metrics"
	"clearfocus/internal/service"
)

// Services are the use cases the API dispatches to.
type Services struct {
	Auth     *service.AuthService
	Intake   *service.IntakeService
	Focus    *service.FocusService
	Tasks    *service.TaskService
	Activity *service.ActivityService
	Settings *service.SettingsService
}

type Server struct {
	echo    *echo.Echo
	handler http.Handler
	http    *http.Server
	svc     Services
	tokens  *auth.Tokens
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewServer(cfg config.ServerConfig, svc Services, tokens *auth.Tokens, m *metrics.Metrics, log *zap.Logger) (*Server, error) {
	if tokens == nil {
		return nil, errors.New("httpapi: tokens are required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		svc:     svc,
		tokens:  tokens,
		metrics: m,
		log:     log.Named("http"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.observe)
	s.registerRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}).Handler(e)

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	a := s.echo.Group("/auth")
	a.POST("/signup", s.handleSignup)
	a.POST("/login", s.handleLogin)
	a.GET("/me", s.handleMe, auth.Middleware(s.tokens))

	api := s.echo.Group("/api", auth.Middleware(s.tokens))
	api.POST("/dump", s.handleSubmitDump)
	api.GET("/dumps", s.handleListDumps)
	api.GET("/daily-focus", s.handleTodayFocus)
	api.POST("/daily-focus/refocus", s.handleRefocus)
	api.GET("/tasks", s.handleListTasks)
	api.PATCH("/task/:id", s.handleEditTask)
	api.DELETE("/task/:id", s.handleArchiveTask)
	api.POST("/task/:id/activity", s.handleActivity)
	api.GET("/settings", s.handleListSettings)
	api.POST("/settings", s.handleSetSetting)
}

// Handler is the CORS-wrapped router, also used by tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Addr() string {
	return s.http.Addr
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.http.Shutdown(ctx)
}
