package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/apiforge/forge/backend/internal/api/http"
	"github.com/apiforge/forge/backend/internal/api/middleware"
	"github.com/apiforge/forge/backend/internal/config"
	"github.com/apiforge/forge/backend/internal/infrastructure/monitoring"
	"github.com/apiforge/forge/backend/internal/logging"
	"github.com/apiforge/forge/backend/internal/runner"
	"github.com/apiforge/forge/backend/internal/script/engine"
	"github.com/apiforge/forge/backend/internal/vars"
	"github.com/apiforge/forge/backend/internal/ws"
)

// Server owns the HTTP listener and the script engine behind it.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	engine  *engine.Engine
	httpSrv *http.Server
}

// New wires the full stack: engine, runner, variable stores, REST and
// WebSocket surfaces.
func New(cfg *config.Config, log *logging.Logger) *Server {
	metrics := monitoring.New()

	eng := engine.New(engine.Config{
		InnerTimeout: cfg.Script.Timeout,
		OuterTimeout: cfg.Script.OuterTimeout,
	}, log.Component("engine"), metrics)

	run := runner.New(log.Component("runner"))
	env := vars.NewStore()
	globals := vars.NewStore()

	handlers := apihttp.NewHandlers(eng, run, env, globals, log.Component("api"), metrics)
	wsHandler := ws.NewHandler(eng, log.Component("ws"), metrics)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.RequestID())
	router.Use(metrics.HTTPMiddleware())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/execute", handlers.Execute)
		v1.POST("/run", handlers.Run)
	}

	router.GET("/ws", wsHandler.Handle)

	return &Server{
		cfg:    cfg,
		log:    log,
		engine: eng,
		httpSrv: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		},
	}
}

// Run blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains HTTP connections and stops the script engine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")
	err := s.httpSrv.Shutdown(ctx)
	if cerr := s.engine.Close(); err == nil {
		err = cerr
	}
	return err
}
