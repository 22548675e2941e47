package server

import (
	"context"
	"fmt"

	"github.com/grachmannico95/wallet-webhook/internal/config"
	"github.com/grachmannico95/wallet-webhook/internal/handler"
	"github.com/grachmannico95/wallet-webhook/internal/middleware"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo               *echo.Echo
	cfg                *config.Config
	logger             *logger.Logger
	transactionHandler *handler.TransactionHandler
	healthHandler      *handler.HealthHandler
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	transactionHandler *handler.TransactionHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:               e,
		cfg:                cfg,
		logger:             log,
		transactionHandler: transactionHandler,
		healthHandler:      healthHandler,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info(context.Background(), "Starting HTTP server",
		"address", addr,
	)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// setupMiddleware registers Logging outside Recover so a recovered panic is
// still logged with its 500.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Operator(s.cfg.Operator.Header, s.cfg.Operator.DefaultName))
	s.echo.Use(middleware.Logging(s.logger, "/health"))
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(echoMiddleware.CORS())
	if s.cfg.Server.BodyLimit != "" {
		s.echo.Use(echoMiddleware.BodyLimit(s.cfg.Server.BodyLimit))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler.Check)

	s.echo.POST("/webhook", s.transactionHandler.Webhook)

	s.echo.GET("/transactions", s.transactionHandler.List)
	s.echo.GET("/transactions/:id/history", s.transactionHandler.History)

	s.echo.POST("/approve", s.transactionHandler.Approve)
	s.echo.POST("/cancel", s.transactionHandler.Cancel)
	s.echo.POST("/restore", s.transactionHandler.Restore)
	s.echo.POST("/reset_approved", s.transactionHandler.ResetApproved)
	s.echo.POST("/reset_cancelled", s.transactionHandler.ResetCancelled)

	s.echo.POST("/upload_slip/:id", s.transactionHandler.UploadSlip)
	s.echo.GET("/slip/:id", s.transactionHandler.Slip)
}

func (s *Server) Handler() *echo.Echo {
	return s.echo
}
