package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/config"
	"github.com/vendorhub/vendor-engage/internal/http/middleware"
	"github.com/vendorhub/vendor-engage/internal/repository"
	"github.com/vendorhub/vendor-engage/internal/signature"
)

// PayloadProcessor is the async half of the webhook pipeline; the server only
// needs to hand it verified raw bytes.
type PayloadProcessor interface {
	ProcessPayload(ctx context.Context, body []byte)
}

type Server struct {
	e *echo.Echo

	verifier    *signature.Verifier
	verifyToken string
	processor   PayloadProcessor
	log         *zap.Logger
}

func NewServer(
	cfg config.Config,
	clickhouseDB *sqlx.DB,
	rds *redis.Client,
	processor PayloadProcessor,
	log *zap.Logger,
) *Server {
	s := &Server{
		verifier:    signature.NewVerifier(cfg.WhatsApp.AppSecret),
		verifyToken: cfg.WhatsApp.VerifyToken,
		processor:   processor,
		log:         log,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// Provider callbacks. No auth middleware here: the POST authenticates by
	// body signature, the GET by verify token.
	e.GET("/webhook", s.verifyWebhook)
	e.POST("/webhook", s.handleWebhook)

	// Operator reports from the ClickHouse archive.
	if clickhouseDB != nil {
		archiveRepo := repository.NewArchiveRepository(clickhouseDB)
		authMW := middleware.APIKeyMiddleware(cfg.Reports.APIKey)
		rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Redis:      rds,
			DefaultRPS: cfg.Reports.RPS,
			KeyPrefix:  "rl:reports:",
			Window:     time.Second,
		})
		v1 := e.Group("/v1", authMW, rlMW)
		v1.GET("/reports/messages", listMessagesHandler(archiveRepo))
	}

	s.e = e
	return s
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.e }
