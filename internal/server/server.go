package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/dockagent/config"
	"github.com/mohammad-safakhou/dockagent/internal/agent/core"
	"github.com/mohammad-safakhou/dockagent/internal/agent/telemetry"
	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"github.com/mohammad-safakhou/dockagent/internal/executor"
	"github.com/mohammad-safakhou/dockagent/internal/knowledge"
	"github.com/mohammad-safakhou/dockagent/internal/store"
	"github.com/mohammad-safakhou/dockagent/internal/tools"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

// Run wires the full service and blocks serving HTTP on addr.
func Run(cfg *config.Config, addr string) error {
	e := newEcho()
	ctx := context.Background()

	// best-effort: a database already at the latest version reports ErrNoChange
	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Printf("[HTTP] warn: migrate: %v", err)
	}

	pg := cfg.Storage.Postgres
	if pg.URL == "" && (pg.Host == "" || pg.DBName == "") {
		return fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	st, err := store.NewWithDSN(ctx, pg.DSN())
	if err != nil {
		return err
	}
	defer st.Close()

	lib, err := knowledge.NewLibrary()
	if err != nil {
		return err
	}
	registry, err := capability.NewRegistry()
	if err != nil {
		return err
	}
	provider, err := core.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}
	invoker := executor.New(cfg.Agent, tools.Runners(lib), executor.WithMetrics(toolMetrics()))

	tele := telemetry.NewTelemetry(cfg.Telemetry)
	defer tele.Shutdown()

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch, err := core.NewOrchestrator(cfg, orchLogger, tele, registry, provider, invoker, st)
	if err != nil {
		return err
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")

	ah := &AuthHandler{Store: st, Secret: []byte(secret)}
	ah.Register(api.Group("/auth"))

	sh := &SessionsHandler{Store: st, Orch: orch, Timeout: cfg.General.MaxProcessingTime}
	sh.Register(api.Group("/sessions"), []byte(secret))

	th := &ToolsHandler{Registry: registry}
	th.Register(api.Group("/tools"), []byte(secret))

	if cfg.Server.Janitor.Enabled {
		var rdb *redis.Client
		if cfg.Storage.Redis.Host != "" {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr(),
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Printf("[JANITOR] warn: redis unavailable (%s), sweeping without lock: %v", cfg.Storage.Redis.Addr(), err)
				rdb = nil
			}
		}
		jan := &Janitor{Store: st, Rdb: rdb, Cfg: cfg.Server.Janitor, Stop: make(chan struct{})}
		jan.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
