package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmajor/intake/config"
	"github.com/pmajor/intake/internal/pipeline"
	"github.com/pmajor/intake/internal/session"
	"github.com/pmajor/intake/internal/sink"
	"github.com/pmajor/intake/internal/telemetry"
	"github.com/pmajor/intake/provider"
	"github.com/pmajor/intake/tools/web_search"
)

// Run wires the dependencies and serves the HTTP API.
func Run(cfg *config.Config) error {
	store, err := session.NewStore(cfg.Sessions)
	if err != nil {
		return fmt.Errorf("building session store: %w", err)
	}
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("building completion provider: %w", err)
	}
	searcher := web_search.NewSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	orch := pipeline.NewOrchestrator(cfg, store, llm, searcher, telemetry.NewLogger("PIPE"))
	deliverer := sink.NewSink(cfg.Mail, telemetry.NewLogger("SINK"))

	e := newEcho(cfg, orch, deliverer)
	return e.Start(cfg.Server.Address)
}

// newEcho builds the router; split from Run so tests can drive it with
// in-memory dependencies.
func newEcho(cfg *config.Config, orch *pipeline.Orchestrator, deliverer sink.Sink) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := telemetry.NewLogger("HTTP")
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
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api")
	if cfg.Server.JWTSecret != "" {
		secret := []byte(cfg.Server.JWTSecret)
		api.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	}

	h := &SessionsHandler{Orch: orch, Sink: deliverer}
	h.Register(api.Group("/sessions"))
	return e
}
