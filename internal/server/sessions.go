package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pmajor/intake/internal/pipeline"
	"github.com/pmajor/intake/internal/session"
	"github.com/pmajor/intake/internal/sink"
)

// SessionsHandler exposes the orchestrator over HTTP. It holds no state of
// its own.
type SessionsHandler struct {
	Orch *pipeline.Orchestrator
	Sink sink.Sink
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/:id", h.status)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/messages", h.message)
	g.POST("/:id/generate", h.generate)
	g.POST("/:id/refresh", h.refresh)
	g.POST("/:id/deliver", h.deliver)
}

func (h *SessionsHandler) create(c echo.Context) error {
	var req struct {
		Agent   string `json:"agent"`
		ID      string `json:"id"`
		Context string `json:"context"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Agent == "" {
		req.Agent = pipeline.AgentApplication
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	r, err := h.Orch.Start(c.Request().Context(), req.Agent, req.ID, req.Context)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *SessionsHandler) message(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	r, err := h.Orch.Message(c.Request().Context(), c.Param("id"), req.Message)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *SessionsHandler) generate(c echo.Context) error {
	r, err := h.Orch.Generate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *SessionsHandler) refresh(c echo.Context) error {
	var req struct {
		Context string `json:"context"`
	}
	if err := c.Bind(&req); err != nil || req.Context == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "context required")
	}
	r, err := h.Orch.Refresh(c.Request().Context(), c.Param("id"), req.Context)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *SessionsHandler) status(c echo.Context) error {
	r, err := h.Orch.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *SessionsHandler) delete(c echo.Context) error {
	if err := h.Orch.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return sessionError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// deliver hands a generated document to the configured sink with the
// caller-supplied routing metadata.
func (h *SessionsHandler) deliver(c echo.Context) error {
	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.Orch.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	if r.Status != session.StatusGenerated || r.Document == "" {
		return echo.NewHTTPError(http.StatusConflict, "no generated document to deliver")
	}
	if err := h.Sink.Deliver(c.Request().Context(), r.Document, sink.Meta{To: req.To, Subject: req.Subject}); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "delivered"})
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no session with that id")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
