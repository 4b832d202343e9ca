package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	core "github.com/mohammad-safakhou/dockagent/internal/agent/core"
	"github.com/mohammad-safakhou/dockagent/internal/store"
)

// SessionsHandler starts docking sessions and serves their persisted
// artifacts. A session runs in a background goroutine; the orchestrator's own
// semaphore bounds how many execute at once, so a burst of requests queues
// rather than failing.
type SessionsHandler struct {
	Store *store.Store
	Orch  *core.Orchestrator
	// Timeout caps one session's wall clock. Zero means 30 minutes.
	Timeout time.Duration
	Logger  *log.Logger
}

func (h *SessionsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/trace", h.trace)
}

func (h *SessionsHandler) create(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	// The id is handed out before the run starts so the caller can poll.
	sessionID := uuid.New().String()[:8]
	runReq := core.Request{
		Query:      req.Query,
		ProteinPDB: req.ProteinPDB,
		LigandSDF:  req.LigandSDF,
		MaxSteps:   req.MaxSteps,
		SessionID:  sessionID,
	}

	sessionsAccepted.Inc()
	go func() {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := h.Orch.Run(ctx, runReq); err != nil {
			h.logger().Printf("session %s ended with error: %v", sessionID, err)
		}
	}()

	return c.JSON(http.StatusAccepted, SessionAcceptedResponse{SessionID: sessionID})
}

func (h *SessionsHandler) list(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	sessions, err := h.Store.ListSessions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *SessionsHandler) get(c echo.Context) error {
	id := c.Param("id")
	detail, ok, err := h.Store.GetSession(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		// The first row write can lag the 202 by a beat; answer from the
		// in-flight status when the orchestrator still knows the session.
		if status, serr := h.Orch.GetStatus(id); serr == nil {
			return c.JSON(http.StatusOK, store.SessionDetail{SessionSummary: store.SessionSummary{
				SessionID: status.SessionID,
				Status:    status.Status,
				Progress:  status.Progress,
				CreatedAt: status.CreatedAt,
			}})
		}
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if status, serr := h.Orch.GetStatus(id); serr == nil {
		detail.Status = status.Status
		detail.Progress = status.Progress
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *SessionsHandler) trace(c echo.Context) error {
	trace, ok, err := h.Store.GetTrace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "trace not found")
	}
	return c.String(http.StatusOK, trace)
}

func (h *SessionsHandler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
}
