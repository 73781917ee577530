package controller

import (
	"net/http"
	"strconv"

	"loginsight-backend/internal/dto"
	"loginsight-backend/internal/model"
	"loginsight-backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultTurnWindow = 20

type SessionController struct {
	sessions session.Manager
}

func NewSessionController(sessions session.Manager) *SessionController {
	return &SessionController{sessions: sessions}
}

func RegisterSessionRoutes(router *gin.Engine, controller *SessionController) {
	v1 := router.Group("/api/v1/sessions")
	{
		v1.POST("", controller.CreateSession)
		v1.GET("", controller.ListSessions)
		v1.GET("/:id", controller.GetSession)
		v1.DELETE("/:id", controller.DeleteSession)
		v1.GET("/:id/turns", controller.GetTurns)
	}
}

// CreateSession godoc
// @Summary      Create a chat session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateSessionRequest false "Optional title"
// @Success      201 {object} model.Session
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      500 {object} model.Response "Session could not be persisted"
// @Router       /api/v1/sessions [post]
func (c *SessionController) CreateSession(ctx *gin.Context) {
	var req dto.CreateSessionRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			log.Warn().Err(err).Msg("Invalid create session body")
			ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
			return
		}
	}

	s, err := c.sessions.CreateSession(ctx.Request.Context(), req.Title)
	if err != nil {
		respondError(ctx, err, "create_session")
		return
	}
	ctx.JSON(http.StatusCreated, s)
}

// ListSessions godoc
// @Summary      List chat sessions
// @Description  Sessions ordered by last activity, most recent first.
// @Tags         sessions
// @Produce      json
// @Success      200 {object} dto.ListSessionsResponse
// @Failure      500 {object} model.Response
// @Router       /api/v1/sessions [get]
func (c *SessionController) ListSessions(ctx *gin.Context) {
	summaries, err := c.sessions.ListSessions(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "list_sessions")
		return
	}
	ctx.JSON(http.StatusOK, dto.ListSessionsResponse{Sessions: summaries})
}

// GetSession godoc
// @Summary      Get a session with all its turns
// @Tags         sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} dto.SessionDetailResponse
// @Failure      404 {object} model.Response "Session not found"
// @Router       /api/v1/sessions/{id} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	id := ctx.Param("id")
	s, err := c.sessions.GetSession(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, "get_session")
		return
	}
	turns, err := c.sessions.GetContext(ctx.Request.Context(), id, s.TurnCount)
	if err != nil {
		respondError(ctx, err, "get_session")
		return
	}
	ctx.JSON(http.StatusOK, dto.SessionDetailResponse{Session: *s, Turns: turns})
}

// DeleteSession godoc
// @Summary      Delete a session and all its turns
// @Tags         sessions
// @Param        id path string true "Session ID"
// @Success      204
// @Failure      404 {object} model.Response "Session not found"
// @Failure      500 {object} model.Response
// @Router       /api/v1/sessions/{id} [delete]
func (c *SessionController) DeleteSession(ctx *gin.Context) {
	if err := c.sessions.DeleteSession(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err, "delete_session")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GetTurns godoc
// @Summary      Most recent turns of a session
// @Description  Returns up to `window` turns, oldest first.
// @Tags         sessions
// @Produce      json
// @Param        id     path  string true  "Session ID"
// @Param        window query int    false "Number of turns (default 20)"
// @Success      200 {object} dto.TurnsResponse
// @Failure      400 {object} model.Response "Invalid window"
// @Failure      404 {object} model.Response "Session not found"
// @Router       /api/v1/sessions/{id}/turns [get]
func (c *SessionController) GetTurns(ctx *gin.Context) {
	window := defaultTurnWindow
	if raw := ctx.Query("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, model.NewResponse("window must be a non-negative integer", nil))
			return
		}
		window = n
	}

	id := ctx.Param("id")
	turns, err := c.sessions.GetContext(ctx.Request.Context(), id, window)
	if err != nil {
		respondError(ctx, err, "get_turns")
		return
	}
	ctx.JSON(http.StatusOK, dto.TurnsResponse{SessionID: id, Turns: turns})
}
