package controller

import (
	"net/http"
	"strconv"

	"loginsight-backend/internal/dto"
	"loginsight-backend/internal/model"
	"loginsight-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ChatController struct {
	conversations service.ConversationService
}

func NewChatController(conversations service.ConversationService) *ChatController {
	return &ChatController{conversations: conversations}
}

func RegisterChatRoutes(router *gin.Engine, controller *ChatController) {
	v1 := router.Group("/api/v1/sessions/:id")
	{
		v1.POST("/messages", controller.SendMessage)
		v1.GET("/turns/:seq/chart", controller.PreviewChart)
	}
}

// SendMessage godoc
// @Summary      Ask a question about the logs
// @Description  Translates the message into a search, runs it, and charts the result. The finalized turn is returned with status 200 whether it succeeded or failed; a failed turn carries the error kind and cause.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        id      path string                 true "Session ID"
// @Param        request body dto.SendMessageRequest true "User message and optional chart kind"
// @Success      200 {object} model.Turn
// @Failure      400 {object} model.Response "Invalid request body or chart kind"
// @Failure      404 {object} model.Response "Session not found"
// @Failure      409 {object} model.Response "Session reached its turn limit"
// @Failure      500 {object} dto.TurnErrorResponse "Turn could not be persisted"
// @Router       /api/v1/sessions/{id}/messages [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	var req dto.SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid message body")
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}
	kind, ok := parseKind(ctx, req.ChartKind)
	if !ok {
		return
	}

	id := ctx.Param("id")
	turn, err := c.conversations.HandleMessage(ctx.Request.Context(), id, req.Message, kind)
	if err != nil {
		if turn != nil && model.IsKind(err, model.KindPersistence) {
			log.Error().Err(err).Str("session_id", id).Msg("Turn could not be persisted")
			ctx.JSON(http.StatusInternalServerError, dto.TurnErrorResponse{Message: "Turn could not be saved", Turn: turn})
			return
		}
		respondError(ctx, err, "send_message")
		return
	}
	ctx.JSON(http.StatusOK, turn)
}

// PreviewChart godoc
// @Summary      Re-render a stored turn with another chart kind
// @Description  The stored turn is not modified.
// @Tags         chat
// @Produce      json
// @Param        id   path  string true  "Session ID"
// @Param        seq  path  int    true  "Turn sequence number"
// @Param        kind query string false "Chart kind; empty lets the server choose"
// @Success      200 {object} model.ChartSpec
// @Failure      400 {object} model.Response "Invalid kind or kind incompatible with the data"
// @Failure      404 {object} model.Response "Session or turn not found"
// @Router       /api/v1/sessions/{id}/turns/{seq}/chart [get]
func (c *ChatController) PreviewChart(ctx *gin.Context) {
	seq, err := strconv.Atoi(ctx.Param("seq"))
	if err != nil || seq < 1 {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("seq must be a positive integer", nil))
		return
	}
	kind, ok := parseKind(ctx, ctx.Query("kind"))
	if !ok {
		return
	}

	spec, err := c.conversations.PreviewChart(ctx.Request.Context(), ctx.Param("id"), seq, kind)
	if err != nil {
		respondError(ctx, err, "preview_chart")
		return
	}
	ctx.JSON(http.StatusOK, spec)
}

func parseKind(ctx *gin.Context, raw string) (model.ChartKind, bool) {
	if raw == "" {
		return "", true
	}
	kind, err := model.ParseChartKind(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
		return "", false
	}
	return kind, true
}
