package controller

import (
	"errors"
	"net/http"

	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/model"
	"loginsight-backend/internal/savedquery"
	"loginsight-backend/internal/schema"
	"loginsight-backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError maps domain errors onto HTTP statuses. Unknown errors are logged
// and hidden behind a generic message.
func respondError(ctx *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, kvstore.ErrNotFound),
		errors.Is(err, schema.ErrNotFound):
		ctx.JSON(http.StatusNotFound, model.NewResponse(err.Error(), nil))
	case errors.Is(err, savedquery.ErrInvalid):
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
	case errors.Is(err, session.ErrSessionFull):
		ctx.JSON(http.StatusConflict, model.NewResponse(err.Error(), nil))
	case model.IsKind(err, model.KindIncompatibleChart):
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
	case model.IsKind(err, model.KindPersistence):
		log.Error().Err(err).Str("action", action).Msg("Persistence failure")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse(describe(err), nil))
	default:
		log.Error().Err(err).Str("action", action).Msg("Request failed")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Internal server error", nil))
	}
}

// describe names the error kind and its cause without the wrapped driver error.
func describe(err error) string {
	var e *model.Error
	if errors.As(err, &e) {
		return string(e.Kind) + ": " + e.Message
	}
	return err.Error()
}
