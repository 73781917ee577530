package controller

import (
	"net/http"

	"loginsight-backend/internal/dto"
	"loginsight-backend/internal/model"
	"loginsight-backend/internal/schema"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type SchemaController struct {
	registry schema.Registry
}

func NewSchemaController(registry schema.Registry) *SchemaController {
	return &SchemaController{registry: registry}
}

func RegisterSchemaRoutes(router *gin.Engine, controller *SchemaController) {
	router.GET("/api/v1/schema", controller.GetSchema)
	router.PUT("/api/v1/schema/descriptions", controller.UpdateDescription)
}

// GetSchema godoc
// @Summary      Queryable indices and fields
// @Tags         schema
// @Produce      json
// @Success      200 {object} model.Schema
// @Router       /api/v1/schema [get]
func (c *SchemaController) GetSchema(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.registry.Current())
}

// UpdateDescription godoc
// @Summary      Edit an index or field description
// @Description  The description is stored and shown to the model from the next question on.
// @Tags         schema
// @Accept       json
// @Produce      json
// @Param        request body dto.UpdateDescriptionRequest true "Index, optional field, and description"
// @Success      200 {object} model.IndexSchema
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      404 {object} model.Response "Index or field not found"
// @Failure      500 {object} model.Response
// @Router       /api/v1/schema/descriptions [put]
func (c *SchemaController) UpdateDescription(ctx *gin.Context) {
	var req dto.UpdateDescriptionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid description update body")
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}
	idx, err := c.registry.UpdateDescription(ctx.Request.Context(), req.Index, req.Field, req.Description)
	if err != nil {
		respondError(ctx, err, "update_description")
		return
	}
	ctx.JSON(http.StatusOK, idx)
}
