package controller

import (
	"net/http"

	"loginsight-backend/internal/dto"
	"loginsight-backend/internal/model"
	"loginsight-backend/internal/savedquery"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type SavedQueryController struct {
	queries savedquery.Store
}

func NewSavedQueryController(queries savedquery.Store) *SavedQueryController {
	return &SavedQueryController{queries: queries}
}

func RegisterSavedQueryRoutes(router *gin.Engine, controller *SavedQueryController) {
	v1 := router.Group("/api/v1/queries")
	{
		v1.POST("", controller.CreateQuery)
		v1.GET("", controller.ListQueries)
		v1.GET("/:id", controller.GetQuery)
		v1.PUT("/:id", controller.UpdateQuery)
		v1.DELETE("/:id", controller.DeleteQuery)
	}
}

// CreateQuery godoc
// @Summary      Save a reference query
// @Description  Saved queries are offered to the model when a new question resembles their description.
// @Tags         queries
// @Accept       json
// @Produce      json
// @Param        request body dto.SaveQueryRequest true "Question description and request JSON"
// @Success      201 {object} model.SavedQuery
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      500 {object} model.Response
// @Router       /api/v1/queries [post]
func (c *SavedQueryController) CreateQuery(ctx *gin.Context) {
	c.save(ctx, "", http.StatusCreated)
}

// UpdateQuery godoc
// @Summary      Replace a saved query
// @Tags         queries
// @Accept       json
// @Produce      json
// @Param        id      path string               true "Saved query ID"
// @Param        request body dto.SaveQueryRequest true "Question description and request JSON"
// @Success      200 {object} model.SavedQuery
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      404 {object} model.Response "Saved query not found"
// @Router       /api/v1/queries/{id} [put]
func (c *SavedQueryController) UpdateQuery(ctx *gin.Context) {
	id := ctx.Param("id")
	if _, err := c.queries.Get(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err, "update_query")
		return
	}
	c.save(ctx, id, http.StatusOK)
}

func (c *SavedQueryController) save(ctx *gin.Context, id string, status int) {
	var req dto.SaveQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid saved query body")
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}
	q, err := c.queries.Save(ctx.Request.Context(), req.ToModel(id))
	if err != nil {
		respondError(ctx, err, "save_query")
		return
	}
	ctx.JSON(status, q)
}

// ListQueries godoc
// @Summary      List saved queries
// @Tags         queries
// @Produce      json
// @Param        index query string false "Only queries for this index pattern"
// @Success      200 {object} dto.ListSavedQueriesResponse
// @Failure      500 {object} model.Response
// @Router       /api/v1/queries [get]
func (c *SavedQueryController) ListQueries(ctx *gin.Context) {
	queries, err := c.queries.List(ctx.Request.Context(), ctx.Query("index"))
	if err != nil {
		respondError(ctx, err, "list_queries")
		return
	}
	ctx.JSON(http.StatusOK, dto.ListSavedQueriesResponse{Queries: queries})
}

// GetQuery godoc
// @Summary      Get a saved query
// @Tags         queries
// @Produce      json
// @Param        id path string true "Saved query ID"
// @Success      200 {object} model.SavedQuery
// @Failure      404 {object} model.Response "Saved query not found"
// @Router       /api/v1/queries/{id} [get]
func (c *SavedQueryController) GetQuery(ctx *gin.Context) {
	q, err := c.queries.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "get_query")
		return
	}
	ctx.JSON(http.StatusOK, q)
}

// DeleteQuery godoc
// @Summary      Delete a saved query
// @Tags         queries
// @Param        id path string true "Saved query ID"
// @Success      204
// @Failure      404 {object} model.Response "Saved query not found"
// @Router       /api/v1/queries/{id} [delete]
func (c *SavedQueryController) DeleteQuery(ctx *gin.Context) {
	if err := c.queries.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err, "delete_query")
		return
	}
	ctx.Status(http.StatusNoContent)
}
