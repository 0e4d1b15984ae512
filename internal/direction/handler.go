package direction

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/xSkywa1ker/dance-bot/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	repo *Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

func (h *Handler) List(c *gin.Context) {
	onlyActive := c.Query("all") == ""

	directions, err := h.repo.List(c.Request.Context(), onlyActive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load directions"})
		return
	}

	c.JSON(http.StatusOK, directions)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateDirectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	d, err := h.repo.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create direction"})
		return
	}

	c.JSON(http.StatusCreated, d)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("directionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid direction id"})
		return
	}

	var req UpdateDirectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	d, err := h.repo.Update(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "direction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update direction"})
		return
	}

	c.JSON(http.StatusOK, d)
}
