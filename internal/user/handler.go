package user

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

// Register is called by the bot on every /start; it is idempotent.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	u, err := h.repo.GetOrCreateByTgID(c.Request.Context(), req.TgID, req.Name, req.Phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to register user"})
		return
	}

	c.JSON(http.StatusOK, u)
}

func (h *Handler) GetByTgID(c *gin.Context) {
	tgID, err := strconv.ParseInt(c.Param("tgID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid telegram id"})
		return
	}

	u, err := h.repo.FindByTgID(c.Request.Context(), tgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load users"})
		return
	}

	c.JSON(http.StatusOK, users)
}
