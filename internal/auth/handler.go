package auth

import (
	"net/http"

	"github.com/xSkywa1ker/dance-bot/internal/api"
	"github.com/xSkywa1ker/dance-bot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type Handler struct {
	repo      *Repository
	jwtSecret string
}

func NewHandler(db *sqlx.DB, jwtSecret string) *Handler {
	return &Handler{repo: NewRepository(db), jwtSecret: jwtSecret}
}

// Login handles POST /admin/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	admin, err := h.repo.FindByLogin(c.Request.Context(), req.Login)
	if err != nil {
		logger.Errorf("Failed to look up admin %q: %v", req.Login, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "login failed"})
		return
	}
	if admin == nil || !CheckPassword(admin.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid credentials"})
		return
	}

	access, refresh, err := GenerateTokens(admin.ID, admin.Login, admin.Role, h.jwtSecret)
	if err != nil {
		logger.Errorf("Failed to issue tokens for admin %d: %v", admin.ID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "login failed"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: access, RefreshToken: refresh})
}

// Refresh handles POST /admin/auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	access, _, err := RefreshAccessToken(req.RefreshToken, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: access})
}
