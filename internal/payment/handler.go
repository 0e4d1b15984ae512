package payment

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/xSkywa1ker/dance-bot/internal/api"
	"github.com/xSkywa1ker/dance-bot/internal/logger"
	"github.com/xSkywa1ker/dance-bot/internal/payment/gateway"
	"github.com/xSkywa1ker/dance-bot/internal/product"
	"github.com/xSkywa1ker/dance-bot/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	db       *sqlx.DB
	repo     *Repository
	service  *Service
	gw       gateway.Gateway
	users    *user.Repository
	products *product.Repository
}

func NewHandler(db *sqlx.DB, service *Service, gw gateway.Gateway) *Handler {
	return &Handler{
		db:       db,
		repo:     NewRepository(db),
		service:  service,
		gw:       gw,
		users:    user.NewRepository(db),
		products: product.NewRepository(db),
	}
}

type PurchaseRequest struct {
	TgID      int64 `json:"tg_id" binding:"required"`
	ProductID int   `json:"product_id" binding:"required"`
}

type PurchaseResponse struct {
	Payment         *Payment `json:"payment"`
	ConfirmationURL *string  `json:"confirmation_url,omitempty"`
}

// Purchase starts a product payment for a bot user.
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()

	u, err := h.users.FindByTgID(ctx, req.TgID)
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
		return
	}

	p, err := h.products.GetByID(ctx, h.db, req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load product"})
		return
	}
	if !p.IsActive {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "product is not for sale"})
		return
	}

	pay, err := h.service.CreateForProduct(ctx, u.ID, p.ID, p.PriceCents)
	if err != nil && !errors.Is(err, ErrGatewayUnavailable) {
		logger.Errorf("Failed to create payment for user %d: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create payment"})
		return
	}

	c.JSON(http.StatusCreated, PurchaseResponse{
		Payment:         pay,
		ConfirmationURL: pay.ConfirmationURL,
	})
}

// Webhook receives provider callbacks. Retries are safe: applying the
// same terminal status twice is a no-op.
func (h *Handler) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "failed to read body"})
		return
	}

	parsed, err := h.gw.ParseWebhook(raw)
	if err != nil || parsed.OrderID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid webhook"})
		return
	}

	var providerPaymentID *string
	if parsed.ProviderPaymentID != "" {
		providerPaymentID = &parsed.ProviderPaymentID
	}

	_, err = h.service.Apply(c.Request.Context(), parsed.OrderID, StatusFromProvider(parsed.Status), providerPaymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "payment not found"})
			return
		}
		logger.Errorf("Failed to apply webhook for order %s: %v", parsed.OrderID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to apply payment"})
		return
	}

	c.JSON(http.StatusOK, api.StatusResponse{Status: "ok"})
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	payments, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load payments"})
		return
	}

	c.JSON(http.StatusOK, payments)
}
