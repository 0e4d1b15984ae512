package subscription

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/xSkywa1ker/dance-bot/internal/api"
	"github.com/xSkywa1ker/dance-bot/internal/audit"
	"github.com/xSkywa1ker/dance-bot/internal/auth"
	"github.com/xSkywa1ker/dance-bot/internal/clock"
	dbpkg "github.com/xSkywa1ker/dance-bot/internal/db"
	"github.com/xSkywa1ker/dance-bot/internal/logger"
	"github.com/xSkywa1ker/dance-bot/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	db      *sqlx.DB
	repo    *Repository
	arbiter *Arbiter
	users   *user.Repository
	audit   *audit.Repository
	clock   clock.Clock
}

func NewHandler(db *sqlx.DB, arbiter *Arbiter, clk clock.Clock) *Handler {
	return &Handler{
		db:      db,
		repo:    NewRepository(db),
		arbiter: arbiter,
		users:   user.NewRepository(db),
		audit:   audit.NewRepository(db),
		clock:   clk,
	}
}

func (h *Handler) ListByTgUser(c *gin.Context) {
	tgID, err := strconv.ParseInt(c.Param("tgID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid telegram id"})
		return
	}

	u, err := h.users.FindByTgID(c.Request.Context(), tgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load user"})
		return
	}

	subs, err := h.repo.ListActiveByUser(c.Request.Context(), u.ID, h.clock.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// Grant lets an administrator hand a subscription to a user without a
// payment, e.g. for promotions or offline sales.
func (h *Handler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	adminID, _ := auth.GetAdminID(c)
	ctx := c.Request.Context()
	now := h.clock.Now()

	var sub *Subscription
	err := dbpkg.InTx(ctx, h.db, func(tx *sqlx.Tx) error {
		var txErr error
		sub, txErr = h.arbiter.MintFromProduct(ctx, tx, req.UserID, req.ProductID, now)
		if txErr != nil {
			return txErr
		}
		return h.audit.Record(ctx, tx, audit.ActorAdmin, &adminID, "subscription_granted", gin.H{
			"user_id":         req.UserID,
			"product_id":      req.ProductID,
			"subscription_id": sub.ID,
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotASubscriptionProduct) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "product is not a subscription"})
			return
		}
		logger.Errorf("Failed to grant subscription to user %d: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to grant subscription"})
		return
	}

	logger.Info("Subscription granted", "user_id", req.UserID, "subscription_id", sub.ID)
	c.JSON(http.StatusCreated, sub)
}
