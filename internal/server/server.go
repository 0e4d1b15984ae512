package server

import (
	"context"
	"net/http"

	"github.com/xSkywa1ker/dance-bot/internal/audit"
	"github.com/xSkywa1ker/dance-bot/internal/auth"
	"github.com/xSkywa1ker/dance-bot/internal/booking"
	"github.com/xSkywa1ker/dance-bot/internal/clock"
	"github.com/xSkywa1ker/dance-bot/internal/config"
	"github.com/xSkywa1ker/dance-bot/internal/direction"
	"github.com/xSkywa1ker/dance-bot/internal/notify"
	"github.com/xSkywa1ker/dance-bot/internal/payment"
	"github.com/xSkywa1ker/dance-bot/internal/payment/gateway"
	"github.com/xSkywa1ker/dance-bot/internal/product"
	"github.com/xSkywa1ker/dance-bot/internal/schedule"
	"github.com/xSkywa1ker/dance-bot/internal/subscription"
	"github.com/xSkywa1ker/dance-bot/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Deps carries the long-lived services the HTTP layer exposes.
type Deps struct {
	Bookings *booking.Service
	Payments *payment.Service
	Arbiter  *subscription.Arbiter
	Gateway  gateway.Gateway
	Notify   *notify.Service
	Clock    clock.Clock
}

type Server struct {
	router  *gin.Engine
	db      *sqlx.DB
	config  *config.Config
	httpSrv *http.Server
}

func New(db *sqlx.DB, cfg *config.Config, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())

	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	userHandler := user.NewHandler(db)
	directionHandler := direction.NewHandler(db)
	scheduleHandler := schedule.NewHandler(db)
	productHandler := product.NewHandler(db)
	subscriptionHandler := subscription.NewHandler(db, deps.Arbiter, deps.Clock)
	paymentHandler := payment.NewHandler(db, deps.Payments, deps.Gateway)
	bookingHandler := booking.NewHandler(deps.Bookings)
	auditHandler := audit.NewHandler(db)

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.POST("/webhooks/payment", paymentHandler.Webhook)

	adminAuth := router.Group("/admin/auth")
	adminAuth.Use(RateLimitMiddleware(5, 10))
	{
		adminAuth.POST("/login", authHandler.Login)
		adminAuth.POST("/refresh", authHandler.Refresh)
	}

	admin := router.Group("/admin")
	admin.Use(auth.AuthMiddleware(cfg.JWTSecret), auth.RequireRole("admin"))
	{
		admin.GET("/directions", directionHandler.List)
		admin.POST("/directions", directionHandler.Create)
		admin.PATCH("/directions/:directionID", directionHandler.Update)

		admin.GET("/slots", scheduleHandler.List)
		admin.POST("/slots", scheduleHandler.Create)
		admin.PATCH("/slots/:slotID", scheduleHandler.Update)
		admin.POST("/slots/:slotID/cancel", bookingHandler.CancelSlot)
		admin.GET("/slots/:slotID/bookings", bookingHandler.ListForSlot)
		admin.POST("/bookings/:bookingID/cancel", bookingHandler.CancelAsAdmin)
		admin.POST("/bookings/:bookingID/attendance", bookingHandler.MarkAttendance)
		admin.GET("/bookings/stats", bookingHandler.Stats)

		admin.GET("/products", productHandler.List)
		admin.POST("/products", productHandler.Create)
		admin.PATCH("/products/:productID", productHandler.Update)

		admin.GET("/users", userHandler.List)
		admin.POST("/subscriptions/grant", subscriptionHandler.Grant)
		admin.GET("/payments", paymentHandler.List)
		admin.GET("/audit", auditHandler.List)
		admin.GET("/notifications/queue", NotificationQueue(deps.Notify))
	}

	bot := router.Group("/bot")
	bot.Use(auth.BotAPIKeyMiddleware(cfg.BotAPIKey))
	{
		bot.POST("/users", userHandler.Register)
		bot.GET("/users/:tgID", userHandler.GetByTgID)
		bot.GET("/users/:tgID/bookings", bookingHandler.ListForUser)
		bot.GET("/users/:tgID/subscriptions", subscriptionHandler.ListByTgUser)

		bot.GET("/directions", directionHandler.List)
		bot.GET("/slots", scheduleHandler.List)
		bot.GET("/products", productHandler.List)

		bot.POST("/bookings", bookingHandler.Reserve)
		bot.POST("/bookings/:bookingID/cancel", bookingHandler.Cancel)
		bot.POST("/payments", paymentHandler.Purchase)
	}

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.httpSrv = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Api-Key, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
