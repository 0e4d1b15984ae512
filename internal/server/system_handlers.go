package server

import (
	"net/http"

	"github.com/xSkywa1ker/dance-bot/internal/api"
	"github.com/xSkywa1ker/dance-bot/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// NotificationQueue reports how many messages await delivery, for the
// admin dashboard.
func NotificationQueue(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"queue_length": svc.QueueLength(c.Request.Context()),
		})
	}
}
