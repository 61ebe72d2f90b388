package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/embed"
	"github.com/weibaohui/negotiator/internal/handler"
)

func Setup(
	cfg *config.Config,
	negotiationHandler *handler.NegotiationHandler,
	hub *handler.Hub,
	metricsHandler http.Handler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	// WebSocket 需要 Hijack，/metrics 由 promhttp 自行压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
	r.GET("/ws", hub.ServeWS)

	api := r.Group("/api")
	{
		api.POST("/start_negotiation", negotiationHandler.Start)
		api.POST("/buyer_respond", negotiationHandler.BuyerRespond)
		api.POST("/seller_respond", negotiationHandler.SellerRespond)
		api.POST("/auto_negotiate", negotiationHandler.AutoNegotiate)
		api.GET("/negotiation_status", negotiationHandler.Status)
		api.POST("/cancel", negotiationHandler.Cancel)
		api.POST("/voice/listen", negotiationHandler.Listen)
	}

	// 控制台页面必须在API路由之后设置，确保API请求优先匹配
	embed.SetupRouter(r)

	return r
}
