package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/api/handler"
	"github.com/qs3c/reply_go_server/internal/api/middleware"
)

type Router struct {
	userHandler      *handler.UserHandler
	channelHandler   *handler.ChannelHandler
	replyHandler     *handler.ReplyHandler
	usageHandler     *handler.UsageHandler
	modelsHandler    *handler.ModelsHandler
	planHandler      *handler.PlanHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	userHandler *handler.UserHandler,
	channelHandler *handler.ChannelHandler,
	replyHandler *handler.ReplyHandler,
	usageHandler *handler.UsageHandler,
	modelsHandler *handler.ModelsHandler,
	planHandler *handler.PlanHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		userHandler:      userHandler,
		channelHandler:   channelHandler,
		replyHandler:     replyHandler,
		usageHandler:     usageHandler,
		modelsHandler:    modelsHandler,
		planHandler:      planHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - OAuth 回调（Google 浏览器跳转不带 JWT，state 对应用户）
		api.GET("/channel/callback", r.channelHandler.Callback)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
				user.POST("/avatar", r.userHandler.UploadAvatar)
			}

			// 频道绑定
			authenticated.GET("/channel", r.channelHandler.Status)
			authenticated.GET("/channel/connect", r.channelHandler.Connect)
			authenticated.DELETE("/channel", r.channelHandler.Disconnect)

			// 回复
			replies := authenticated.Group("/replies")
			{
				replies.POST("", r.replyHandler.Send)
				replies.GET("", r.replyHandler.List)
				replies.POST("/draft", r.replyHandler.Draft)
				replies.DELETE("/:id", r.replyHandler.Cancel)
				replies.POST("/:id/retry", r.replyHandler.Retry)
			}

			// 用量与模型
			authenticated.GET("/usage", r.usageHandler.Get)
			authenticated.GET("/models", r.modelsHandler.List)
		}
	}

	// 内部接口 - 计费系统的档位变更回调，凭 X-Internal-Token 认证
	engine.POST("/internal/plan-events", r.planHandler.ApplyEvent)

	return engine
}
