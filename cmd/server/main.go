package main

import (
	"context"
	"fmt"
	"log"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/api"
	"github.com/qs3c/reply_go_server/internal/api/handler"
	"github.com/qs3c/reply_go_server/internal/database"
	"github.com/qs3c/reply_go_server/internal/pkg/oauth"
	"github.com/qs3c/reply_go_server/internal/pkg/oss"
	"github.com/qs3c/reply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/reply_go_server/internal/pkg/queue"
	"github.com/qs3c/reply_go_server/internal/pkg/seal"
	"github.com/qs3c/reply_go_server/internal/pkg/ws"
	"github.com/qs3c/reply_go_server/internal/pkg/youtube"
	"github.com/qs3c/reply_go_server/internal/repository"
	"github.com/qs3c/reply_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 凭证加密密钥
	sealer, err := seal.New(cfg.OAuth.TokenKey)
	if err != nil {
		log.Fatalf("Failed to init token sealer: %v", err)
	}

	// 初始化 OSS（可选，仅头像上传用）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// Google OAuth、YouTube API、唤醒队列、事件发布
	google := oauth.NewGoogleOAuth(
		cfg.OAuth.Google.ClientID,
		cfg.OAuth.Google.ClientSecret,
		cfg.OAuth.Google.RedirectURI,
	)
	stateStore := oauth.NewStateStore(rdb)
	ytClient := youtube.NewClient(&cfg.YouTube)
	notifyQueue := queue.NewQueue(rdb, cfg.Dispatch.NotifyChannel)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	replyRepo := repository.NewReplyRepository(db)
	credRepo := repository.NewCredentialRepository(db)
	planEventRepo := repository.NewPlanEventRepository(db)

	// 初始化 Service
	catalog := service.NewPlanCatalog(cfg)
	quotaService := service.NewQuotaService(usageRepo, userRepo, catalog)
	usageService := service.NewUsageService(usageRepo, userRepo, planEventRepo, catalog)
	credentialService := service.NewCredentialService(credRepo, sealer, google, stateStore, ytClient)
	replyService := service.NewReplyService(replyRepo, usageRepo, quotaService, credentialService, ytClient, notifyQueue, publisher, &cfg.Dispatch)
	draftService := service.NewDraftService(userRepo, catalog)
	userService := service.NewUserService(userRepo, ossClient)

	// 初始化 Handler
	userHandler := handler.NewUserHandler(userService)
	channelHandler := handler.NewChannelHandler(credentialService, replyService)
	replyHandler := handler.NewReplyHandler(replyService, draftService)
	usageHandler := handler.NewUsageHandler(usageService)
	modelsHandler := handler.NewModelsHandler(userService, catalog)
	planHandler := handler.NewPlanHandler(usageService, cfg.Server.InternalToken)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 订阅 worker 发布的回复状态变更，经 WebSocket 推给在线用户
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(event *pubsub.ReplyEvent) {
			if err := wsHub.SendToUser(event.UserID, &ws.Message{Type: event.Type, Data: event}); err != nil {
				log.Printf("Failed to push reply event to user %d: %v", event.UserID, err)
			}
		})
		if err != nil {
			log.Printf("Reply event subscriber stopped: %v", err)
		}
	}()
	log.Println("Reply event subscriber started")

	// 初始化 Router
	router := api.NewRouter(
		userHandler,
		channelHandler,
		replyHandler,
		usageHandler,
		modelsHandler,
		planHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
