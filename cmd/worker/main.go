package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/database"
	"github.com/qs3c/reply_go_server/internal/pkg/cron"
	"github.com/qs3c/reply_go_server/internal/pkg/email"
	"github.com/qs3c/reply_go_server/internal/pkg/lock"
	"github.com/qs3c/reply_go_server/internal/pkg/oauth"
	"github.com/qs3c/reply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/reply_go_server/internal/pkg/queue"
	"github.com/qs3c/reply_go_server/internal/pkg/seal"
	"github.com/qs3c/reply_go_server/internal/pkg/youtube"
	"github.com/qs3c/reply_go_server/internal/repository"
	"github.com/qs3c/reply_go_server/internal/service"
	"github.com/qs3c/reply_go_server/internal/worker"
)

const dispatchLockKey = "dispatch:lock"

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

	// 初始化邮件通知（可选）
	var notifier worker.Notifier
	if cfg.Email.SMTPHost != "" {
		notifier = email.NewService(&cfg.Email)
		log.Println("Email notifier enabled")
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

	// 创建派发器
	dispatcher := worker.NewDispatcher(
		replyRepo,
		usageRepo,
		userRepo,
		credRepo,
		quotaService,
		usageService,
		catalog,
		credentialService,
		ytClient,
		publisher,
		notifier,
		&cfg.Dispatch,
	)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	// 派发互斥锁：多实例部署时同一时刻只跑一轮
	lockTTL := time.Duration(cfg.Dispatch.LockTTLSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	dispatchMutex := lock.NewMutex(rdb, dispatchLockKey, lockTTL)

	runDispatch := func() {
		ok, err := dispatchMutex.TryLock(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Failed to acquire dispatch lock: %v", err)
			}
			return
		}
		if !ok {
			return // 其他实例正在派发
		}
		defer dispatchMutex.Unlock(ctx)

		if _, err := dispatcher.Run(ctx); err != nil {
			log.Printf("Dispatch pass aborted: %v", err)
		}
	}

	// 定时派发 + 每日额度滚动 + 终态记录清理
	cronService := cron.NewService(usageService, replyRepo, runDispatch,
		cfg.Dispatch.IntervalMinutes, cfg.Dispatch.RetentionDays)
	cronService.Start()
	defer cronService.Stop()

	log.Printf("Worker started, dispatch interval: %d min", cfg.Dispatch.IntervalMinutes)

	// 启动即跑一轮，接住停机期间积压的回复
	runDispatch()

	// 入队唤醒：API 侧每入队一条就推一次，这里阻塞等待
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := notifyQueue.Pop(ctx, 5*time.Second)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("Failed to pop notify message: %v", err)
					continue
				}

				if msg == nil {
					continue // 超时，继续等待
				}

				log.Printf("Dispatch wakeup: user=%d reason=%s", msg.UserID, msg.Reason)

				// 一轮派发覆盖所有积压的入队，清掉多余唤醒避免空转
				if err := notifyQueue.Drain(ctx); err != nil && ctx.Err() == nil {
					log.Printf("Failed to drain notify queue: %v", err)
				}
				runDispatch()
			}
		}
	}()

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
