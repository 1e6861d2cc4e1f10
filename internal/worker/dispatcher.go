package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/metrics"
	"github.com/qs3c/reply_go_server/internal/model"
	"github.com/qs3c/reply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/reply_go_server/internal/pkg/youtube"
	"github.com/qs3c/reply_go_server/internal/repository"
	"github.com/qs3c/reply_go_server/internal/service"
)

const defaultBatchSize = 100

// DrainReason 凭证失效时批量置失败的原因，会出现在用户的回复记录里
const DrainReason = "帐号未连接或授权已失效"

// Notifier 终态邮件通知出口，生产实现是 email.Service
type Notifier interface {
	SendReplyFailureNotice(to, commentID, reason string) error
	SendChannelDisconnectedNotice(to, channelTitle string) error
}

// Result 一轮派发的账目
type Result struct {
	Posted   int // 成功发布
	Failed   int // 消耗了一次尝试（含转终态）
	Drained  int // 凭证失效批量置失败
	Deferred int // 日度容量不足，留在队列
	Skipped  int // 临时故障跳过，本轮不动
}

// Dispatcher 队列派发器：按额度把待发回复推到 YouTube
type Dispatcher struct {
	replyRepo *repository.ReplyRepository
	usageRepo *repository.UsageRepository
	userRepo  *repository.UserRepository
	credRepo  *repository.CredentialRepository
	quota     *service.QuotaService
	usage     *service.UsageService
	catalog   *service.PlanCatalog
	creds     service.CredentialResolver
	poster    service.ReplyPoster
	publisher *pubsub.Publisher
	notifier  Notifier
	cfg       *config.DispatchConfig
}

func NewDispatcher(
	replyRepo *repository.ReplyRepository,
	usageRepo *repository.UsageRepository,
	userRepo *repository.UserRepository,
	credRepo *repository.CredentialRepository,
	quota *service.QuotaService,
	usage *service.UsageService,
	catalog *service.PlanCatalog,
	creds service.CredentialResolver,
	poster service.ReplyPoster,
	publisher *pubsub.Publisher,
	notifier Notifier,
	cfg *config.DispatchConfig,
) *Dispatcher {
	return &Dispatcher{
		replyRepo: replyRepo,
		usageRepo: usageRepo,
		userRepo:  userRepo,
		credRepo:  credRepo,
		quota:     quota,
		usage:     usage,
		catalog:   catalog,
		creds:     creds,
		poster:    poster,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func (d *Dispatcher) batchSize() int {
	if d.cfg != nil && d.cfg.BatchSize > 0 {
		return d.cfg.BatchSize
	}
	return defaultBatchSize
}

// Run 执行一轮派发
// 用户之间互不影响，同一用户内按提交顺序发；存储不可用直接中止本轮
func (d *Dispatcher) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	entries, err := d.replyRepo.ListPending(d.batchSize())
	if err != nil {
		return nil, err
	}

	metrics.DispatchBatchSize.Observe(float64(len(entries)))

	if len(entries) == 0 {
		d.updateQueueDepth()
		return result, nil
	}

	// 按用户分组，保持最早提交的用户先处理
	order := make([]int64, 0)
	byUser := make(map[int64][]*model.QueuedReply)
	for _, entry := range entries {
		if _, ok := byUser[entry.UserID]; !ok {
			order = append(order, entry.UserID)
		}
		byUser[entry.UserID] = append(byUser[entry.UserID], entry)
	}

	for _, userID := range order {
		if err := d.dispatchUser(ctx, userID, byUser[userID], result); err != nil {
			return nil, err
		}
	}

	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	d.updateQueueDepth()

	log.Printf("Dispatch pass done: posted=%d failed=%d drained=%d deferred=%d skipped=%d",
		result.Posted, result.Failed, result.Drained, result.Deferred, result.Skipped)
	return result, nil
}

// dispatchUser 处理单个用户的分片，返回 error 仅在存储不可用时
func (d *Dispatcher) dispatchUser(ctx context.Context, userID int64, entries []*model.QueuedReply, result *Result) error {
	accessToken, err := d.creds.Resolve(ctx, userID)
	if errors.Is(err, service.ErrChannelNotConnected) {
		return d.drainUser(ctx, userID, entries, result)
	}
	if err != nil {
		// 临时故障（续期超时等），整组跳过，下一轮再试
		log.Printf("Failed to resolve credential for user %d, skipping: %v", userID, err)
		result.Skipped += len(entries)
		return nil
	}

	counter, user, err := d.usage.EnsureCurrent(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("User %d not found, skipping %d pending replies", userID, len(entries))
			result.Skipped += len(entries)
			return nil
		}
		return err
	}

	// 容量快路径：今天已经打满就整组延后，不消耗尝试次数
	limits := d.catalog.LimitsFor(user.PlanID)
	if !limits.DailyUnlimited() && limits.DailyPostCap-counter.DailyPostCount <= 0 {
		result.Deferred += len(entries)
		metrics.RepliesDispatched.WithLabelValues("deferred").Add(float64(len(entries)))
		return nil
	}

	for i, entry := range entries {
		decision, err := d.quota.TryConsume(userID, service.DimensionDaily, 1)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			// 并发扣走了最后的容量，剩余的留到明天
			deferred := len(entries) - i
			result.Deferred += deferred
			metrics.RepliesDispatched.WithLabelValues("deferred").Add(float64(deferred))
			return nil
		}

		postedReplyID, err := d.poster.PostReply(ctx, accessToken, entry.CommentID, entry.ReplyText)
		if err != nil {
			d.refundDaily(userID)

			if errors.Is(err, youtube.ErrTokenInvalid) {
				// 发到一半凭证失效，剩余的连同这条一起清掉
				return d.drainUser(ctx, userID, entries[i:], result)
			}
			if errors.Is(err, youtube.ErrCommentGone) {
				d.failTerminal(ctx, userID, entry, err.Error())
				result.Failed++
				continue
			}

			d.failTransient(ctx, userID, entry, err.Error())
			result.Failed++
			continue
		}

		if err := d.replyRepo.MarkPosted(entry.ID, postedReplyID); err != nil {
			log.Printf("Failed to mark reply %d posted: %v", entry.ID, err)
		}
		d.decrementQueued(userID, 1)
		result.Posted++
		metrics.RepliesDispatched.WithLabelValues("posted").Inc()
		metrics.YouTubeAPICalls.WithLabelValues("post_reply", "ok").Inc()
		d.publishEvent(ctx, userID, entry, pubsub.StatusPosted, "")
	}

	return nil
}

// drainUser 凭证不可用：该用户所有待发回复直接置终态失败
func (d *Dispatcher) drainUser(ctx context.Context, userID int64, entries []*model.QueuedReply, result *Result) error {
	count, err := d.replyRepo.FailAllPendingForUser(userID, DrainReason)
	if err != nil {
		return err
	}
	if count > 0 {
		d.decrementQueued(userID, int(count))
	}

	if err := d.creds.Revoke(userID); err != nil {
		log.Printf("Failed to revoke credential for user %d: %v", userID, err)
	}

	result.Drained += int(count)
	metrics.RepliesDispatched.WithLabelValues("drained").Add(float64(count))

	for _, entry := range entries {
		d.publishEvent(ctx, userID, entry, pubsub.StatusFailed, DrainReason)
	}

	log.Printf("Drained %d pending replies for user %d: credential invalid", count, userID)
	d.notifyDisconnected(userID)
	return nil
}

func (d *Dispatcher) failTerminal(ctx context.Context, userID int64, entry *model.QueuedReply, errMsg string) {
	if err := d.replyRepo.MarkFailedTerminal(entry.ID, errMsg); err != nil {
		log.Printf("Failed to mark reply %d failed: %v", entry.ID, err)
		return
	}
	d.decrementQueued(userID, 1)
	metrics.RepliesDispatched.WithLabelValues("failed").Inc()
	d.publishEvent(ctx, userID, entry, pubsub.StatusFailed, errMsg)
	d.notifyFailure(userID, entry.CommentID, errMsg)
}

func (d *Dispatcher) failTransient(ctx context.Context, userID int64, entry *model.QueuedReply, errMsg string) {
	terminal, err := d.replyRepo.MarkFailed(entry.ID, errMsg)
	if err != nil {
		log.Printf("Failed to record failure for reply %d: %v", entry.ID, err)
		return
	}
	metrics.RepliesDispatched.WithLabelValues("failed").Inc()
	metrics.YouTubeAPICalls.WithLabelValues("post_reply", "error").Inc()

	if !terminal {
		log.Printf("Reply %d failed (attempt %d/%d), will retry: %s",
			entry.ID, entry.Attempts+1, entry.MaxAttempts, errMsg)
		return
	}

	// 尝试次数耗尽，转终态并通知用户
	d.decrementQueued(userID, 1)
	d.publishEvent(ctx, userID, entry, pubsub.StatusFailed, errMsg)
	d.notifyFailure(userID, entry.CommentID, errMsg)
}

func (d *Dispatcher) refundDaily(userID int64) {
	if err := d.quota.RefundDaily(userID, 1); err != nil {
		log.Printf("Failed to refund daily quota for user %d: %v", userID, err)
	}
}

func (d *Dispatcher) decrementQueued(userID int64, n int) {
	if err := d.usageRepo.DecrementQueued(userID, n); err != nil {
		log.Printf("Failed to decrement queued count for user %d: %v", userID, err)
	}
}

func (d *Dispatcher) publishEvent(ctx context.Context, userID int64, entry *model.QueuedReply, status, errMsg string) {
	if d.publisher == nil {
		return
	}
	event := &pubsub.ReplyEvent{
		UserID:    userID,
		ReplyID:   entry.ID,
		CommentID: entry.CommentID,
		Status:    status,
		Error:     errMsg,
	}
	if err := d.publisher.PublishReplyEvent(ctx, event); err != nil {
		log.Printf("Failed to publish reply event: %v", err)
	}
}

func (d *Dispatcher) notifyFailure(userID int64, commentID, reason string) {
	if d.notifier == nil {
		return
	}
	user, err := d.userRepo.GetByID(userID)
	if err != nil {
		log.Printf("Failed to load user %d for failure notice: %v", userID, err)
		return
	}
	if err := d.notifier.SendReplyFailureNotice(user.Email, commentID, reason); err != nil {
		log.Printf("Failed to send failure notice to %s: %v", user.Email, err)
	}
}

func (d *Dispatcher) notifyDisconnected(userID int64) {
	if d.notifier == nil {
		return
	}
	user, err := d.userRepo.GetByID(userID)
	if err != nil {
		log.Printf("Failed to load user %d for disconnect notice: %v", userID, err)
		return
	}

	channelTitle := ""
	if cred, err := d.credRepo.GetByUserID(userID); err == nil {
		channelTitle = cred.ChannelTitle
	}

	if err := d.notifier.SendChannelDisconnectedNotice(user.Email, channelTitle); err != nil {
		log.Printf("Failed to send disconnect notice to %s: %v", user.Email, err)
	}
}

func (d *Dispatcher) updateQueueDepth() {
	depth, err := d.replyRepo.CountPending()
	if err != nil {
		return
	}
	metrics.QueueDepth.Set(float64(depth))
}
