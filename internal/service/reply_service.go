package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/metrics"
	"github.com/qs3c/reply_go_server/internal/model"
	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/reply_go_server/internal/pkg/queue"
	"github.com/qs3c/reply_go_server/internal/pkg/youtube"
	"github.com/qs3c/reply_go_server/internal/repository"
)

var (
	ErrDuplicateReply = errors.New("该评论已有待发布的回复")
	ErrReplyNotFound  = errors.New("回复不存在或状态已变化")
)

// QuotaDeniedError 额度不足，携带提示所需的上下文
type QuotaDeniedError struct {
	Dimension string
	Used      int
	Limit     int
	ResetAt   time.Time
}

func (e *QuotaDeniedError) Error() string {
	if e.Dimension == DimensionMonthly {
		return "本月回复额度已用完"
	}
	return "今日发布额度已用完"
}

// ReplyPoster 回复发布出口
type ReplyPoster interface {
	PostReply(ctx context.Context, accessToken, parentCommentID, text string) (string, error)
}

// CredentialResolver 凭证解析出口
type CredentialResolver interface {
	Resolve(ctx context.Context, userID int64) (string, error)
	Revoke(userID int64) error
}

// ReplyService 回复提交与队列管理
type ReplyService struct {
	replyRepo *repository.ReplyRepository
	usageRepo *repository.UsageRepository
	quota     *QuotaService
	creds     CredentialResolver
	poster    ReplyPoster
	notify    *queue.Queue
	publisher *pubsub.Publisher
	dispatch  *config.DispatchConfig
}

func NewReplyService(
	replyRepo *repository.ReplyRepository,
	usageRepo *repository.UsageRepository,
	quota *QuotaService,
	creds CredentialResolver,
	poster ReplyPoster,
	notify *queue.Queue,
	publisher *pubsub.Publisher,
	dispatch *config.DispatchConfig,
) *ReplyService {
	return &ReplyService{
		replyRepo: replyRepo,
		usageRepo: usageRepo,
		quota:     quota,
		creds:     creds,
		poster:    poster,
		notify:    notify,
		publisher: publisher,
		dispatch:  dispatch,
	}
}

func (s *ReplyService) maxAttempts() int {
	if s.dispatch != nil && s.dispatch.MaxAttempts > 0 {
		return s.dispatch.MaxAttempts
	}
	return 3
}

// Send 提交回复：月度额度硬校验，日度额度决定直发还是排队
func (s *ReplyService) Send(ctx context.Context, userID int64, req *dto.CreateReplyRequest) (*dto.CreateReplyResponse, error) {
	exists, err := s.replyRepo.ExistsPending(userID, req.CommentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateReply
	}

	// 月度闸门：扣不到就整单拒绝
	monthly, err := s.quota.TryConsume(userID, DimensionMonthly, 1)
	if err != nil {
		return nil, err
	}
	if !monthly.Allowed {
		metrics.RepliesSubmitted.WithLabelValues("denied").Inc()
		return nil, &QuotaDeniedError{
			Dimension: DimensionMonthly,
			Used:      monthly.Used,
			Limit:     monthly.Limit,
			ResetAt:   monthly.ResetAt,
		}
	}

	// 日度闸门：扣到了直发，扣不到转队列
	daily, err := s.quota.TryConsume(userID, DimensionDaily, 1)
	if err != nil {
		s.refundMonthly(userID)
		return nil, err
	}

	if daily.Allowed {
		return s.postNow(ctx, userID, req)
	}

	return s.enqueue(ctx, userID, req, fmt.Sprintf("今日发布额度已用完（%d/%d），回复将在次日自动发布", daily.Used, daily.Limit))
}

// postNow 日度额度已扣到，立即发布
func (s *ReplyService) postNow(ctx context.Context, userID int64, req *dto.CreateReplyRequest) (*dto.CreateReplyResponse, error) {
	accessToken, err := s.creds.Resolve(ctx, userID)
	if errors.Is(err, ErrChannelNotConnected) {
		s.refundDaily(userID)
		s.refundMonthly(userID)
		return nil, ErrChannelNotConnected
	}
	if err != nil {
		// 凭证临时取不到，按暂发失败排队
		s.refundDaily(userID)
		return s.enqueue(ctx, userID, req, "发布暂时失败，已加入队列稍后重试")
	}

	postedReplyID, err := s.poster.PostReply(ctx, accessToken, req.CommentID, req.ReplyText)
	if err != nil {
		if errors.Is(err, youtube.ErrTokenInvalid) {
			s.refundDaily(userID)
			s.refundMonthly(userID)
			if revokeErr := s.creds.Revoke(userID); revokeErr != nil {
				log.Printf("Failed to revoke credential for user %d: %v", userID, revokeErr)
			}
			return nil, ErrChannelNotConnected
		}
		if errors.Is(err, youtube.ErrCommentGone) {
			// 目标没了，动作不会再发生，两个维度都退
			s.refundDaily(userID)
			s.refundMonthly(userID)
			return nil, err
		}
		metrics.YouTubeAPICalls.WithLabelValues("post_reply", "error").Inc()
		s.refundDaily(userID)
		return s.enqueue(ctx, userID, req, "发布暂时失败，已加入队列稍后重试")
	}

	metrics.YouTubeAPICalls.WithLabelValues("post_reply", "ok").Inc()

	now := time.Now().UTC()
	reply := &model.QueuedReply{
		UserID:        userID,
		CommentID:     req.CommentID,
		VideoID:       req.VideoID,
		ReplyText:     req.ReplyText,
		Status:        model.ReplyStatusPosted,
		Attempts:      1,
		MaxAttempts:   s.maxAttempts(),
		PostedReplyID: postedReplyID,
		PostedAt:      &now,
	}
	if err := s.replyRepo.Create(reply); err != nil {
		// 已经发出去了，台账写失败只能记日志
		log.Printf("Failed to record posted reply for user %d: %v", userID, err)
	}

	metrics.RepliesSubmitted.WithLabelValues("posted").Inc()
	s.publishEvent(ctx, userID, reply.ID, req.CommentID, pubsub.StatusPosted, "")

	return &dto.CreateReplyResponse{
		ReplyID: reply.ID,
		Status:  "posted",
		Message: "回复已发布",
	}, nil
}

// enqueue 写入待发队列并唤醒派发器
func (s *ReplyService) enqueue(ctx context.Context, userID int64, req *dto.CreateReplyRequest, message string) (*dto.CreateReplyResponse, error) {
	reply := &model.QueuedReply{
		UserID:      userID,
		CommentID:   req.CommentID,
		VideoID:     req.VideoID,
		ReplyText:   req.ReplyText,
		Status:      model.ReplyStatusPending,
		MaxAttempts: s.maxAttempts(),
	}
	if err := s.replyRepo.Create(reply); err != nil {
		s.refundMonthly(userID)
		return nil, err
	}

	if err := s.usageRepo.IncrementQueued(userID, 1); err != nil {
		log.Printf("Failed to increment queued count for user %d: %v", userID, err)
	}

	metrics.RepliesSubmitted.WithLabelValues("queued").Inc()
	s.publishEvent(ctx, userID, reply.ID, req.CommentID, pubsub.StatusQueued, "")
	s.wakeDispatcher(ctx, userID, "enqueue")

	return &dto.CreateReplyResponse{
		ReplyID: reply.ID,
		Status:  "queued",
		Message: message,
	}, nil
}

// List 回复记录列表
func (s *ReplyService) List(userID int64, page, pageSize int, status string) (*dto.ReplyListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	replies, total, err := s.replyRepo.ListByUser(userID, page, pageSize, status)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ReplyListItem, 0, len(replies))
	for _, r := range replies {
		item := dto.ReplyListItem{
			ID:            r.ID,
			CommentID:     r.CommentID,
			VideoID:       r.VideoID,
			ReplyText:     r.ReplyText,
			Status:        r.Status,
			Attempts:      r.Attempts,
			ErrorMessage:  r.ErrorMessage,
			PostedReplyID: r.PostedReplyID,
			CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		}
		if r.PostedAt != nil {
			item.PostedAt = r.PostedAt.Format(time.RFC3339)
		}
		items = append(items, item)
	}

	return &dto.ReplyListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Cancel 取消待发布的回复，退回月度额度
func (s *ReplyService) Cancel(ctx context.Context, userID, replyID int64) error {
	deleted, err := s.replyRepo.DeletePending(userID, replyID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrReplyNotFound
	}

	s.refundMonthly(userID)
	if err := s.usageRepo.DecrementQueued(userID, 1); err != nil {
		log.Printf("Failed to decrement queued count for user %d: %v", userID, err)
	}
	return nil
}

// Retry 失败记录重新入队
// 月度额度在首次提交时已扣且终态失败不退，重试不再扣
func (s *ReplyService) Retry(ctx context.Context, userID, replyID int64) error {
	revived, err := s.replyRepo.ReviveFailed(userID, replyID)
	if err != nil {
		return err
	}
	if revived == 0 {
		return ErrReplyNotFound
	}

	if err := s.usageRepo.IncrementQueued(userID, 1); err != nil {
		log.Printf("Failed to increment queued count for user %d: %v", userID, err)
	}

	s.publishEvent(ctx, userID, replyID, "", pubsub.StatusQueued, "")
	s.wakeDispatcher(ctx, userID, "retry")
	return nil
}

// DrainPending 把用户的待发回复全部置为终态失败，断开频道时调用
// 月度额度不退，和派发终态失败保持同一口径
func (s *ReplyService) DrainPending(ctx context.Context, userID int64, reason string) (int64, error) {
	count, err := s.replyRepo.FailAllPendingForUser(userID, reason)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.usageRepo.DecrementQueued(userID, int(count)); err != nil {
		log.Printf("Failed to decrement queued count for user %d: %v", userID, err)
	}
	metrics.RepliesDispatched.WithLabelValues("drained").Add(float64(count))
	log.Printf("Drained %d pending replies for user %d: %s", count, userID, reason)
	return count, nil
}

func (s *ReplyService) refundMonthly(userID int64) {
	if err := s.quota.RefundMonthly(userID, 1); err != nil {
		log.Printf("Failed to refund monthly quota for user %d: %v", userID, err)
	}
}

func (s *ReplyService) refundDaily(userID int64) {
	if err := s.quota.RefundDaily(userID, 1); err != nil {
		log.Printf("Failed to refund daily quota for user %d: %v", userID, err)
	}
}

func (s *ReplyService) publishEvent(ctx context.Context, userID, replyID int64, commentID, status, errMsg string) {
	if s.publisher == nil {
		return
	}
	event := &pubsub.ReplyEvent{
		UserID:    userID,
		ReplyID:   replyID,
		CommentID: commentID,
		Status:    status,
		Error:     errMsg,
	}
	if err := s.publisher.PublishReplyEvent(ctx, event); err != nil {
		log.Printf("Failed to publish reply event: %v", err)
	}
}

func (s *ReplyService) wakeDispatcher(ctx context.Context, userID int64, reason string) {
	if s.notify == nil {
		return
	}
	msg := &queue.NotifyMessage{
		UserID:     userID,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.notify.Push(ctx, msg); err != nil {
		log.Printf("Failed to push dispatch notification: %v", err)
	}
}
