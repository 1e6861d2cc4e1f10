package service

import (
	"errors"
	"time"

	"github.com/qs3c/reply_go_server/internal/metrics"
	"github.com/qs3c/reply_go_server/internal/repository"
)

const (
	DimensionMonthly = "monthly_replies"
	DimensionDaily   = "daily_posts"
)

var ErrUnknownDimension = errors.New("未知的配额维度")

// Decision 一次扣减的裁决，预期中的拒绝是值而不是错误
type Decision struct {
	Allowed   bool
	Queueable bool // 拒绝时是否可以转入队列等待
	Used      int
	Limit     int
	Unlimited bool
	ResetAt   time.Time
}

// QuotaService 配额闸门：扣减必须原子，出错一律按拒绝处理
type QuotaService struct {
	usageRepo *repository.UsageRepository
	userRepo  *repository.UserRepository
	catalog   *PlanCatalog
}

func NewQuotaService(
	usageRepo *repository.UsageRepository,
	userRepo *repository.UserRepository,
	catalog *PlanCatalog,
) *QuotaService {
	return &QuotaService{
		usageRepo: usageRepo,
		userRepo:  userRepo,
		catalog:   catalog,
	}
}

// TryConsume 原子扣减 n 个单位
// 先补周期（建行 + 惰性滚动），再用单条带条件的 UPDATE 做判定加扣减，
// 没有任何读后写窗口，并发扣减不会超限
func (s *QuotaService) TryConsume(userID int64, dimension string, n int) (*Decision, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	monthStart := StartOfMonth(now)
	dayStart := StartOfDay(now)

	counter, err := s.usageRepo.EnsureCounter(userID, user.PlanID, monthStart, dayStart)
	if err != nil {
		return nil, err
	}
	if counter.MonthStart.Before(monthStart) || counter.DayStart.Before(dayStart) {
		if err := s.usageRepo.RollForward(userID, monthStart, dayStart); err != nil {
			return nil, err
		}
	}

	limits := s.catalog.LimitsFor(user.PlanID)

	switch dimension {
	case DimensionMonthly:
		return s.consumeMonthly(userID, n, limits, now)
	case DimensionDaily:
		return s.consumeDaily(userID, n, limits, now)
	default:
		return nil, ErrUnknownDimension
	}
}

func (s *QuotaService) consumeMonthly(userID int64, n int, limits PlanLimits, now time.Time) (*Decision, error) {
	resetAt := NextMonthStart(now)

	if limits.MonthlyUnlimited() {
		if err := s.usageRepo.AddMonthly(userID, n); err != nil {
			return nil, err
		}
		metrics.QuotaConsumed.WithLabelValues("monthly").Add(float64(n))
		used, err := s.monthlyUsed(userID)
		if err != nil {
			return nil, err
		}
		return &Decision{Allowed: true, Used: used, Unlimited: true, ResetAt: resetAt}, nil
	}

	ok, err := s.usageRepo.ConsumeMonthly(userID, n, limits.MonthlyReplyLimit)
	if err != nil {
		return nil, err
	}

	used, err := s.monthlyUsed(userID)
	if err != nil {
		return nil, err
	}

	if !ok {
		// 月度额度是硬上限，不提供排队出路
		metrics.QuotaDenials.WithLabelValues("monthly").Inc()
		return &Decision{Allowed: false, Queueable: false, Used: used, Limit: limits.MonthlyReplyLimit, ResetAt: resetAt}, nil
	}

	metrics.QuotaConsumed.WithLabelValues("monthly").Add(float64(n))
	return &Decision{Allowed: true, Used: used, Limit: limits.MonthlyReplyLimit, ResetAt: resetAt}, nil
}

func (s *QuotaService) consumeDaily(userID int64, n int, limits PlanLimits, now time.Time) (*Decision, error) {
	resetAt := NextDayStart(now)

	if limits.DailyUnlimited() {
		if err := s.usageRepo.AddDaily(userID, n); err != nil {
			return nil, err
		}
		metrics.QuotaConsumed.WithLabelValues("daily").Add(float64(n))
		used, err := s.dailyUsed(userID)
		if err != nil {
			return nil, err
		}
		return &Decision{Allowed: true, Used: used, Unlimited: true, ResetAt: resetAt}, nil
	}

	ok, err := s.usageRepo.ConsumeDaily(userID, n, limits.DailyPostCap)
	if err != nil {
		return nil, err
	}

	used, err := s.dailyUsed(userID)
	if err != nil {
		return nil, err
	}

	if !ok {
		// 日度封顶只是限流，排队等明天的容量
		metrics.QuotaDenials.WithLabelValues("daily").Inc()
		return &Decision{Allowed: false, Queueable: true, Used: used, Limit: limits.DailyPostCap, ResetAt: resetAt}, nil
	}

	metrics.QuotaConsumed.WithLabelValues("daily").Add(float64(n))
	return &Decision{Allowed: true, Used: used, Limit: limits.DailyPostCap, ResetAt: resetAt}, nil
}

func (s *QuotaService) monthlyUsed(userID int64) (int, error) {
	counter, err := s.usageRepo.GetByUserID(userID)
	if err != nil {
		return 0, err
	}
	return counter.MonthlyReplyCount, nil
}

func (s *QuotaService) dailyUsed(userID int64) (int, error) {
	counter, err := s.usageRepo.GetByUserID(userID)
	if err != nil {
		return 0, err
	}
	return counter.DailyPostCount, nil
}

// RefundMonthly 回退月度用量，动作最终没发生时补偿
func (s *QuotaService) RefundMonthly(userID int64, n int) error {
	if err := s.usageRepo.RefundMonthly(userID, n); err != nil {
		return err
	}
	metrics.QuotaRefunds.WithLabelValues("monthly").Add(float64(n))
	return nil
}

// RefundDaily 回退日度用量，发布失败时补偿
func (s *QuotaService) RefundDaily(userID int64, n int) error {
	if err := s.usageRepo.RefundDaily(userID, n); err != nil {
		return err
	}
	metrics.QuotaRefunds.WithLabelValues("daily").Add(float64(n))
	return nil
}
