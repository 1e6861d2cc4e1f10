package service

import (
	"errors"
	"log"
	"time"

	"github.com/qs3c/reply_go_server/internal/metrics"
	"github.com/qs3c/reply_go_server/internal/model"
	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/repository"
)

var ErrUnknownPlan = errors.New("未知的订阅档位")

// StartOfMonth 当前 UTC 日历月的起点
func StartOfMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// StartOfDay 当前 UTC 日历日的起点
func StartOfDay(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// NextMonthStart 下个 UTC 月起点，即月度额度恢复时间
func NextMonthStart(now time.Time) time.Time {
	return StartOfMonth(now).AddDate(0, 1, 0)
}

// NextDayStart 下个 UTC 日起点，即日度额度恢复时间
func NextDayStart(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, 1)
}

type UsageService struct {
	usageRepo     *repository.UsageRepository
	userRepo      *repository.UserRepository
	planEventRepo *repository.PlanEventRepository
	catalog       *PlanCatalog
}

func NewUsageService(
	usageRepo *repository.UsageRepository,
	userRepo *repository.UserRepository,
	planEventRepo *repository.PlanEventRepository,
	catalog *PlanCatalog,
) *UsageService {
	return &UsageService{
		usageRepo:     usageRepo,
		userRepo:      userRepo,
		planEventRepo: planEventRepo,
		catalog:       catalog,
	}
}

// EnsureCurrent 取当前周期的计数器：没有就建行，周期过了就先滚动再读
func (s *UsageService) EnsureCurrent(userID int64) (*model.UsageCounter, *model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	monthStart := StartOfMonth(now)
	dayStart := StartOfDay(now)

	counter, err := s.usageRepo.EnsureCounter(userID, user.PlanID, monthStart, dayStart)
	if err != nil {
		return nil, nil, err
	}

	if counter.MonthStart.Before(monthStart) || counter.DayStart.Before(dayStart) {
		if err := s.usageRepo.RollForward(userID, monthStart, dayStart); err != nil {
			return nil, nil, err
		}
		counter, err = s.usageRepo.GetByUserID(userID)
		if err != nil {
			return nil, nil, err
		}
	}

	return counter, user, nil
}

// GetUsage 用量概览，展示前完成惰性滚动
func (s *UsageService) GetUsage(userID int64) (*dto.UsageInfo, error) {
	counter, user, err := s.EnsureCurrent(userID)
	if err != nil {
		return nil, err
	}

	limits := s.catalog.LimitsFor(user.PlanID)
	now := time.Now().UTC()

	return &dto.UsageInfo{
		PlanID: user.PlanID,
		Monthly: dto.DimensionUsage{
			Used:      counter.MonthlyReplyCount,
			Limit:     limits.MonthlyReplyLimit,
			Unlimited: limits.MonthlyUnlimited(),
			ResetAt:   NextMonthStart(now).Format(time.RFC3339),
		},
		Daily: dto.DimensionUsage{
			Used:      counter.DailyPostCount,
			Limit:     limits.DailyPostCap,
			Unlimited: limits.DailyUnlimited(),
			ResetAt:   NextDayStart(now).Format(time.RFC3339),
		},
		QueuedCount: counter.QueuedCount,
	}, nil
}

// RollForwardAll 批量滚动所有过期计数器，由定时任务在 UTC 零点触发
func (s *UsageService) RollForwardAll() (monthRows, dayRows int64, err error) {
	now := time.Now().UTC()
	monthRows, dayRows, err = s.usageRepo.RollForwardAll(StartOfMonth(now), StartOfDay(now))
	if err != nil {
		return 0, 0, err
	}

	metrics.RolloverRows.WithLabelValues("month").Add(float64(monthRows))
	metrics.RolloverRows.WithLabelValues("day").Add(float64(dayRows))
	return monthRows, dayRows, nil
}

// ApplyPlanChange 应用计费侧的档位变更事件
// event_id 去重吸收重复投递，时间戳守卫吸收乱序投递，重复调用安全
func (s *UsageService) ApplyPlanChange(eventID string, userID int64, planID string, effectiveAt time.Time) error {
	if !s.catalog.Exists(planID) {
		return ErrUnknownPlan
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}

	inserted, err := s.planEventRepo.Insert(&model.PlanChangeEvent{
		EventID:     eventID,
		UserID:      userID,
		PlanID:      planID,
		EffectiveAt: effectiveAt.UTC(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		log.Printf("Plan change event %s already applied, skipping", eventID)
		return nil
	}

	applied, err := s.userRepo.UpdatePlan(userID, planID, effectiveAt.UTC())
	if err != nil {
		return err
	}
	if !applied {
		log.Printf("Plan change event %s is older than user %d's current plan, ignored", eventID, userID)
		return nil
	}

	// 计数器行可能还没建出来，未命中无妨，首次用量时会以新档位建行
	if _, err := s.usageRepo.ApplyPlanChange(userID, planID, effectiveAt.UTC()); err != nil {
		return err
	}

	log.Printf("User %d plan changed: %s -> %s (event %s)", userID, user.PlanID, planID, eventID)
	return nil
}
