package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) GetByUserID(userID int64) (*model.UsageCounter, error) {
	var counter model.UsageCounter
	err := r.db.Where("user_id = ?", userID).First(&counter).Error
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// EnsureCounter 首次使用时惰性建行，并发建行冲突时回读已有行
func (r *UsageRepository) EnsureCounter(userID int64, planID string, monthStart, dayStart time.Time) (*model.UsageCounter, error) {
	var counter model.UsageCounter
	err := r.db.Where("user_id = ?", userID).First(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	counter = model.UsageCounter{
		UserID:     userID,
		PlanID:     planID,
		MonthStart: monthStart,
		DayStart:   dayStart,
	}
	if createErr := r.db.Create(&counter).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			err = r.db.Where("user_id = ?", userID).First(&counter).Error
			if err != nil {
				return nil, err
			}
			return &counter, nil
		}
		return nil, createErr
	}
	return &counter, nil
}

// ConsumeMonthly 带上限的原子扣减，余额不足时返回 false 且不产生任何写入
func (r *UsageRepository) ConsumeMonthly(userID int64, n, limit int) (bool, error) {
	result := r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND monthly_reply_count + ? <= ?", userID, n, limit).
		Update("monthly_reply_count", gorm.Expr("monthly_reply_count + ?", n))
	return result.RowsAffected > 0, result.Error
}

// ConsumeDaily 同 ConsumeMonthly，作用于日维度
func (r *UsageRepository) ConsumeDaily(userID int64, n, limit int) (bool, error) {
	result := r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND daily_post_count + ? <= ?", userID, n, limit).
		Update("daily_post_count", gorm.Expr("daily_post_count + ?", n))
	return result.RowsAffected > 0, result.Error
}

// AddMonthly 无上限档位直接累加，保留用量展示
func (r *UsageRepository) AddMonthly(userID int64, n int) error {
	return r.db.Model(&model.UsageCounter{}).Where("user_id = ?", userID).
		Update("monthly_reply_count", gorm.Expr("monthly_reply_count + ?", n)).Error
}

// AddDaily 无上限档位直接累加
func (r *UsageRepository) AddDaily(userID int64, n int) error {
	return r.db.Model(&model.UsageCounter{}).Where("user_id = ?", userID).
		Update("daily_post_count", gorm.Expr("daily_post_count + ?", n)).Error
}

// RefundMonthly 回退月度用量，周期已滚动（计数不足）时放弃回退
func (r *UsageRepository) RefundMonthly(userID int64, n int) error {
	return r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND monthly_reply_count >= ?", userID, n).
		Update("monthly_reply_count", gorm.Expr("monthly_reply_count - ?", n)).Error
}

// RefundDaily 回退日度用量，周期已滚动时放弃回退
func (r *UsageRepository) RefundDaily(userID int64, n int) error {
	return r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND daily_post_count >= ?", userID, n).
		Update("daily_post_count", gorm.Expr("daily_post_count - ?", n)).Error
}

// IncrementQueued 排队数 +n
func (r *UsageRepository) IncrementQueued(userID int64, n int) error {
	return r.db.Model(&model.UsageCounter{}).Where("user_id = ?", userID).
		Update("queued_count", gorm.Expr("queued_count + ?", n)).Error
}

// DecrementQueued 排队数 -n，不会减成负数
func (r *UsageRepository) DecrementQueued(userID int64, n int) error {
	return r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND queued_count >= ?", userID, n).
		Update("queued_count", gorm.Expr("queued_count - ?", n)).Error
}

// RollForward 把单个用户滚动到给定周期，条件更新保证重复调用幂等
func (r *UsageRepository) RollForward(userID int64, monthStart, dayStart time.Time) error {
	err := r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND month_start < ?", userID, monthStart).
		Updates(map[string]interface{}{
			"monthly_reply_count": 0,
			"month_start":         monthStart,
		}).Error
	if err != nil {
		return err
	}

	return r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND day_start < ?", userID, dayStart).
		Updates(map[string]interface{}{
			"daily_post_count": 0,
			"day_start":        dayStart,
		}).Error
}

// RollForwardAll 批量滚动所有过期计数器，返回受影响行数
func (r *UsageRepository) RollForwardAll(monthStart, dayStart time.Time) (monthRows, dayRows int64, err error) {
	result := r.db.Model(&model.UsageCounter{}).
		Where("month_start < ?", monthStart).
		Updates(map[string]interface{}{
			"monthly_reply_count": 0,
			"month_start":         monthStart,
		})
	if result.Error != nil {
		return 0, 0, result.Error
	}
	monthRows = result.RowsAffected

	result = r.db.Model(&model.UsageCounter{}).
		Where("day_start < ?", dayStart).
		Updates(map[string]interface{}{
			"daily_post_count": 0,
			"day_start":        dayStart,
		})
	if result.Error != nil {
		return monthRows, 0, result.Error
	}
	dayRows = result.RowsAffected

	return monthRows, dayRows, nil
}

// ApplyPlanChange 更新计数器上的档位快照，时间戳守卫拒绝乱序事件
func (r *UsageRepository) ApplyPlanChange(userID int64, planID string, effectiveAt time.Time) (bool, error) {
	result := r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND (plan_changed_at IS NULL OR plan_changed_at < ?)", userID, effectiveAt).
		Updates(map[string]interface{}{
			"plan_id":         planID,
			"plan_changed_at": effectiveAt,
		})
	return result.RowsAffected > 0, result.Error
}
