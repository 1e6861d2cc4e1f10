package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
)

type PlanEventRepository struct {
	db *gorm.DB
}

func NewPlanEventRepository(db *gorm.DB) *PlanEventRepository {
	return &PlanEventRepository{db: db}
}

// Insert 事件去重落库，event_id 重复时返回 false 且不报错
func (r *PlanEventRepository) Insert(event *model.PlanChangeEvent) (bool, error) {
	err := r.db.Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PlanEventRepository) GetByEventID(eventID string) (*model.PlanChangeEvent, error) {
	var event model.PlanChangeEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByUser 用户的档位变更历史，新的在前
func (r *PlanEventRepository) ListByUser(userID int64, limit int) ([]*model.PlanChangeEvent, error) {
	var events []*model.PlanChangeEvent
	err := r.db.Where("user_id = ?", userID).
		Order("effective_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
