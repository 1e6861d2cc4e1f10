package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) UpdateAvatar(id int64, avatarURL string) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("avatar_url", avatarURL).Error
}

// UpdatePlan 档位变更，时间戳守卫拒绝乱序到达的旧事件
func (r *UserRepository) UpdatePlan(id int64, planID string, changedAt time.Time) (bool, error) {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND (plan_changed_at IS NULL OR plan_changed_at < ?)", id, changedAt).
		Updates(map[string]interface{}{
			"plan_id":         planID,
			"plan_changed_at": changedAt,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}
