package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) GetByUserID(userID int64) (*model.ChannelCredential, error) {
	var cred model.ChannelCredential
	err := r.db.Where("user_id = ?", userID).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Upsert 每个用户只保留一条频道授权，重新连接时覆盖旧记录
func (r *CredentialRepository) Upsert(cred *model.ChannelCredential) error {
	var existing model.ChannelCredential
	err := r.db.Where("user_id = ?", cred.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(cred).Error
	}
	if err != nil {
		return err
	}

	cred.ID = existing.ID
	cred.CreatedAt = existing.CreatedAt
	return r.db.Save(cred).Error
}

// UpdateTokens 刷新后的新 token 回写
func (r *CredentialRepository) UpdateTokens(userID int64, accessToken, refreshToken string, expiry time.Time) error {
	return r.db.Model(&model.ChannelCredential{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"token_expiry":  expiry,
		}).Error
}

// MarkRevoked 授权失效标记，保留频道信息便于提示用户重连
func (r *CredentialRepository) MarkRevoked(userID int64) error {
	return r.db.Model(&model.ChannelCredential{}).Where("user_id = ?", userID).
		Update("status", model.CredentialStatusRevoked).Error
}

func (r *CredentialRepository) Delete(userID int64) error {
	return r.db.Where("user_id = ?", userID).Delete(&model.ChannelCredential{}).Error
}
