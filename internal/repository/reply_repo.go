package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
)

type ReplyRepository struct {
	db *gorm.DB
}

func NewReplyRepository(db *gorm.DB) *ReplyRepository {
	return &ReplyRepository{db: db}
}

func (r *ReplyRepository) Create(reply *model.QueuedReply) error {
	return r.db.Create(reply).Error
}

func (r *ReplyRepository) GetByID(id int64) (*model.QueuedReply, error) {
	var reply model.QueuedReply
	err := r.db.Where("id = ?", id).First(&reply).Error
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *ReplyRepository) GetByUserAndID(userID, id int64) (*model.QueuedReply, error) {
	var reply model.QueuedReply
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&reply).Error
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// ExistsPending 同一用户对同一评论是否已有待发布回复
func (r *ReplyRepository) ExistsPending(userID int64, commentID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.QueuedReply{}).
		Where("user_id = ? AND comment_id = ? AND status = ?", userID, commentID, model.ReplyStatusPending).
		Count(&count).Error
	return count > 0, err
}

// ListPending 按入队先后取一批待发布回复，同一时刻按 ID 保证顺序稳定
func (r *ReplyRepository) ListPending(limit int) ([]*model.QueuedReply, error) {
	var replies []*model.QueuedReply
	err := r.db.Where("status = ?", model.ReplyStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&replies).Error
	return replies, err
}

func (r *ReplyRepository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&model.QueuedReply{}).
		Where("status = ?", model.ReplyStatusPending).
		Count(&count).Error
	return count, err
}

// ListByUser 获取用户的回复记录列表
func (r *ReplyRepository) ListByUser(userID int64, page, pageSize int, status string) ([]*model.QueuedReply, int64, error) {
	var replies []*model.QueuedReply
	var total int64

	query := r.db.Model(&model.QueuedReply{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&replies).Error; err != nil {
		return nil, 0, err
	}

	return replies, total, nil
}

// MarkPosted 发布成功，记录平台侧回复 ID
func (r *ReplyRepository) MarkPosted(id int64, postedReplyID string) error {
	now := time.Now().UTC()
	return r.db.Model(&model.QueuedReply{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          model.ReplyStatusPosted,
			"posted_reply_id": postedReplyID,
			"error_message":   "",
			"posted_at":       &now,
		}).Error
}

// MarkFailed 记一次失败，次数耗尽时转为 failed，返回是否已终结
// WHERE 条件只看旧值，拆成两条语句以兼容不同数据库的 SET 求值顺序
func (r *ReplyRepository) MarkFailed(id int64, errMsg string) (terminal bool, err error) {
	result := r.db.Model(&model.QueuedReply{}).
		Where("id = ? AND attempts + 1 >= max_attempts", id).
		Updates(map[string]interface{}{
			"attempts":      gorm.Expr("attempts + 1"),
			"status":        model.ReplyStatusFailed,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	err = r.db.Model(&model.QueuedReply{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":      gorm.Expr("attempts + 1"),
			"error_message": errMsg,
		}).Error
	return false, err
}

// MarkFailedTerminal 不可重试的失败，直接终结
func (r *ReplyRepository) MarkFailedTerminal(id int64, errMsg string) error {
	return r.db.Model(&model.QueuedReply{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":      gorm.Expr("attempts + 1"),
			"status":        model.ReplyStatusFailed,
			"error_message": errMsg,
		}).Error
}

// FailAllPendingForUser 授权失效时排空该用户的待发布队列
func (r *ReplyRepository) FailAllPendingForUser(userID int64, errMsg string) (int64, error) {
	result := r.db.Model(&model.QueuedReply{}).
		Where("user_id = ? AND status = ?", userID, model.ReplyStatusPending).
		Updates(map[string]interface{}{
			"status":        model.ReplyStatusFailed,
			"error_message": errMsg,
		})
	return result.RowsAffected, result.Error
}

// DeletePending 取消待发布回复，已被派发器处理过的记录不会命中
func (r *ReplyRepository) DeletePending(userID, id int64) (int64, error) {
	result := r.db.Where("id = ? AND user_id = ? AND status = ?", id, userID, model.ReplyStatusPending).
		Delete(&model.QueuedReply{})
	return result.RowsAffected, result.Error
}

// ReviveFailed 用户手动重试，失败记录重新入队并清零尝试次数
func (r *ReplyRepository) ReviveFailed(userID, id int64) (int64, error) {
	result := r.db.Model(&model.QueuedReply{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, model.ReplyStatusFailed).
		Updates(map[string]interface{}{
			"status":        model.ReplyStatusPending,
			"attempts":      0,
			"error_message": "",
		})
	return result.RowsAffected, result.Error
}

// PurgeFinishedBefore 清理指定时间之前已终结的记录
func (r *ReplyRepository) PurgeFinishedBefore(before time.Time) (int64, error) {
	result := r.db.Where("status IN ? AND updated_at < ?",
		[]string{model.ReplyStatusPosted, model.ReplyStatusFailed}, before).
		Delete(&model.QueuedReply{})
	return result.RowsAffected, result.Error
}

func (r *ReplyRepository) CountByUserAndStatus(userID int64, status string) (int64, error) {
	var count int64
	err := r.db.Model(&model.QueuedReply{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&count).Error
	return count, err
}
