package service

import (
	"errors"
	"io"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model"
	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/pkg/oss"
	"github.com/qs3c/reply_go_server/internal/repository"
)

var ErrUserNotFound = errors.New("用户不存在")

type UserService struct {
	userRepo  *repository.UserRepository
	ossClient *oss.Client
}

func NewUserService(userRepo *repository.UserRepository, ossClient *oss.Client) *UserService {
	return &UserService{
		userRepo:  userRepo,
		ossClient: ossClient,
	}
}

// GetProfile 获取用户详情
func (s *UserService) GetProfile(userID int64) (*dto.UserProfile, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return buildProfile(user), nil
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(userID int64, req *dto.UpdateProfileRequest) (*dto.UserProfile, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.Username != nil && *req.Username != user.Username {
		user.Username = *req.Username
		if err := s.userRepo.Update(user); err != nil {
			return nil, err
		}
	}

	return buildProfile(user), nil
}

// UploadAvatar 上传用户头像到 OSS，旧头像顺手删掉
func (s *UserService) UploadAvatar(userID int64, file io.Reader, filename string) (string, error) {
	if s.ossClient == nil {
		return "", errors.New("OSS 客户端未配置")
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}

	avatarURL, err := s.ossClient.UploadAvatar(userID, data, ext)
	if err != nil {
		return "", err
	}

	if err := s.userRepo.UpdateAvatar(userID, avatarURL); err != nil {
		return "", err
	}

	if user.AvatarURL != "" {
		// 旧头像删除失败不影响结果
		_ = s.ossClient.Delete(s.ossClient.ExtractObjectKey(user.AvatarURL))
	}

	return avatarURL, nil
}

func buildProfile(user *model.User) *dto.UserProfile {
	return &dto.UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		PlanID:    user.PlanID,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
