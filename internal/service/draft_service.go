package service

import (
	"context"
	"errors"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/metrics"
	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/pkg/ai"
	"github.com/qs3c/reply_go_server/internal/repository"
)

var ErrNoModelAvailable = errors.New("没有可用的草稿模型")

// DraftService 草稿生成，模型选择受档位约束
type DraftService struct {
	userRepo *repository.UserRepository
	catalog  *PlanCatalog

	// newProvider 可在测试里替换
	newProvider func(cfg *config.ModelConfig) (ai.Provider, error)
}

func NewDraftService(userRepo *repository.UserRepository, catalog *PlanCatalog) *DraftService {
	return &DraftService{
		userRepo:    userRepo,
		catalog:     catalog,
		newProvider: ai.New,
	}
}

// Draft 生成一条回复草稿
func (s *DraftService) Draft(ctx context.Context, userID int64, req *dto.DraftReplyRequest) (*dto.DraftReplyResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	modelName := req.ModelName
	if modelName == "" {
		modelName = s.catalog.DefaultModelFor(user.PlanID)
		if modelName == "" {
			return nil, ErrNoModelAvailable
		}
	}

	if err := s.catalog.CheckModel(user.PlanID, modelName); err != nil {
		return nil, err
	}

	modelCfg, ok := s.catalog.ModelConfig(modelName)
	if !ok {
		return nil, ErrModelDenied
	}

	provider, err := s.newProvider(modelCfg)
	if err != nil {
		return nil, err
	}

	draft, err := provider.DraftReply(ctx, &ai.DraftInput{
		CommentText: req.CommentText,
		VideoTitle:  req.VideoTitle,
		Tone:        req.Tone,
	})
	if err != nil {
		metrics.AIDraftCalls.WithLabelValues(modelName, "error").Inc()
		return nil, err
	}

	metrics.AIDraftCalls.WithLabelValues(modelName, "ok").Inc()
	return &dto.DraftReplyResponse{
		Draft:     draft,
		ModelName: modelName,
	}, nil
}
