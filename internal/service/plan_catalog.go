package service

import (
	"errors"
	"log"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/model/dto"
)

var ErrModelDenied = errors.New("当前档位无法使用该模型")

// PlanLimits 档位限额，<=0 表示该维度不限量
type PlanLimits struct {
	MonthlyReplyLimit int
	DailyPostCap      int
}

func (l PlanLimits) MonthlyUnlimited() bool {
	return l.MonthlyReplyLimit <= 0
}

func (l PlanLimits) DailyUnlimited() bool {
	return l.DailyPostCap <= 0
}

// planRank 档位高低序，模型权限按序比较
var planRank = map[string]int{
	"free":    0,
	"creator": 1,
	"studio":  2,
}

// PlanCatalog 档位目录，限额与模型权限都来自配置
type PlanCatalog struct {
	cfg *config.Config
}

func NewPlanCatalog(cfg *config.Config) *PlanCatalog {
	return &PlanCatalog{cfg: cfg}
}

// LimitsFor 查询档位限额，未配置的档位按 free 处理
func (c *PlanCatalog) LimitsFor(planID string) PlanLimits {
	level, ok := c.cfg.Plans.Levels[planID]
	if !ok {
		log.Printf("Unknown plan %q, falling back to free limits", planID)
		level = c.cfg.Plans.Levels["free"]
	}
	return PlanLimits{
		MonthlyReplyLimit: level.MonthlyReplyLimit,
		DailyPostCap:      level.DailyPostCap,
	}
}

func (c *PlanCatalog) Exists(planID string) bool {
	_, ok := c.cfg.Plans.Levels[planID]
	return ok
}

// ModelConfig 按名称查找模型配置
func (c *PlanCatalog) ModelConfig(modelName string) (*config.ModelConfig, bool) {
	for i := range c.cfg.Models {
		if c.cfg.Models[i].Name == modelName {
			return &c.cfg.Models[i], true
		}
	}
	return nil, false
}

// CheckModel 检查档位是否可以使用该模型
func (c *PlanCatalog) CheckModel(planID, modelName string) error {
	modelCfg, ok := c.ModelConfig(modelName)
	if !ok {
		return ErrModelDenied
	}
	if planRank[planID] < planRank[modelCfg.RequiredLevel] {
		return ErrModelDenied
	}
	return nil
}

// DefaultModelFor 档位可用的第一个模型，没有可用模型时返回空串
func (c *PlanCatalog) DefaultModelFor(planID string) string {
	for i := range c.cfg.Models {
		if planRank[planID] >= planRank[c.cfg.Models[i].RequiredLevel] {
			return c.cfg.Models[i].Name
		}
	}
	return ""
}

// ModelsFor 模型目录及当前档位的可用性
func (c *PlanCatalog) ModelsFor(planID string) []dto.ModelInfo {
	infos := make([]dto.ModelInfo, 0, len(c.cfg.Models))
	for i := range c.cfg.Models {
		m := &c.cfg.Models[i]
		infos = append(infos, dto.ModelInfo{
			Name:          m.Name,
			DisplayName:   m.DisplayName,
			RequiredLevel: m.RequiredLevel,
			Available:     planRank[planID] >= planRank[m.RequiredLevel],
			Description:   m.Description,
		})
	}
	return infos
}
