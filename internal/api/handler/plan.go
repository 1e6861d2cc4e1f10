package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/pkg/response"
	"github.com/qs3c/reply_go_server/internal/service"
)

type PlanHandler struct {
	usageService  *service.UsageService
	internalToken string
}

func NewPlanHandler(usageService *service.UsageService, internalToken string) *PlanHandler {
	return &PlanHandler{
		usageService:  usageService,
		internalToken: internalToken,
	}
}

// ApplyEvent 接收计费系统推送的档位变更事件
// POST /internal/plan-events
func (h *PlanHandler) ApplyEvent(c *gin.Context) {
	// 内部接口不走 JWT，凭共享令牌认证
	if h.internalToken == "" || c.GetHeader("X-Internal-Token") != h.internalToken {
		response.AuthError(c, "内部令牌无效")
		return
	}

	var req dto.PlanChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.usageService.ApplyPlanChange(req.EventID, req.UserID, req.PlanID, req.EffectiveAt); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan):
			response.ParamError(c, "未知的订阅档位: "+req.PlanID)
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.NotFoundError(c, "用户不存在")
		default:
			log.Printf("Failed to apply plan change event %s: %v", req.EventID, err)
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "档位变更已受理", nil)
}
