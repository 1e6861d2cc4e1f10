package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/internal/api/middleware"
	"github.com/qs3c/reply_go_server/internal/pkg/response"
	"github.com/qs3c/reply_go_server/internal/service"
)

type UsageHandler struct {
	usageService *service.UsageService
}

func NewUsageHandler(usageService *service.UsageService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

// Get 当前用量总览
// GET /api/v1/usage
func (h *UsageHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.usageService.GetUsage(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "用户不存在")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}
