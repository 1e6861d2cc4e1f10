package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/reply_go_server/internal/api/middleware"
	"github.com/qs3c/reply_go_server/internal/pkg/response"
	"github.com/qs3c/reply_go_server/internal/service"
)

type ModelsHandler struct {
	userService *service.UserService
	catalog     *service.PlanCatalog
}

func NewModelsHandler(userService *service.UserService, catalog *service.PlanCatalog) *ModelsHandler {
	return &ModelsHandler{
		userService: userService,
		catalog:     catalog,
	}
}

// List 草稿模型目录，标注当前档位的可用性
// GET /api/v1/models
func (h *ModelsHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	profile, err := h.userService.GetProfile(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"models": h.catalog.ModelsFor(profile.PlanID),
	})
}
