package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/reply_go_server/internal/api/middleware"
	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/pkg/response"
	"github.com/qs3c/reply_go_server/internal/service"
)

type ChannelHandler struct {
	credService  *service.CredentialService
	replyService *service.ReplyService
}

func NewChannelHandler(credService *service.CredentialService, replyService *service.ReplyService) *ChannelHandler {
	return &ChannelHandler{
		credService:  credService,
		replyService: replyService,
	}
}

// Connect 发起频道授权
// GET /api/v1/channel/connect
func (h *ChannelHandler) Connect(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	redirectURI := c.Query("redirect_uri")

	authURL, err := h.credService.BeginConnect(c.Request.Context(), userID, redirectURI)
	if err != nil {
		response.ServerError(c, "发起授权失败，请稍后重试")
		return
	}

	response.Success(c, dto.ConnectChannelResponse{AuthURL: authURL})
}

// Callback Google 授权回调
// GET /api/v1/channel/callback
// 浏览器直接访问：有回跳地址时 302 回前端，否则返回 JSON
func (h *ChannelHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		response.ParamError(c, "缺少授权参数")
		return
	}

	data, err := h.credService.CompleteConnect(c.Request.Context(), state, code)
	if err != nil {
		response.ParamError(c, "授权失败，请重新发起频道连接")
		return
	}

	if data.RedirectURI != "" {
		c.Redirect(http.StatusFound, data.RedirectURI+"?connected=1")
		return
	}
	response.SuccessWithMessage(c, "频道连接成功", nil)
}

// Status 频道连接状态
// GET /api/v1/channel
func (h *ChannelHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.credService.Status(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, status)
}

// Disconnect 断开频道
// DELETE /api/v1/channel
// 排队中的回复无法再发布，一并置为失败
func (h *ChannelHandler) Disconnect(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	drained, err := h.replyService.DrainPending(c.Request.Context(), userID, "频道已断开连接")
	if err != nil {
		response.ServerError(c, "")
		return
	}

	if err := h.credService.Disconnect(userID); err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "频道已断开", gin.H{
		"drained_replies": drained,
	})
}
