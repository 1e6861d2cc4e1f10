package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/reply_go_server/internal/api/middleware"
	"github.com/qs3c/reply_go_server/internal/model/dto"
	"github.com/qs3c/reply_go_server/internal/pkg/response"
	"github.com/qs3c/reply_go_server/internal/pkg/youtube"
	"github.com/qs3c/reply_go_server/internal/service"
)

type ReplyHandler struct {
	replyService *service.ReplyService
	draftService *service.DraftService
}

func NewReplyHandler(replyService *service.ReplyService, draftService *service.DraftService) *ReplyHandler {
	return &ReplyHandler{
		replyService: replyService,
		draftService: draftService,
	}
}

// Send 提交回复
// POST /api/v1/replies
func (h *ReplyHandler) Send(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.replyService.Send(c.Request.Context(), userID, &req)
	if err != nil {
		var denied *service.QuotaDeniedError
		switch {
		case errors.As(err, &denied):
			response.QuotaError(c, quotaDeniedMessage(denied))
		case errors.Is(err, service.ErrDuplicateReply):
			response.DuplicateError(c, err.Error())
		case errors.Is(err, service.ErrChannelNotConnected):
			response.ChannelError(c, err.Error())
		case errors.Is(err, youtube.ErrCommentGone):
			response.NotFoundError(c, "评论不存在或已被删除")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, resp.Message, resp)
}

// quotaDeniedMessage 拼出带重置时间和升级提示的拒绝消息
func quotaDeniedMessage(denied *service.QuotaDeniedError) string {
	return fmt.Sprintf("%s（%d/%d），升级套餐可提升额度，额度将于 %s 重置",
		denied.Error(), denied.Used, denied.Limit,
		denied.ResetAt.Format("2006-01-02 15:04 UTC"))
}

// List 回复记录列表
// GET /api/v1/replies
func (h *ReplyHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := c.Query("status")

	resp, err := h.replyService.List(userID, page, pageSize, status)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, resp.Total, resp.Page, resp.PageSize, resp.Items)
}

// Cancel 取消待发布的回复
// DELETE /api/v1/replies/:id
func (h *ReplyHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	replyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的回复ID")
		return
	}

	if err := h.replyService.Cancel(c.Request.Context(), userID, replyID); err != nil {
		if errors.Is(err, service.ErrReplyNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "已取消，本月额度已退回", nil)
}

// Retry 失败回复重新入队
// POST /api/v1/replies/:id/retry
func (h *ReplyHandler) Retry(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	replyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的回复ID")
		return
	}

	if err := h.replyService.Retry(c.Request.Context(), userID, replyID); err != nil {
		if errors.Is(err, service.ErrReplyNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "已重新加入发布队列", nil)
}

// Draft 生成回复草稿
// POST /api/v1/replies/draft
func (h *ReplyHandler) Draft(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.DraftReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.draftService.Draft(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrModelDenied):
			response.PermissionError(c, err.Error())
		case errors.Is(err, service.ErrNoModelAvailable):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "草稿生成失败，请稍后重试")
		}
		return
	}

	response.Success(c, resp)
}
