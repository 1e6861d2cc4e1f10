package dto

// CreateReplyRequest 提交回复请求
type CreateReplyRequest struct {
	CommentID string `json:"comment_id" binding:"required,max=100"`
	VideoID   string `json:"video_id,omitempty" binding:"omitempty,max=50"`
	ReplyText string `json:"reply_text" binding:"required,max=5000"`
}

// CreateReplyResponse 提交回复响应
// Status 为 posted 表示已直接发布，queued 表示已入队等待派发
type CreateReplyResponse struct {
	ReplyID int64  `json:"reply_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DraftReplyRequest 生成回复草稿请求
type DraftReplyRequest struct {
	CommentText string `json:"comment_text" binding:"required,max=10000"`
	VideoTitle  string `json:"video_title,omitempty" binding:"omitempty,max=200"`
	Tone        string `json:"tone,omitempty" binding:"omitempty,oneof=friendly professional humorous"`
	ModelName   string `json:"model_name,omitempty" binding:"omitempty,max=50"`
}

// DraftReplyResponse 回复草稿响应
type DraftReplyResponse struct {
	Draft     string `json:"draft"`
	ModelName string `json:"model_name"`
}

// ReplyListItem 回复列表项
type ReplyListItem struct {
	ID            int64  `json:"id"`
	CommentID     string `json:"comment_id"`
	VideoID       string `json:"video_id,omitempty"`
	ReplyText     string `json:"reply_text"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	ErrorMessage  string `json:"error_message,omitempty"`
	PostedReplyID string `json:"posted_reply_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	PostedAt      string `json:"posted_at,omitempty"`
}

// ReplyListResponse 回复列表响应
type ReplyListResponse struct {
	Items    []ReplyListItem `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}
