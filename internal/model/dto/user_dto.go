package dto

// UserProfile 用户信息
type UserProfile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	PlanID    string `json:"plan_id"`
	CreatedAt string `json:"created_at"`
}

// UpdateProfileRequest 更新用户信息请求
type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty" binding:"omitempty,min=2,max=50"`
}

// ModelInfo 可用草稿模型信息
type ModelInfo struct {
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	RequiredLevel string `json:"required_level"`
	Available     bool   `json:"available"`
	Description   string `json:"description,omitempty"`
}
