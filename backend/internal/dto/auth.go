package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求，学生使用学号登录
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresIn    int               `json:"expires_in"`
	User         PrincipalResponse `json:"user"`
}

// PrincipalResponse 当前登录主体
type PrincipalResponse struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	Role           string  `json:"role"`
	Name           string  `json:"name"`
	StudentID      string  `json:"student_id,omitempty"`
	GroupCode      *string `json:"group_code,omitempty"`
	AvatarInitials string  `json:"avatar_initials,omitempty"`
	AvatarColor    string  `json:"avatar_color,omitempty"`
}

// ── 账号激活 ──

// ActivationStartRequest 申请激活验证码
type ActivationStartRequest struct {
	StudentID string `json:"student_id" binding:"required,max=32"`
}

// ActivationStartResponse 验证码已发送
type ActivationStartResponse struct {
	MaskedEmail string `json:"masked_email"`
	ExpiresIn   int    `json:"expires_in"`
}

// ActivationVerifyRequest 校验验证码
type ActivationVerifyRequest struct {
	StudentID string `json:"student_id" binding:"required,max=32"`
	Code      string `json:"code"       binding:"required,len=6,numeric"`
}

// ActivationCompleteRequest 设置密码并创建账号
type ActivationCompleteRequest struct {
	StudentID string `json:"student_id" binding:"required,max=32"`
	Password  string `json:"password"   binding:"required,min=6,max=72"`
}
