package dto

// ── 账号管理 DTO ──

// CreateSupervisorRequest 管理员创建导师账号
type CreateSupervisorRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name"     binding:"required,max=150"`
	Email    string `json:"email"    binding:"omitempty,email"`
	Phone    string `json:"phone"    binding:"omitempty,max=50"`
}

// SupervisorResponse 导师
type SupervisorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// RosterRequest 学生名册筛选
type RosterRequest struct {
	Status  string `form:"status" binding:"omitempty,oneof=not_registered in_team no_team"`
	Keyword string `form:"q"      binding:"omitempty,max=100"`
	PaginationRequest
}

// RosterItemResponse 名册行
type RosterItemResponse struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Faculty    string  `json:"faculty"`
	Program    string  `json:"program"`
	Batch      string  `json:"batch"`
	Registered bool    `json:"registered"`
	GroupCode  *string `json:"group_code,omitempty"`
}

// AccountListRequest 账号列表筛选
type AccountListRequest struct {
	Role    string `form:"role" binding:"omitempty,oneof=admin supervisor student"`
	Keyword string `form:"q"    binding:"omitempty,max=100"`
}

// AccountResponse 登录账号
type AccountResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ResetPasswordRequest 管理员重置账号密码
type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// ImportResult 名册 / 题目库批量导入结果
type ImportResult struct {
	Total   int              `json:"total"`
	Added   int              `json:"added"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

// ImportRowError 导入错误详情；Row 为文件中的行号（表头为第 1 行）
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
