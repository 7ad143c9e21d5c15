package dto

// ── 选题模块 DTO ──

// 审批动作
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// SetWindowRequest 开关选题窗口
type SetWindowRequest struct {
	IsOpen         *bool `json:"is_open"          binding:"required"`
	ScopeAllGroups *bool `json:"scope_all_groups"`
}

// WindowResponse 当前选题窗口
type WindowResponse struct {
	IsOpen         bool    `json:"is_open"`
	ScopeAllGroups bool    `json:"scope_all_groups"`
	ChangedAt      *string `json:"changed_at,omitempty"`
}

// SubmitProposalRequest 申报题目
type SubmitProposalRequest struct {
	Title       string `json:"title"        binding:"required,max=300"`
	ProjectType string `json:"project_type" binding:"omitempty,max=100"`
}

// DecisionRequest 审批
type DecisionRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
}

// ProposalResponse 题目申报
type ProposalResponse struct {
	ID               string  `json:"id"`
	GroupCode        string  `json:"group_code"`
	Title            string  `json:"title"`
	ProjectType      string  `json:"project_type"`
	StatusAdmin      string  `json:"status_admin"`
	StatusSupervisor string  `json:"status_supervisor"`
	Final            bool    `json:"final"`
	SubmittedAt      string  `json:"submitted_at"`
	LastActionAt     *string `json:"last_action_at,omitempty"`
}

// GroupTitlesResponse 学生端选题页
type GroupTitlesResponse struct {
	Window    WindowResponse     `json:"window"`
	Current   *ProposalResponse  `json:"current,omitempty"`
	History   []ProposalResponse `json:"history"`
	CanSubmit bool               `json:"can_submit"`
}

// TitleSearchRequest 已占用题目检索
type TitleSearchRequest struct {
	Keyword string `form:"q" binding:"omitempty,max=200"`
}

// TakenTitleResponse 已占用题目（往届题库 + 已最终确定）
type TakenTitleResponse struct {
	Title       string `json:"title"`
	ProjectType string `json:"project_type"`
	Source      string `json:"source"`
	Year        *int   `json:"year,omitempty"`
	Department  string `json:"department,omitempty"`
	GroupCode   string `json:"group_code,omitempty"`
}

// ProposalListRequest 管理员审批列表
type ProposalListRequest struct {
	StatusAdmin string `form:"status_admin" binding:"omitempty,oneof=Pending Approved Rejected"`
}
