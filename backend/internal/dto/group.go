package dto

// ── 小组与导师分配 DTO ──

// GroupMemberResponse 小组成员
type GroupMemberResponse struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	JoinedAt  string `json:"joined_at"`
}

// GroupResponse 小组概览
type GroupResponse struct {
	GroupCode      string                `json:"group_code"`
	CreatedAt      string                `json:"created_at"`
	Members        []GroupMemberResponse `json:"members"`
	SupervisorID   string                `json:"supervisor_id,omitempty"`
	SupervisorName string                `json:"supervisor_name,omitempty"`
	FinalTitle     string                `json:"final_title,omitempty"`
}

// AssignSupervisorRequest 分配导师
type AssignSupervisorRequest struct {
	SupervisorID string `json:"supervisor_id" binding:"required,uuid"`
}

// AssignmentResponse 导师分配结果
type AssignmentResponse struct {
	GroupCode    string `json:"group_code"`
	SupervisorID string `json:"supervisor_id"`
	AssignedAt   string `json:"assigned_at"`
}

// GroupListRequest 小组列表
type GroupListRequest struct {
	PaginationRequest
}
