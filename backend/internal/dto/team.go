package dto

// ── 组队模块 DTO ──

// SendTeamRequest 发送组队请求
type SendTeamRequest struct {
	ReceiverStudentID string `json:"receiver_student_id" binding:"required,max=32"`
}

// AddMemberRequest 管理员直接加入第三名成员
type AddMemberRequest struct {
	StudentID string `json:"student_id" binding:"required,max=32"`
}

// TeamRequestResponse 组队请求
type TeamRequestResponse struct {
	ID                 string  `json:"id"`
	RequesterStudentID string  `json:"requester_student_id"`
	RequesterName      string  `json:"requester_name,omitempty"`
	ReceiverStudentID  string  `json:"receiver_student_id"`
	ReceiverName       string  `json:"receiver_name,omitempty"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
	RespondedAt        *string `json:"responded_at,omitempty"`
}

// CandidateResponse 可邀请的同学
type CandidateResponse struct {
	StudentID      string `json:"student_id"`
	Name           string `json:"name"`
	Program        string `json:"program"`
	AvatarInitials string `json:"avatar_initials"`
	AvatarColor    string `json:"avatar_color"`
}

// CandidateListRequest 候选人搜索
type CandidateListRequest struct {
	Keyword string `form:"q" binding:"omitempty,max=100"`
}
