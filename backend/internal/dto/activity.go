package dto

import "time"

// ── 活动与提交 DTO ──

// ActivityRequest 创建 / 更新活动
type ActivityRequest struct {
	Title          string     `json:"title"            binding:"required,max=200"`
	Description    string     `json:"description"`
	StartAt        *time.Time `json:"start_at"`
	DeadlineAt     *time.Time `json:"deadline_at"`
	RequirePDF     bool       `json:"require_pdf"`
	ScopeAllGroups *bool      `json:"scope_all_groups"`
	GroupCodes     []string   `json:"group_codes"`
}

// ActivityResponse 活动
type ActivityResponse struct {
	ID             string   `json:"id"`
	CreatedByRole  string   `json:"created_by_role"`
	CreatedByID    string   `json:"created_by_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	StartAt        *string  `json:"start_at,omitempty"`
	DeadlineAt     *string  `json:"deadline_at,omitempty"`
	RequirePDF     bool     `json:"require_pdf"`
	ScopeAllGroups bool     `json:"scope_all_groups"`
	GroupCodes     []string `json:"group_codes"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// GroupActivityResponse 学生端活动列表项
type GroupActivityResponse struct {
	Activity   ActivityResponse    `json:"activity"`
	Submission *SubmissionResponse `json:"submission,omitempty"`
	Locked     bool                `json:"locked"`
}

// GradeRequest 评阅
type GradeRequest struct {
	Verdict  string `json:"verdict"  binding:"required,oneof=Marked Rejected"`
	Feedback string `json:"feedback" binding:"omitempty,max=2000"`
}

// SubmissionResponse 提交
type SubmissionResponse struct {
	ID                   string  `json:"id"`
	ActivityID           string  `json:"activity_id"`
	ActivityTitle        string  `json:"activity_title,omitempty"`
	GroupCode            string  `json:"group_code"`
	SubmittedByStudentID string  `json:"submitted_by_student_id"`
	HasFile              bool    `json:"has_file"`
	FileName             string  `json:"file_name,omitempty"`
	Status               string  `json:"status"`
	SubmittedAt          string  `json:"submitted_at"`
	MarkedBy             *string `json:"marked_by,omitempty"`
	MarkedAt             *string `json:"marked_at,omitempty"`
	Feedback             string  `json:"feedback,omitempty"`
	ResubmissionCount    int     `json:"resubmission_count"`
}
