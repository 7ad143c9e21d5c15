package model

import "time"

// SubmissionStatus 提交状态
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "Pending"
	SubmissionMarked   SubmissionStatus = "Marked"
	SubmissionRejected SubmissionStatus = "Rejected"
)

// Submission 小组提交 — 对应 submissions
// (activity_id, group_code) 唯一；重复提交覆盖同一行
type Submission struct {
	SubmissionID         string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"submission_id"`
	ActivityID           string           `gorm:"type:uuid;not null"                             json:"activity_id"`
	GroupCode            string           `gorm:"type:varchar(32);not null"                      json:"group_code"`
	SubmittedByStudentID string           `gorm:"type:varchar(32);not null"                      json:"submitted_by_student_id"`
	FilePath             *string          `gorm:"type:varchar(500)"                              json:"file_path,omitempty"`
	Status               SubmissionStatus `gorm:"type:varchar(16);not null;default:'Pending'"    json:"status"`
	SubmittedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"            json:"submitted_at"`
	MarkedBy             *string          `gorm:"type:uuid"                                      json:"marked_by,omitempty"`
	MarkedAt             *time.Time       `json:"marked_at,omitempty"`
	Feedback             string           `gorm:"type:text;not null;default:''"                  json:"feedback"`
	ResubmissionCount    int              `gorm:"not null;default:0"                             json:"resubmission_count"`

	Activity *Activity `gorm:"foreignKey:ActivityID;references:ActivityID" json:"activity,omitempty"`
}

func (Submission) TableName() string { return "submissions" }
