package model

import "time"

// TeamRequestStatus 组队请求状态
type TeamRequestStatus string

const (
	TeamRequestPending  TeamRequestStatus = "Pending"
	TeamRequestAccepted TeamRequestStatus = "Accepted"
	TeamRequestDeclined TeamRequestStatus = "Declined"
)

// TeamRequest 组队请求 — 对应 team_requests
// Accepted / Declined 为终态
type TeamRequest struct {
	RequestID          string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	RequesterStudentID string            `gorm:"type:varchar(32);not null"                      json:"requester_student_id"`
	ReceiverStudentID  string            `gorm:"type:varchar(32);not null;index"                json:"receiver_student_id"`
	Status             TeamRequestStatus `gorm:"type:varchar(16);not null;default:'Pending'"    json:"status"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"            json:"created_at"`
	RespondedAt        *time.Time        `json:"responded_at,omitempty"`

	Requester *StudentRecord `gorm:"foreignKey:RequesterStudentID;references:StudentID" json:"requester,omitempty"`
	Receiver  *StudentRecord `gorm:"foreignKey:ReceiverStudentID;references:StudentID"  json:"receiver,omitempty"`
}

func (TeamRequest) TableName() string { return "team_requests" }
