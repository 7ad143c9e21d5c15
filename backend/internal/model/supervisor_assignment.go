package model

import "time"

// SupervisorAssignment 小组导师分配 — 对应 supervisor_assignments
// 每组一行，重新分配直接覆盖
type SupervisorAssignment struct {
	GroupCode    string    `gorm:"type:varchar(32);primaryKey"         json:"group_code"`
	SupervisorID string    `gorm:"type:uuid;not null;index"            json:"supervisor_id"`
	AssignedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"assigned_at"`
}

func (SupervisorAssignment) TableName() string { return "supervisor_assignments" }
