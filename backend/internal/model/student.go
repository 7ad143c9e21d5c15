package model

import "time"

// StudentRecord 学籍名册 — 对应 student_records
// 由导入维护，流程中只读
type StudentRecord struct {
	StudentID  string    `gorm:"type:varchar(32);primaryKey"         json:"student_id"`
	Name       string    `gorm:"type:varchar(150);not null"          json:"name"`
	Gender     string    `gorm:"type:varchar(20)"                    json:"gender"`
	Phone      string    `gorm:"type:varchar(50)"                    json:"phone"`
	Email      string    `gorm:"type:varchar(255)"                   json:"email"`
	Faculty    string    `gorm:"type:varchar(150)"                   json:"faculty"`
	Program    string    `gorm:"type:varchar(150)"                   json:"program"`
	Batch      string    `gorm:"type:varchar(50)"                    json:"batch"`
	ImportedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"imported_at"`
}

func (StudentRecord) TableName() string { return "student_records" }

// StudentAccount 学生账号 — 对应 student_accounts
// GroupCode 是“是否已组队”的唯一依据
type StudentAccount struct {
	PrincipalID    string  `gorm:"type:uuid;primaryKey"                   json:"principal_id"`
	StudentID      string  `gorm:"type:varchar(32);not null;uniqueIndex" json:"student_id"`
	GroupCode      *string `gorm:"type:varchar(32);index"                json:"group_code,omitempty"`
	AvatarInitials string  `gorm:"type:varchar(4)"                       json:"avatar_initials"`
	AvatarColor    string  `gorm:"type:varchar(16)"                      json:"avatar_color"`
	BaseModel

	Record *StudentRecord `gorm:"foreignKey:StudentID;references:StudentID" json:"record,omitempty"`
}

func (StudentAccount) TableName() string { return "student_accounts" }

// Grouped 是否已加入小组
func (a *StudentAccount) Grouped() bool {
	return a.GroupCode != nil && *a.GroupCode != ""
}
