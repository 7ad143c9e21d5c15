package model

import "time"

// Group 小组 — 对应 groups，创建后不可变
type Group struct {
	GroupCode string    `gorm:"type:varchar(32);primaryKey"         json:"group_code"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Members []GroupMember `gorm:"foreignKey:GroupCode;references:GroupCode" json:"members,omitempty"`
}

func (Group) TableName() string { return "groups" }

// GroupMember 小组成员 — 对应 group_members
// student_id 唯一索引保证一名学生只属于一个小组
type GroupMember struct {
	MemberID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"member_id"`
	GroupCode string    `gorm:"type:varchar(32);not null;index"                json:"group_code"`
	StudentID string    `gorm:"type:varchar(32);not null;uniqueIndex"          json:"student_id"`
	JoinedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"            json:"joined_at"`

	Student *StudentRecord `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

func (GroupMember) TableName() string { return "group_members" }
