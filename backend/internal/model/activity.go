package model

import "time"

// Activity 阶段活动 — 对应 activities
// 作者（角色 + ID）在创建后固定
type Activity struct {
	ActivityID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"activity_id"`
	CreatedByRole  Role       `gorm:"type:varchar(20);not null"                      json:"created_by_role"`
	CreatedByID    string     `gorm:"type:uuid;not null"                             json:"created_by_id"`
	Title          string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Description    string     `gorm:"type:text"                                      json:"description"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	DeadlineAt     *time.Time `json:"deadline_at,omitempty"`
	RequirePDF     bool       `gorm:"column:require_pdf;not null;default:false"      json:"require_pdf"`
	ScopeAllGroups bool       `gorm:"not null"                                       json:"scope_all_groups"`
	BaseModel

	Targets []ActivityTarget `gorm:"foreignKey:ActivityID;references:ActivityID" json:"targets,omitempty"`
}

func (Activity) TableName() string { return "activities" }

// AuthoredBy 是否由指定主体创建
func (a *Activity) AuthoredBy(role Role, id string) bool {
	return a.CreatedByRole == role && a.CreatedByID == id
}

// DeadlinePassed 截止时间已过；未设置截止时间视为未过期
func (a *Activity) DeadlinePassed(now time.Time) bool {
	return a.DeadlineAt != nil && now.After(*a.DeadlineAt)
}

// TargetsGroup 活动是否面向该小组
func (a *Activity) TargetsGroup(groupCode string) bool {
	if a.ScopeAllGroups {
		return true
	}
	for _, t := range a.Targets {
		if t.GroupCode == groupCode {
			return true
		}
	}
	return false
}

// ActivityTarget 活动定向小组 — 对应 activity_targets
type ActivityTarget struct {
	TargetID   string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"target_id"`
	ActivityID string `gorm:"type:uuid;not null"                             json:"activity_id"`
	GroupCode  string `gorm:"type:varchar(32);not null"                      json:"group_code"`
}

func (ActivityTarget) TableName() string { return "activity_targets" }
