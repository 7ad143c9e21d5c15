package model

// Role 主体角色，封闭集合
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleStudent    Role = "student"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleStudent:
		return true
	default:
		return false
	}
}

// Principal 登录主体 — 对应 principals
// 学生的 username 即学号
type Principal struct {
	PrincipalID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"principal_id"`
	Username     string `gorm:"type:varchar(64);not null;uniqueIndex"           json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null"                      json:"role"`
	IsActive     bool   `gorm:"not null"                                       json:"is_active"`
	BaseModel

	SupervisorProfile *SupervisorProfile `gorm:"foreignKey:PrincipalID;references:PrincipalID" json:"supervisor_profile,omitempty"`
}

func (Principal) TableName() string { return "principals" }

// SupervisorProfile 导师资料 — 对应 supervisor_profiles
type SupervisorProfile struct {
	PrincipalID string `gorm:"type:uuid;primaryKey"        json:"principal_id"`
	Name        string `gorm:"type:varchar(150);not null" json:"name"`
	Email       string `gorm:"type:varchar(255)"          json:"email"`
	Phone       string `gorm:"type:varchar(50)"           json:"phone"`
	BaseModel
}

func (SupervisorProfile) TableName() string { return "supervisor_profiles" }
