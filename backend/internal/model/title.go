package model

import "time"

// Decision 审批结论
type Decision string

const (
	DecisionPending  Decision = "Pending"
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// TitleSelectionWindow 选题窗口 — 对应 title_selection_windows
// 只追加，最新一行即当前状态
type TitleSelectionWindow struct {
	WindowID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"window_id"`
	IsOpen         bool      `gorm:"not null;default:false"                         json:"is_open"`
	ScopeAllGroups bool      `gorm:"not null"                                       json:"scope_all_groups"`
	CreatedBy      *string   `gorm:"type:uuid"                                      json:"created_by,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"            json:"created_at"`
}

func (TitleSelectionWindow) TableName() string { return "title_selection_windows" }

// TitleProposal 题目申报 — 对应 title_proposals
type TitleProposal struct {
	ProposalID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"proposal_id"`
	GroupCode        string     `gorm:"type:varchar(32);not null;index"                json:"group_code"`
	Title            string     `gorm:"type:varchar(300);not null"                     json:"title"`
	ProjectType      string     `gorm:"type:varchar(100)"                              json:"project_type"`
	StatusAdmin      Decision   `gorm:"type:varchar(16);not null;default:'Pending'"    json:"status_admin"`
	StatusSupervisor Decision   `gorm:"type:varchar(16);not null;default:'Pending'"    json:"status_supervisor"`
	SubmittedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"            json:"submitted_at"`
	LastActionAt     *time.Time `json:"last_action_at,omitempty"`
}

func (TitleProposal) TableName() string { return "title_proposals" }

// Final 两级审批均通过
func (p *TitleProposal) Final() bool {
	return p.StatusAdmin == DecisionApproved && p.StatusSupervisor == DecisionApproved
}

// Rejected 任一级驳回
func (p *TitleProposal) Rejected() bool {
	return p.StatusAdmin == DecisionRejected || p.StatusSupervisor == DecisionRejected
}

// Live 仍在审批中
func (p *TitleProposal) Live() bool {
	return !p.Final() && !p.Rejected()
}

// TitleArchive 往届题目库 — 对应 title_archives，只读
type TitleArchive struct {
	ArchiveID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"archive_id"`
	Title       string    `gorm:"type:varchar(300);not null"                     json:"title"`
	ProjectType string    `gorm:"type:varchar(100)"                              json:"project_type"`
	Year        *int      `json:"year,omitempty"`
	Department  string    `gorm:"type:varchar(150)"                              json:"department"`
	ImportedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"            json:"imported_at"`
}

func (TitleArchive) TableName() string { return "title_archives" }
