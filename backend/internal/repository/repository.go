package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Principal   PrincipalRepository
	Student     StudentRepository
	Group       GroupRepository
	TeamRequest TeamRequestRepository
	Assignment  SupervisorAssignmentRepository
	Title       TitleRepository
	Activity    ActivityRepository
	Submission  SubmissionRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:          db,
		Principal:   NewPrincipalRepo(db),
		Student:     NewStudentRepo(db),
		Group:       NewGroupRepo(db),
		TeamRequest: NewTeamRequestRepo(db),
		Assignment:  NewSupervisorAssignmentRepo(db),
		Title:       NewTitleRepo(db),
		Activity:    NewActivityRepo(db),
		Submission:  NewSubmissionRepo(db),
	}
}

// WithTx 返回绑定到事务的 Repository
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个数据库事务中执行 fn，fn 返回错误时整体回滚
// 单元测试中 db 为 nil，此时直接以当前聚合执行
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// forUpdate 行级排他锁
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
