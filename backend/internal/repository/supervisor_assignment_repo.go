package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"upms-teamup/backend/internal/model"
)

// SupervisorAssignmentRepository 导师分配数据访问接口
type SupervisorAssignmentRepository interface {
	Upsert(ctx context.Context, a *model.SupervisorAssignment) error
	GetByGroup(ctx context.Context, groupCode string) (*model.SupervisorAssignment, error)
	ListBySupervisor(ctx context.Context, supervisorID string) ([]model.SupervisorAssignment, error)
	ListByGroups(ctx context.Context, groupCodes []string) ([]model.SupervisorAssignment, error)
}

type supervisorAssignmentRepo struct {
	db *gorm.DB
}

// NewSupervisorAssignmentRepo 创建 SupervisorAssignmentRepository 实例
func NewSupervisorAssignmentRepo(db *gorm.DB) SupervisorAssignmentRepository {
	return &supervisorAssignmentRepo{db: db}
}

// Upsert 每组一行，重复分配覆盖导师与分配时间
func (r *supervisorAssignmentRepo) Upsert(ctx context.Context, a *model.SupervisorAssignment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"supervisor_id", "assigned_at"}),
		}).
		Create(a).Error
}

func (r *supervisorAssignmentRepo) GetByGroup(ctx context.Context, groupCode string) (*model.SupervisorAssignment, error) {
	var a model.SupervisorAssignment
	err := r.db.WithContext(ctx).
		Where("group_code = ?", groupCode).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *supervisorAssignmentRepo) ListBySupervisor(ctx context.Context, supervisorID string) ([]model.SupervisorAssignment, error) {
	var list []model.SupervisorAssignment
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		Order("group_code ASC").
		Find(&list).Error
	return list, err
}

func (r *supervisorAssignmentRepo) ListByGroups(ctx context.Context, groupCodes []string) ([]model.SupervisorAssignment, error) {
	if len(groupCodes) == 0 {
		return nil, nil
	}
	var list []model.SupervisorAssignment
	err := r.db.WithContext(ctx).
		Where("group_code IN ?", groupCodes).
		Find(&list).Error
	return list, err
}
