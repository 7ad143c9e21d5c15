package repository

import (
	"context"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
)

// ActivityRepository 活动与定向小组数据访问接口
type ActivityRepository interface {
	Create(ctx context.Context, a *model.Activity) error
	GetByID(ctx context.Context, id string) (*model.Activity, error)
	Update(ctx context.Context, a *model.Activity) error
	ReplaceTargets(ctx context.Context, activityID string, groupCodes []string) error
	Delete(ctx context.Context, id string) error
	ListByAuthor(ctx context.Context, role model.Role, authorID string) ([]model.Activity, error)
	ListForGroup(ctx context.Context, groupCode string) ([]model.Activity, error)
	Count(ctx context.Context) (int64, error)
}

type activityRepo struct {
	db *gorm.DB
}

// NewActivityRepo 创建 ActivityRepository 实例
func NewActivityRepo(db *gorm.DB) ActivityRepository {
	return &activityRepo{db: db}
}

// Create 同时写入 Targets
func (r *activityRepo) Create(ctx context.Context, a *model.Activity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *activityRepo) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	var a model.Activity
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("activity_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Update 只更新可编辑字段，作者信息不可变
func (r *activityRepo) Update(ctx context.Context, a *model.Activity) error {
	return r.db.WithContext(ctx).
		Model(&model.Activity{}).
		Where("activity_id = ?", a.ActivityID).
		Updates(map[string]interface{}{
			"title":            a.Title,
			"description":      a.Description,
			"start_at":         a.StartAt,
			"deadline_at":      a.DeadlineAt,
			"require_pdf":      a.RequirePDF,
			"scope_all_groups": a.ScopeAllGroups,
			"updated_at":       gorm.Expr("NOW()"),
		}).Error
}

func (r *activityRepo) ReplaceTargets(ctx context.Context, activityID string, groupCodes []string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("activity_id = ?", activityID).Delete(&model.ActivityTarget{}).Error; err != nil {
		return err
	}
	if len(groupCodes) == 0 {
		return nil
	}
	targets := make([]model.ActivityTarget, 0, len(groupCodes))
	for _, code := range groupCodes {
		targets = append(targets, model.ActivityTarget{ActivityID: activityID, GroupCode: code})
	}
	return db.Create(&targets).Error
}

// Delete 定向与提交由外键 ON DELETE CASCADE 一并删除
func (r *activityRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("activity_id = ?", id).
		Delete(&model.Activity{}).Error
}

func (r *activityRepo) ListByAuthor(ctx context.Context, role model.Role, authorID string) ([]model.Activity, error) {
	var list []model.Activity
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("created_by_role = ? AND created_by_id = ?", role, authorID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *activityRepo) ListForGroup(ctx context.Context, groupCode string) ([]model.Activity, error) {
	var list []model.Activity
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("scope_all_groups = ? OR EXISTS (SELECT 1 FROM activity_targets t WHERE t.activity_id = activities.activity_id AND t.group_code = ?)",
			true, groupCode).
		Order("deadline_at ASC NULLS LAST, created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *activityRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Activity{}).Count(&n).Error
	return n, err
}
