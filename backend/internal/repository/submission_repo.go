package repository

import (
	"context"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
)

// SubmissionRepository 小组提交数据访问接口
type SubmissionRepository interface {
	Create(ctx context.Context, s *model.Submission) error
	Save(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	LockByID(ctx context.Context, id string) (*model.Submission, error)
	LockByActivityGroup(ctx context.Context, activityID, groupCode string) (*model.Submission, error)
	ListByGroup(ctx context.Context, groupCode string) ([]model.Submission, error)
	ListByActivities(ctx context.Context, activityIDs []string) ([]model.Submission, error)
	CountByStatus(ctx context.Context, status model.SubmissionStatus) (int64, error)
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	return r.db.WithContext(ctx).Omit("Activity").Create(s).Error
}

func (r *submissionRepo) Save(ctx context.Context, s *model.Submission) error {
	return r.db.WithContext(ctx).Omit("Activity").Save(s).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	err := r.db.WithContext(ctx).
		Preload("Activity").
		Where("submission_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepo) LockByID(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	err := forUpdate(r.db.WithContext(ctx)).
		Where("submission_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LockByActivityGroup 读取并锁定 (活动, 小组) 的唯一提交行
func (r *submissionRepo) LockByActivityGroup(ctx context.Context, activityID, groupCode string) (*model.Submission, error) {
	var s model.Submission
	err := forUpdate(r.db.WithContext(ctx)).
		Where("activity_id = ? AND group_code = ?", activityID, groupCode).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepo) ListByGroup(ctx context.Context, groupCode string) ([]model.Submission, error) {
	var list []model.Submission
	err := r.db.WithContext(ctx).
		Where("group_code = ?", groupCode).
		Order("submitted_at DESC").
		Find(&list).Error
	return list, err
}

func (r *submissionRepo) ListByActivities(ctx context.Context, activityIDs []string) ([]model.Submission, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}
	var list []model.Submission
	err := r.db.WithContext(ctx).
		Preload("Activity").
		Where("activity_id IN ?", activityIDs).
		Order("submitted_at DESC").
		Find(&list).Error
	return list, err
}

func (r *submissionRepo) CountByStatus(ctx context.Context, status model.SubmissionStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}
