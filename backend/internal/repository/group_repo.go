package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
)

// GroupRepository 小组与成员数据访问接口
type GroupRepository interface {
	Create(ctx context.Context, g *model.Group) error
	Exists(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (*model.Group, error)
	LockByCode(ctx context.Context, code string) (*model.Group, error)
	AddMember(ctx context.Context, m *model.GroupMember) error
	CountMembers(ctx context.Context, code string) (int64, error)
	NextDailySequence(ctx context.Context, day time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, offset, limit int) ([]model.Group, int64, error)
	ListByCodes(ctx context.Context, codes []string) ([]model.Group, error)
}

type groupRepo struct {
	db *gorm.DB
}

// NewGroupRepo 创建 GroupRepository 实例
func NewGroupRepo(db *gorm.DB) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) Create(ctx context.Context, g *model.Group) error {
	return r.db.WithContext(ctx).Omit("Members").Create(g).Error
}

func (r *groupRepo) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("group_code = ?", code).
		Count(&n).Error
	return n > 0, err
}

func (r *groupRepo) GetByCode(ctx context.Context, code string) (*model.Group, error) {
	var g model.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.Student").
		Where("group_code = ?", code).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// LockByCode 锁定小组行，用于串行化同组的成员变更与题目申报
func (r *groupRepo) LockByCode(ctx context.Context, code string) (*model.Group, error) {
	var g model.Group
	err := forUpdate(r.db.WithContext(ctx)).
		Where("group_code = ?", code).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepo) AddMember(ctx context.Context, m *model.GroupMember) error {
	return r.db.WithContext(ctx).Omit("Student").Create(m).Error
}

func (r *groupRepo) CountMembers(ctx context.Context, code string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_code = ?", code).
		Count(&n).Error
	return n, err
}

// NextDailySequence 原子递增当日序号；行锁保持到事务结束，并发接受按序取号
func (r *groupRepo) NextDailySequence(ctx context.Context, day time.Time) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO group_code_sequences (day, last_value) VALUES (?, 1)
		 ON CONFLICT (day) DO UPDATE SET last_value = group_code_sequences.last_value + 1
		 RETURNING last_value`,
		day.UTC().Format("2006-01-02"),
	).Scan(&next).Error
	return next, err
}

func (r *groupRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Group{}).Count(&n).Error
	return n, err
}

func (r *groupRepo) List(ctx context.Context, offset, limit int) ([]model.Group, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Group{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}

	var list []model.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.Student").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *groupRepo) ListByCodes(ctx context.Context, codes []string) ([]model.Group, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var list []model.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.Student").
		Where("group_code IN ?", codes).
		Order("group_code ASC").
		Find(&list).Error
	return list, err
}
