package repository

import (
	"context"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
)

// PrincipalRepository 登录主体数据访问接口
type PrincipalRepository interface {
	Create(ctx context.Context, p *model.Principal) error
	GetByID(ctx context.Context, id string) (*model.Principal, error)
	GetByUsername(ctx context.Context, username string) (*model.Principal, error)
	CreateSupervisorProfile(ctx context.Context, profile *model.SupervisorProfile) error
	ListSupervisors(ctx context.Context) ([]model.Principal, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	List(ctx context.Context, role model.Role, keyword string) ([]model.Principal, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
	Delete(ctx context.Context, id string) error
}

type principalRepo struct {
	db *gorm.DB
}

// NewPrincipalRepo 创建 PrincipalRepository 实例
func NewPrincipalRepo(db *gorm.DB) PrincipalRepository {
	return &principalRepo{db: db}
}

func (r *principalRepo) Create(ctx context.Context, p *model.Principal) error {
	return r.db.WithContext(ctx).Omit("SupervisorProfile").Create(p).Error
}

func (r *principalRepo) GetByID(ctx context.Context, id string) (*model.Principal, error) {
	var p model.Principal
	err := r.db.WithContext(ctx).
		Preload("SupervisorProfile").
		Where("principal_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *principalRepo) GetByUsername(ctx context.Context, username string) (*model.Principal, error) {
	var p model.Principal
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *principalRepo) CreateSupervisorProfile(ctx context.Context, profile *model.SupervisorProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *principalRepo) ListSupervisors(ctx context.Context) ([]model.Principal, error) {
	var list []model.Principal
	err := r.db.WithContext(ctx).
		Preload("SupervisorProfile").
		Where("role = ?", model.RoleSupervisor).
		Order("username ASC").
		Find(&list).Error
	return list, err
}

func (r *principalRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithContext(ctx).
		Model(&model.Principal{}).
		Where("principal_id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    gorm.Expr("NOW()"),
		}).Error
}

// List 账号列表；role 为空时不过滤角色，keyword 匹配用户名
func (r *principalRepo) List(ctx context.Context, role model.Role, keyword string) ([]model.Principal, error) {
	q := r.db.WithContext(ctx).Preload("SupervisorProfile")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if keyword != "" {
		q = q.Where("username ILIKE ?", "%"+keyword+"%")
	}
	var list []model.Principal
	err := q.Order("role ASC, username ASC").Find(&list).Error
	return list, err
}

func (r *principalRepo) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Principal{}).
		Where("role = ?", role).
		Count(&n).Error
	return n, err
}

// Delete 物理删除；导师资料与学生账号随外键级联删除
func (r *principalRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("principal_id = ?", id).
		Delete(&model.Principal{}).Error
}
