package repository

import (
	"context"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
)

// ProposalFilter 题目申报列表筛选
type ProposalFilter struct {
	GroupCodes  []string
	StatusAdmin model.Decision
}

// TitleRepository 选题窗口、题目申报与题目库数据访问接口
type TitleRepository interface {
	CreateWindow(ctx context.Context, w *model.TitleSelectionWindow) error
	LatestWindow(ctx context.Context) (*model.TitleSelectionWindow, error)

	CreateProposal(ctx context.Context, p *model.TitleProposal) error
	GetProposal(ctx context.Context, id string) (*model.TitleProposal, error)
	LockProposal(ctx context.Context, id string) (*model.TitleProposal, error)
	ListProposalsByGroup(ctx context.Context, groupCode string) ([]model.TitleProposal, error)
	UpdateDecision(ctx context.Context, p *model.TitleProposal) error
	ListProposals(ctx context.Context, f ProposalFilter) ([]model.TitleProposal, error)
	SearchFinal(ctx context.Context, keyword string, limit int) ([]model.TitleProposal, error)

	CreateArchives(ctx context.Context, archives []model.TitleArchive) error
	SearchArchive(ctx context.Context, keyword string, limit int) ([]model.TitleArchive, error)
}

type titleRepo struct {
	db *gorm.DB
}

// NewTitleRepo 创建 TitleRepository 实例
func NewTitleRepo(db *gorm.DB) TitleRepository {
	return &titleRepo{db: db}
}

// ────────────────────── 选题窗口 ──────────────────────

func (r *titleRepo) CreateWindow(ctx context.Context, w *model.TitleSelectionWindow) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *titleRepo) LatestWindow(ctx context.Context) (*model.TitleSelectionWindow, error) {
	var w model.TitleSelectionWindow
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ────────────────────── 题目申报 ──────────────────────

func (r *titleRepo) CreateProposal(ctx context.Context, p *model.TitleProposal) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *titleRepo) GetProposal(ctx context.Context, id string) (*model.TitleProposal, error) {
	var p model.TitleProposal
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *titleRepo) LockProposal(ctx context.Context, id string) (*model.TitleProposal, error) {
	var p model.TitleProposal
	err := forUpdate(r.db.WithContext(ctx)).
		Where("proposal_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *titleRepo) ListProposalsByGroup(ctx context.Context, groupCode string) ([]model.TitleProposal, error) {
	var list []model.TitleProposal
	err := r.db.WithContext(ctx).
		Where("group_code = ?", groupCode).
		Order("submitted_at DESC").
		Find(&list).Error
	return list, err
}

func (r *titleRepo) UpdateDecision(ctx context.Context, p *model.TitleProposal) error {
	return r.db.WithContext(ctx).
		Model(&model.TitleProposal{}).
		Where("proposal_id = ?", p.ProposalID).
		Updates(map[string]interface{}{
			"status_admin":      p.StatusAdmin,
			"status_supervisor": p.StatusSupervisor,
			"last_action_at":    p.LastActionAt,
		}).Error
}

func (r *titleRepo) ListProposals(ctx context.Context, f ProposalFilter) ([]model.TitleProposal, error) {
	q := r.db.WithContext(ctx).Model(&model.TitleProposal{})
	if f.GroupCodes != nil {
		if len(f.GroupCodes) == 0 {
			return nil, nil
		}
		q = q.Where("group_code IN ?", f.GroupCodes)
	}
	if f.StatusAdmin != "" {
		q = q.Where("status_admin = ?", f.StatusAdmin)
	}

	var list []model.TitleProposal
	err := q.Order("submitted_at DESC").Find(&list).Error
	return list, err
}

func (r *titleRepo) SearchFinal(ctx context.Context, keyword string, limit int) ([]model.TitleProposal, error) {
	q := r.db.WithContext(ctx).
		Where("status_admin = ? AND status_supervisor = ?", model.DecisionApproved, model.DecisionApproved)
	if keyword != "" {
		q = q.Where("title ILIKE ?", "%"+keyword+"%")
	}
	if limit <= 0 {
		limit = 200
	}

	var list []model.TitleProposal
	err := q.Order("last_action_at DESC NULLS LAST").Limit(limit).Find(&list).Error
	return list, err
}

// ────────────────────── 题目库 ──────────────────────

func (r *titleRepo) CreateArchives(ctx context.Context, archives []model.TitleArchive) error {
	if len(archives) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(archives, 200).Error
}

func (r *titleRepo) SearchArchive(ctx context.Context, keyword string, limit int) ([]model.TitleArchive, error) {
	q := r.db.WithContext(ctx).Model(&model.TitleArchive{})
	if keyword != "" {
		q = q.Where("title ILIKE ?", "%"+keyword+"%")
	}
	if limit <= 0 {
		limit = 200
	}

	var list []model.TitleArchive
	err := q.Order("year DESC NULLS LAST, title ASC").Limit(limit).Find(&list).Error
	return list, err
}
