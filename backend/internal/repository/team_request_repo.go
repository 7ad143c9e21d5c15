package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
)

// TeamRequestRepository 组队请求数据访问接口
type TeamRequestRepository interface {
	Create(ctx context.Context, req *model.TeamRequest) error
	GetByID(ctx context.Context, id string) (*model.TeamRequest, error)
	LockByID(ctx context.Context, id string) (*model.TeamRequest, error)
	FindPending(ctx context.Context, requesterID, receiverID string) (*model.TeamRequest, error)
	UpdateStatus(ctx context.Context, id string, status model.TeamRequestStatus, respondedAt time.Time) error
	DeclinePendingFor(ctx context.Context, studentID string, respondedAt time.Time) (int64, error)
	ListByReceiver(ctx context.Context, studentID string, status model.TeamRequestStatus) ([]model.TeamRequest, error)
	ListByRequester(ctx context.Context, studentID string) ([]model.TeamRequest, error)
}

type teamRequestRepo struct {
	db *gorm.DB
}

// NewTeamRequestRepo 创建 TeamRequestRepository 实例
func NewTeamRequestRepo(db *gorm.DB) TeamRequestRepository {
	return &teamRequestRepo{db: db}
}

func (r *teamRequestRepo) Create(ctx context.Context, req *model.TeamRequest) error {
	return r.db.WithContext(ctx).Omit("Requester", "Receiver").Create(req).Error
}

func (r *teamRequestRepo) GetByID(ctx context.Context, id string) (*model.TeamRequest, error) {
	var req model.TeamRequest
	err := r.db.WithContext(ctx).
		Preload("Requester").
		Preload("Receiver").
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *teamRequestRepo) LockByID(ctx context.Context, id string) (*model.TeamRequest, error) {
	var req model.TeamRequest
	err := forUpdate(r.db.WithContext(ctx)).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *teamRequestRepo) FindPending(ctx context.Context, requesterID, receiverID string) (*model.TeamRequest, error) {
	var req model.TeamRequest
	err := r.db.WithContext(ctx).
		Where("requester_student_id = ? AND receiver_student_id = ? AND status = ?",
			requesterID, receiverID, model.TeamRequestPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *teamRequestRepo) UpdateStatus(ctx context.Context, id string, status model.TeamRequestStatus, respondedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.TeamRequest{}).
		Where("request_id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": respondedAt,
		}).Error
}

// DeclinePendingFor 将该学生作为发起人或接收人的全部待处理请求置为 Declined
func (r *teamRequestRepo) DeclinePendingFor(ctx context.Context, studentID string, respondedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TeamRequest{}).
		Where("status = ? AND (requester_student_id = ? OR receiver_student_id = ?)", model.TeamRequestPending, studentID, studentID).
		Updates(map[string]interface{}{
			"status":       model.TeamRequestDeclined,
			"responded_at": respondedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *teamRequestRepo) ListByReceiver(ctx context.Context, studentID string, status model.TeamRequestStatus) ([]model.TeamRequest, error) {
	q := r.db.WithContext(ctx).
		Preload("Requester").
		Where("receiver_student_id = ?", studentID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var list []model.TeamRequest
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *teamRequestRepo) ListByRequester(ctx context.Context, studentID string) ([]model.TeamRequest, error) {
	var list []model.TeamRequest
	err := r.db.WithContext(ctx).
		Preload("Receiver").
		Where("requester_student_id = ?", studentID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
