package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"upms-teamup/backend/internal/model"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// 名册筛选条件
const (
	RosterAll           = ""
	RosterNotRegistered = "not_registered"
	RosterInTeam        = "in_team"
	RosterNoTeam        = "no_team"
)

// RosterFilter 名册查询参数
type RosterFilter struct {
	Status  string
	Keyword string
	Offset  int
	Limit   int
}

// RosterRow 名册行：学籍 + 账号 / 组队情况
type RosterRow struct {
	StudentID   string
	Name        string
	Gender      string
	Phone       string
	Email       string
	Faculty     string
	Program     string
	Batch       string
	PrincipalID *string
	GroupCode   *string
}

// StudentRepository 学籍与学生账号数据访问接口
type StudentRepository interface {
	GetRecord(ctx context.Context, studentID string) (*model.StudentRecord, error)
	UpsertRecords(ctx context.Context, records []model.StudentRecord) error
	ExistingRecordIDs(ctx context.Context, studentIDs []string) (map[string]bool, error)
	CountRecords(ctx context.Context) (int64, error)
	ListRoster(ctx context.Context, f RosterFilter) ([]RosterRow, int64, error)

	CreateAccount(ctx context.Context, account *model.StudentAccount) error
	GetAccountByPrincipal(ctx context.Context, principalID string) (*model.StudentAccount, error)
	GetAccountByStudentID(ctx context.Context, studentID string) (*model.StudentAccount, error)
	LockAccount(ctx context.Context, studentID string) (*model.StudentAccount, error)
	AssignGroup(ctx context.Context, studentID, groupCode string) error
	ListUngrouped(ctx context.Context, keyword, excludeStudentID string, limit int) ([]model.StudentAccount, error)
	ListAccountsByGroup(ctx context.Context, groupCode string) ([]model.StudentAccount, error)
}

type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

// ────────────────────── 学籍 ──────────────────────

func (r *studentRepo) GetRecord(ctx context.Context, studentID string) (*model.StudentRecord, error) {
	var rec model.StudentRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *studentRepo) UpsertRecords(ctx context.Context, records []model.StudentRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "gender", "phone", "email", "faculty", "program", "batch"}),
		}).
		CreateInBatches(records, 200).Error
}

func (r *studentRepo) ExistingRecordIDs(ctx context.Context, studentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.StudentRecord{}).
		Where("student_id IN ?", studentIDs).
		Pluck("student_id", &ids).Error
	for _, id := range ids {
		out[id] = true
	}
	return out, err
}

func (r *studentRepo) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.StudentRecord{}).Count(&n).Error
	return n, err
}

func (r *studentRepo) ListRoster(ctx context.Context, f RosterFilter) ([]RosterRow, int64, error) {
	q := r.db.WithContext(ctx).
		Table("student_records AS sr").
		Joins("LEFT JOIN student_accounts AS sa ON sa.student_id = sr.student_id")

	switch f.Status {
	case RosterNotRegistered:
		q = q.Where("sa.principal_id IS NULL")
	case RosterInTeam:
		q = q.Where("sa.group_code IS NOT NULL")
	case RosterNoTeam:
		q = q.Where("sa.principal_id IS NOT NULL AND sa.group_code IS NULL")
	}
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		q = q.Where("sr.student_id ILIKE ? OR sr.name ILIKE ? OR sr.email ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	var rows []RosterRow
	err := q.Select("sr.student_id, sr.name, sr.gender, sr.phone, sr.email, sr.faculty, sr.program, sr.batch, sa.principal_id, sa.group_code").
		Order("sr.student_id ASC").
		Offset(f.Offset).
		Limit(limit).
		Scan(&rows).Error
	return rows, total, err
}

// ────────────────────── 账号 ──────────────────────

func (r *studentRepo) CreateAccount(ctx context.Context, account *model.StudentAccount) error {
	return r.db.WithContext(ctx).Omit("Record").Create(account).Error
}

func (r *studentRepo) GetAccountByPrincipal(ctx context.Context, principalID string) (*model.StudentAccount, error) {
	var a model.StudentAccount
	err := r.db.WithContext(ctx).
		Preload("Record").
		Where("principal_id = ?", principalID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *studentRepo) GetAccountByStudentID(ctx context.Context, studentID string) (*model.StudentAccount, error) {
	var a model.StudentAccount
	err := r.db.WithContext(ctx).
		Preload("Record").
		Where("student_id = ?", studentID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LockAccount 以 FOR UPDATE 读取账号，组队状态判断必须基于该结果
func (r *studentRepo) LockAccount(ctx context.Context, studentID string) (*model.StudentAccount, error) {
	var a model.StudentAccount
	err := forUpdate(r.db.WithContext(ctx)).
		Where("student_id = ?", studentID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AssignGroup 仅当账号尚未组队时写入 group_code
func (r *studentRepo) AssignGroup(ctx context.Context, studentID, groupCode string) error {
	result := r.db.WithContext(ctx).
		Model(&model.StudentAccount{}).
		Where("student_id = ? AND group_code IS NULL", studentID).
		Updates(map[string]interface{}{
			"group_code": groupCode,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.ErrAlreadyGrouped, "student_account", studentID)
	}
	return nil
}

func (r *studentRepo) ListUngrouped(ctx context.Context, keyword, excludeStudentID string, limit int) ([]model.StudentAccount, error) {
	q := r.db.WithContext(ctx).
		Preload("Record").
		Joins("JOIN student_records ON student_records.student_id = student_accounts.student_id").
		Where("student_accounts.group_code IS NULL")
	if excludeStudentID != "" {
		q = q.Where("student_accounts.student_id <> ?", excludeStudentID)
	}
	if keyword != "" {
		like := "%" + keyword + "%"
		q = q.Where("student_records.student_id ILIKE ? OR student_records.name ILIKE ?", like, like)
	}
	if limit <= 0 {
		limit = 50
	}

	var list []model.StudentAccount
	err := q.Order("student_accounts.student_id ASC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *studentRepo) ListAccountsByGroup(ctx context.Context, groupCode string) ([]model.StudentAccount, error) {
	var list []model.StudentAccount
	err := r.db.WithContext(ctx).
		Preload("Record").
		Where("group_code = ?", groupCode).
		Order("student_id ASC").
		Find(&list).Error
	return list, err
}
