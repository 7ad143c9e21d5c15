package service

import (
	"context"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// AccountService 管理员账号与名册接口
type AccountService interface {
	CreateSupervisor(ctx context.Context, actor Actor, req *dto.CreateSupervisorRequest) (*dto.SupervisorResponse, error)
	ListStudents(ctx context.Context, actor Actor, req *dto.RosterRequest) ([]dto.RosterItemResponse, int64, error)
	ListAccounts(ctx context.Context, actor Actor, req *dto.AccountListRequest) ([]dto.AccountResponse, error)

	ImportRoster(ctx context.Context, actor Actor, r io.Reader, filename string) (*dto.ImportResult, error)
	ImportTitleArchive(ctx context.Context, actor Actor, r io.Reader, filename string) (*dto.ImportResult, error)

	ResetPassword(ctx context.Context, actor Actor, principalID string, req *dto.ResetPasswordRequest) error
	DeleteAccount(ctx context.Context, actor Actor, principalID string) error
	DeleteSupervisor(ctx context.Context, actor Actor, principalID string) error
}

// defaultAdminUsername 初始化脚本创建的管理员，不允许删除
const defaultAdminUsername = "admin"

type accountService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAccountService 创建 AccountService 实例
func NewAccountService(repo *repository.Repository, logger *zap.Logger) AccountService {
	return &accountService{repo: repo, logger: logger}
}

func (s *accountService) CreateSupervisor(ctx context.Context, actor Actor, req *dto.CreateSupervisorRequest) (*dto.SupervisorResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	name := strings.TrimSpace(req.Name)
	if username == "" || name == "" {
		return nil, pkgerrors.Validation("用户名和姓名不能为空")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	p := &model.Principal{
		Username:     username,
		PasswordHash: string(hash),
		Role:         model.RoleSupervisor,
		IsActive:     true,
	}
	profile := &model.SupervisorProfile{
		Name:  name,
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Principal.Create(ctx, p); err != nil {
			return err
		}
		profile.PrincipalID = p.PrincipalID
		return tx.Principal.CreateSupervisorProfile(ctx, profile)
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, &pkgerrors.WorkflowError{
				Kind:   pkgerrors.ErrConstraintViolation,
				Entity: "principal",
				ID:     username,
				Msg:    "用户名已存在",
			}
		}
		s.logger.Error("创建导师失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("导师账号已创建", zap.String("username", username), zap.String("admin_id", actor.ID))
	p.SupervisorProfile = profile
	resp := toSupervisorResponse(p)
	return &resp, nil
}

// ListStudents 名册：全部 / 未注册 / 已组队 / 未组队
func (s *accountService) ListStudents(ctx context.Context, actor Actor, req *dto.RosterRequest) ([]dto.RosterItemResponse, int64, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.Student.ListRoster(ctx, repository.RosterFilter{
		Status:  req.Status,
		Keyword: strings.TrimSpace(req.Keyword),
		Offset:  req.GetOffset(),
		Limit:   req.GetPageSize(),
	})
	if err != nil {
		s.logger.Error("查询学生名册失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.RosterItemResponse, 0, len(rows))
	for _, r := range rows {
		result = append(result, dto.RosterItemResponse{
			StudentID:  r.StudentID,
			Name:       r.Name,
			Email:      r.Email,
			Faculty:    r.Faculty,
			Program:    r.Program,
			Batch:      r.Batch,
			Registered: r.PrincipalID != nil,
			GroupCode:  r.GroupCode,
		})
	}
	return result, total, nil
}

// ────────────────────── ListAccounts ──────────────────────

func (s *accountService) ListAccounts(ctx context.Context, actor Actor, req *dto.AccountListRequest) ([]dto.AccountResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	list, err := s.repo.Principal.List(ctx, model.Role(req.Role), strings.TrimSpace(req.Keyword))
	if err != nil {
		s.logger.Error("查询账号列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.AccountResponse, 0, len(list))
	for i := range list {
		p := &list[i]
		item := dto.AccountResponse{
			ID:        p.PrincipalID,
			Username:  p.Username,
			Role:      string(p.Role),
			IsActive:  p.IsActive,
			CreatedAt: dto.FormatTime(p.CreatedAt),
		}
		if p.SupervisorProfile != nil {
			item.Name = p.SupervisorProfile.Name
		}
		result = append(result, item)
	}
	return result, nil
}

// ────────────────────── ImportRoster ──────────────────────

var rosterColumns = []string{"student_id", "name", "gender", "phone", "email", "faculty", "program", "batch"}

// ImportRoster 按学号 upsert 学籍名册；学号或姓名为空的行跳过，文件内重复学号以首次出现为准
func (s *accountService) ImportRoster(ctx context.Context, actor Actor, r io.Reader, filename string) (*dto.ImportResult, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	t, err := readTable(r, filename, rosterColumns)
	if err != nil {
		return nil, err
	}

	result := &dto.ImportResult{Total: len(t.rows)}
	seen := make(map[string]bool, len(t.rows))
	records := make([]model.StudentRecord, 0, len(t.rows))
	for _, row := range t.rows {
		rec := model.StudentRecord{
			StudentID: t.get(row, "student_id"),
			Name:      t.get(row, "name"),
			Gender:    t.get(row, "gender"),
			Phone:     t.get(row, "phone"),
			Email:     strings.ToLower(t.get(row, "email")),
			Faculty:   t.get(row, "faculty"),
			Program:   t.get(row, "program"),
			Batch:     t.get(row, "batch"),
		}
		switch {
		case rec.StudentID == "" || rec.Name == "":
			skipRow(result, row.line, "学号或姓名为空")
			continue
		case seen[rec.StudentID]:
			skipRow(result, row.line, "文件内学号重复: "+rec.StudentID)
			continue
		}
		seen[rec.StudentID] = true
		records = append(records, rec)
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.StudentID)
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := tx.Student.ExistingRecordIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if existing[id] {
				result.Updated++
			} else {
				result.Added++
			}
		}
		return tx.Student.UpsertRecords(ctx, records)
	})
	if err != nil {
		s.logger.Error("导入学生名册失败", zap.String("file", filename), zap.Error(err))
		return nil, err
	}

	s.logger.Info("学生名册已导入",
		zap.String("file", filename),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ────────────────────── ImportTitleArchive ──────────────────────

var archiveColumns = []string{"title", "project_type", "year"}

// ImportTitleArchive 追加历史题目；department 列可选
func (s *accountService) ImportTitleArchive(ctx context.Context, actor Actor, r io.Reader, filename string) (*dto.ImportResult, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	t, err := readTable(r, filename, archiveColumns)
	if err != nil {
		return nil, err
	}

	result := &dto.ImportResult{Total: len(t.rows)}
	archives := make([]model.TitleArchive, 0, len(t.rows))
	for _, row := range t.rows {
		a := model.TitleArchive{
			Title:       t.get(row, "title"),
			ProjectType: t.get(row, "project_type"),
			Department:  t.get(row, "department"),
		}
		if a.Title == "" {
			skipRow(result, row.line, "题目为空")
			continue
		}
		if raw := t.get(row, "year"); raw != "" {
			y, err := strconv.Atoi(raw)
			if err != nil || y < 1900 || y > 9999 {
				skipRow(result, row.line, "年份无效: "+raw)
				continue
			}
			a.Year = &y
		}
		archives = append(archives, a)
	}

	if len(archives) > 0 {
		if err := s.repo.Title.CreateArchives(ctx, archives); err != nil {
			s.logger.Error("导入题目库失败", zap.String("file", filename), zap.Error(err))
			return nil, err
		}
	}
	result.Added = len(archives)

	s.logger.Info("题目库已导入",
		zap.String("file", filename),
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *accountService) ResetPassword(ctx context.Context, actor Actor, principalID string, req *dto.ResetPasswordRequest) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	if len(req.Password) < 6 {
		return pkgerrors.Validation("密码至少 6 位")
	}
	p, err := s.repo.Principal.GetByID(ctx, principalID)
	if err != nil {
		return notFound(err, "principal", principalID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return err
	}
	if err := s.repo.Principal.UpdatePassword(ctx, p.PrincipalID, string(hash)); err != nil {
		s.logger.Error("重置密码失败", zap.String("principal_id", principalID), zap.Error(err))
		return err
	}

	s.logger.Info("账号密码已重置", zap.String("username", p.Username), zap.String("admin_id", actor.ID))
	return nil
}

// ────────────────────── DeleteAccount ──────────────────────

// DeleteAccount 删除任意账号；学生须未组队，其待处理组队请求一并拒绝
func (s *accountService) DeleteAccount(ctx context.Context, actor Actor, principalID string) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	if principalID == actor.ID {
		return pkgerrors.Validation("不能删除当前登录的账号")
	}
	p, err := s.repo.Principal.GetByID(ctx, principalID)
	if err != nil {
		return notFound(err, "principal", principalID)
	}
	if p.Username == defaultAdminUsername {
		return &pkgerrors.WorkflowError{
			Kind:   pkgerrors.ErrNotAuthorized,
			Entity: "principal",
			ID:     principalID,
			Msg:    "默认管理员账号不可删除",
		}
	}

	switch p.Role {
	case model.RoleSupervisor:
		err = s.deleteSupervisor(ctx, p)
	case model.RoleStudent:
		err = s.deleteStudent(ctx, p)
	default:
		err = s.repo.Principal.Delete(ctx, principalID)
		if err != nil {
			err = constraint(err, "principal", principalID)
		}
	}
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("删除账号失败", zap.String("principal_id", principalID), zap.Error(err))
		}
		return err
	}

	s.logger.Info("账号已删除",
		zap.String("username", p.Username),
		zap.String("role", string(p.Role)),
		zap.String("admin_id", actor.ID),
	)
	return nil
}

// DeleteSupervisor 删除导师账号与资料；仍有指导小组或名下活动时拒绝
func (s *accountService) DeleteSupervisor(ctx context.Context, actor Actor, principalID string) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	p, err := s.repo.Principal.GetByID(ctx, principalID)
	if err != nil {
		return notFound(err, "supervisor", principalID)
	}
	if p.Role != model.RoleSupervisor {
		return pkgerrors.New(pkgerrors.ErrNotFound, "supervisor", principalID)
	}
	if err := s.deleteSupervisor(ctx, p); err != nil {
		if !isWorkflow(err) {
			s.logger.Error("删除导师失败", zap.String("principal_id", principalID), zap.Error(err))
		}
		return err
	}

	s.logger.Info("导师已删除", zap.String("username", p.Username), zap.String("admin_id", actor.ID))
	return nil
}

func (s *accountService) deleteSupervisor(ctx context.Context, p *model.Principal) error {
	assignments, err := s.repo.Assignment.ListBySupervisor(ctx, p.PrincipalID)
	if err != nil {
		return err
	}
	if len(assignments) > 0 {
		return &pkgerrors.WorkflowError{
			Kind:   pkgerrors.ErrInvalidState,
			Entity: "supervisor",
			ID:     p.PrincipalID,
			Msg:    "导师仍有 " + itoa(len(assignments)) + " 个指导小组，请先重新分配",
		}
	}
	activities, err := s.repo.Activity.ListByAuthor(ctx, model.RoleSupervisor, p.PrincipalID)
	if err != nil {
		return err
	}
	if len(activities) > 0 {
		return &pkgerrors.WorkflowError{
			Kind:   pkgerrors.ErrInvalidState,
			Entity: "supervisor",
			ID:     p.PrincipalID,
			Msg:    "导师名下仍有 " + itoa(len(activities)) + " 个活动，请先删除",
		}
	}
	if err := s.repo.Principal.Delete(ctx, p.PrincipalID); err != nil {
		return constraint(err, "supervisor", p.PrincipalID)
	}
	return nil
}

func (s *accountService) deleteStudent(ctx context.Context, p *model.Principal) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		account, err := tx.Student.GetAccountByPrincipal(ctx, p.PrincipalID)
		if err != nil && !isRecordNotFound(err) {
			return err
		}
		if account != nil {
			locked, err := tx.Student.LockAccount(ctx, account.StudentID)
			if err != nil {
				return notFound(err, "student_account", account.StudentID)
			}
			if locked.Grouped() {
				return pkgerrors.New(pkgerrors.ErrAlreadyGrouped, "student_account", locked.StudentID)
			}
			if _, err := tx.TeamRequest.DeclinePendingFor(ctx, locked.StudentID, nowUTC()); err != nil {
				return err
			}
		}
		if err := tx.Principal.Delete(ctx, p.PrincipalID); err != nil {
			return constraint(err, "principal", p.PrincipalID)
		}
		return nil
	})
}
