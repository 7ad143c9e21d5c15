package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// ActivityService 阶段活动业务接口
type ActivityService interface {
	Create(ctx context.Context, actor Actor, req *dto.ActivityRequest) (*dto.ActivityResponse, error)
	Update(ctx context.Context, actor Actor, activityID string, req *dto.ActivityRequest) (*dto.ActivityResponse, error)
	Delete(ctx context.Context, actor Actor, activityID string) error
	ListMine(ctx context.Context, actor Actor) ([]dto.ActivityResponse, error)
	ListForGroup(ctx context.Context, actor Actor) ([]dto.GroupActivityResponse, error)
}

type activityService struct {
	repo     *repository.Repository
	recorder TransitionRecorder
	logger   *zap.Logger
}

// NewActivityService 创建 ActivityService 实例
func NewActivityService(repo *repository.Repository, recorder TransitionRecorder, logger *zap.Logger) ActivityService {
	return &activityService{repo: repo, recorder: recorderOrNoop(recorder), logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *activityService) Create(ctx context.Context, actor Actor, req *dto.ActivityRequest) (*dto.ActivityResponse, error) {
	if err := requireRole(actor, model.RoleAdmin, model.RoleSupervisor); err != nil {
		return nil, err
	}
	a, err := s.buildActivity(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	a.CreatedByRole = actor.Role
	a.CreatedByID = actor.ID

	if err := s.repo.Activity.Create(ctx, a); err != nil {
		s.logger.Error("创建活动失败", zap.Error(err))
		return nil, constraint(err, "activity", "")
	}

	s.recorder.Transition(machineActivity, "created")
	s.logger.Info("活动已创建",
		zap.String("activity_id", a.ActivityID),
		zap.String("role", string(actor.Role)),
		zap.String("author_id", actor.ID),
	)
	resp := toActivityResponse(a)
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

// Update 仅作者本人；定向小组整体替换
func (s *activityService) Update(ctx context.Context, actor Actor, activityID string, req *dto.ActivityRequest) (*dto.ActivityResponse, error) {
	if err := requireRole(actor, model.RoleAdmin, model.RoleSupervisor); err != nil {
		return nil, err
	}
	existing, err := s.authored(ctx, actor, activityID)
	if err != nil {
		return nil, err
	}
	next, err := s.buildActivity(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	existing.Title = next.Title
	existing.Description = next.Description
	existing.StartAt = next.StartAt
	existing.DeadlineAt = next.DeadlineAt
	existing.RequirePDF = next.RequirePDF
	existing.ScopeAllGroups = next.ScopeAllGroups
	existing.Targets = next.Targets

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Activity.Update(ctx, existing); err != nil {
			return err
		}
		return tx.Activity.ReplaceTargets(ctx, activityID, targetCodes(existing.Targets))
	})
	if err != nil {
		s.logger.Error("更新活动失败", zap.String("activity_id", activityID), zap.Error(err))
		return nil, constraint(err, "activity", activityID)
	}

	s.recorder.Transition(machineActivity, "updated")
	resp := toActivityResponse(existing)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 仅作者本人；定向与提交级联删除
func (s *activityService) Delete(ctx context.Context, actor Actor, activityID string) error {
	if err := requireRole(actor, model.RoleAdmin, model.RoleSupervisor); err != nil {
		return err
	}
	if _, err := s.authored(ctx, actor, activityID); err != nil {
		return err
	}
	if err := s.repo.Activity.Delete(ctx, activityID); err != nil {
		s.logger.Error("删除活动失败", zap.String("activity_id", activityID), zap.Error(err))
		return err
	}
	s.recorder.Transition(machineActivity, "deleted")
	s.logger.Info("活动已删除", zap.String("activity_id", activityID), zap.String("author_id", actor.ID))
	return nil
}

// ────────────────────── 查询 ──────────────────────

func (s *activityService) ListMine(ctx context.Context, actor Actor) ([]dto.ActivityResponse, error) {
	if err := requireRole(actor, model.RoleAdmin, model.RoleSupervisor); err != nil {
		return nil, err
	}
	list, err := s.repo.Activity.ListByAuthor(ctx, actor.Role, actor.ID)
	if err != nil {
		s.logger.Error("查询活动失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ActivityResponse, 0, len(list))
	for i := range list {
		result = append(result, toActivityResponse(&list[i]))
	}
	return result, nil
}

// ListForGroup 学生端：本组可见活动及本组提交情况
func (s *activityService) ListForGroup(ctx context.Context, actor Actor) ([]dto.GroupActivityResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	if !account.Grouped() {
		return []dto.GroupActivityResponse{}, nil
	}
	groupCode := *account.GroupCode

	activities, err := s.repo.Activity.ListForGroup(ctx, groupCode)
	if err != nil {
		s.logger.Error("查询小组活动失败", zap.Error(err))
		return nil, err
	}
	submissions, err := s.repo.Submission.ListByGroup(ctx, groupCode)
	if err != nil {
		s.logger.Error("查询小组提交失败", zap.Error(err))
		return nil, err
	}
	byActivity := make(map[string]*model.Submission, len(submissions))
	for i := range submissions {
		byActivity[submissions[i].ActivityID] = &submissions[i]
	}

	now := nowUTC()
	result := make([]dto.GroupActivityResponse, 0, len(activities))
	for i := range activities {
		a := &activities[i]
		item := dto.GroupActivityResponse{Activity: toActivityResponse(a)}
		sub := byActivity[a.ActivityID]
		if sub != nil {
			r := toSubmissionResponse(sub)
			item.Submission = &r
		}
		item.Locked = a.DeadlinePassed(now) || (sub != nil && sub.Status == model.SubmissionMarked)
		result = append(result, item)
	}
	return result, nil
}

// ── 内部辅助 ──

// authored 读取活动并校验作者（角色 + ID）
func (s *activityService) authored(ctx context.Context, actor Actor, activityID string) (*model.Activity, error) {
	a, err := s.repo.Activity.GetByID(ctx, activityID)
	if err != nil {
		return nil, notFound(err, "activity", activityID)
	}
	if !a.AuthoredBy(actor.Role, actor.ID) {
		return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "activity", activityID)
	}
	return a, nil
}

// buildActivity 校验输入并解析定向小组
func (s *activityService) buildActivity(ctx context.Context, actor Actor, req *dto.ActivityRequest) (*model.Activity, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, pkgerrors.Validation("活动标题不能为空")
	}
	if req.StartAt != nil && req.DeadlineAt != nil && !req.DeadlineAt.After(*req.StartAt) {
		return nil, pkgerrors.Validation("截止时间必须晚于开始时间")
	}

	a := &model.Activity{
		Title:          title,
		Description:    req.Description,
		StartAt:        utcPtr(req.StartAt),
		DeadlineAt:     utcPtr(req.DeadlineAt),
		RequirePDF:     req.RequirePDF,
		ScopeAllGroups: true,
	}
	if req.ScopeAllGroups != nil {
		a.ScopeAllGroups = *req.ScopeAllGroups
	}
	if a.ScopeAllGroups {
		return a, nil
	}

	codes, err := s.resolveTargets(ctx, actor, dedupe(req.GroupCodes))
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, pkgerrors.Validation("请至少选择一个目标小组")
	}
	for _, code := range codes {
		a.Targets = append(a.Targets, model.ActivityTarget{GroupCode: code})
	}
	return a, nil
}

// resolveTargets 管理员的目标小组必须存在；导师的目标只保留其负责的小组
func (s *activityService) resolveTargets(ctx context.Context, actor Actor, codes []string) ([]string, error) {
	switch actor.Role {
	case model.RoleAdmin:
		groups, err := s.repo.Group.ListByCodes(ctx, codes)
		if err != nil {
			return nil, err
		}
		found := make(map[string]bool, len(groups))
		for _, g := range groups {
			found[g.GroupCode] = true
		}
		for _, code := range codes {
			if !found[code] {
				return nil, pkgerrors.New(pkgerrors.ErrNotFound, "group", code)
			}
		}
		return codes, nil
	case model.RoleSupervisor:
		assigned, err := assignedGroupCodes(ctx, s.repo, actor.ID)
		if err != nil {
			return nil, err
		}
		mine := make(map[string]bool, len(assigned))
		for _, code := range assigned {
			mine[code] = true
		}
		kept := make([]string, 0, len(codes))
		for _, code := range codes {
			if mine[code] {
				kept = append(kept, code)
			}
		}
		return kept, nil
	default:
		return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "activity", "")
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func targetCodes(targets []model.ActivityTarget) []string {
	codes := make([]string, 0, len(targets))
	for _, t := range targets {
		codes = append(codes, t.GroupCode)
	}
	return codes
}

func toActivityResponse(a *model.Activity) dto.ActivityResponse {
	return dto.ActivityResponse{
		ID:             a.ActivityID,
		CreatedByRole:  string(a.CreatedByRole),
		CreatedByID:    a.CreatedByID,
		Title:          a.Title,
		Description:    a.Description,
		StartAt:        dto.FormatTimePtr(a.StartAt),
		DeadlineAt:     dto.FormatTimePtr(a.DeadlineAt),
		RequirePDF:     a.RequirePDF,
		ScopeAllGroups: a.ScopeAllGroups,
		GroupCodes:     targetCodes(a.Targets),
		CreatedAt:      dto.FormatTime(a.CreatedAt),
		UpdatedAt:      dto.FormatTime(a.UpdatedAt),
	}
}
