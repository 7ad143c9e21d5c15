package service

import (
	"context"

	"go.uber.org/zap"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// SupervisorService 导师分配业务接口
type SupervisorService interface {
	Assign(ctx context.Context, actor Actor, groupCode string, req *dto.AssignSupervisorRequest) (*dto.AssignmentResponse, error)
	ListSupervisors(ctx context.Context, actor Actor) ([]dto.SupervisorResponse, error)
	ListMyGroups(ctx context.Context, actor Actor) ([]dto.GroupResponse, error)
}

type supervisorService struct {
	repo     *repository.Repository
	recorder TransitionRecorder
	logger   *zap.Logger
}

// NewSupervisorService 创建 SupervisorService 实例
func NewSupervisorService(repo *repository.Repository, recorder TransitionRecorder, logger *zap.Logger) SupervisorService {
	return &supervisorService{repo: repo, recorder: recorderOrNoop(recorder), logger: logger}
}

// Assign 覆盖式分配，不保留历史；不校验导师负载
func (s *supervisorService) Assign(ctx context.Context, actor Actor, groupCode string, req *dto.AssignSupervisorRequest) (*dto.AssignmentResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	supervisor, err := s.repo.Principal.GetByID(ctx, req.SupervisorID)
	if err != nil {
		return nil, notFound(err, "supervisor", req.SupervisorID)
	}
	if supervisor.Role != model.RoleSupervisor {
		return nil, pkgerrors.New(pkgerrors.ErrNotFound, "supervisor", req.SupervisorID)
	}
	if !supervisor.IsActive {
		return nil, pkgerrors.State("supervisor", req.SupervisorID, "active", "inactive")
	}
	if ok, err := s.repo.Group.Exists(ctx, groupCode); err != nil {
		s.logger.Error("查询小组失败", zap.Error(err))
		return nil, err
	} else if !ok {
		return nil, pkgerrors.New(pkgerrors.ErrNotFound, "group", groupCode)
	}

	a := &model.SupervisorAssignment{
		GroupCode:    groupCode,
		SupervisorID: supervisor.PrincipalID,
		AssignedAt:   nowUTC(),
	}
	if err := s.repo.Assignment.Upsert(ctx, a); err != nil {
		s.logger.Error("分配导师失败", zap.String("group_code", groupCode), zap.Error(err))
		return nil, constraint(err, "supervisor_assignment", groupCode)
	}

	s.recorder.Transition(machineAssignment, "assigned")
	s.logger.Info("导师已分配",
		zap.String("group_code", groupCode),
		zap.String("supervisor_id", a.SupervisorID),
	)
	return &dto.AssignmentResponse{
		GroupCode:    a.GroupCode,
		SupervisorID: a.SupervisorID,
		AssignedAt:   dto.FormatTime(a.AssignedAt),
	}, nil
}

func (s *supervisorService) ListSupervisors(ctx context.Context, actor Actor) ([]dto.SupervisorResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	list, err := s.repo.Principal.ListSupervisors(ctx)
	if err != nil {
		s.logger.Error("查询导师列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.SupervisorResponse, 0, len(list))
	for i := range list {
		result = append(result, toSupervisorResponse(&list[i]))
	}
	return result, nil
}

// ListMyGroups 导师名下的小组
func (s *supervisorService) ListMyGroups(ctx context.Context, actor Actor) ([]dto.GroupResponse, error) {
	if err := requireRole(actor, model.RoleSupervisor); err != nil {
		return nil, err
	}
	codes, err := assignedGroupCodes(ctx, s.repo, actor.ID)
	if err != nil {
		s.logger.Error("查询导师分配失败", zap.Error(err))
		return nil, err
	}
	groups, err := s.repo.Group.ListByCodes(ctx, codes)
	if err != nil {
		s.logger.Error("查询小组失败", zap.Error(err))
		return nil, err
	}
	return buildGroupResponses(ctx, s.repo, groups)
}

// assignedGroupCodes 导师当前负责的小组编号
func assignedGroupCodes(ctx context.Context, repo *repository.Repository, supervisorID string) ([]string, error) {
	list, err := repo.Assignment.ListBySupervisor(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(list))
	for _, a := range list {
		codes = append(codes, a.GroupCode)
	}
	return codes, nil
}

// isAssignedSupervisor 导师是否为该小组当前导师
func isAssignedSupervisor(ctx context.Context, repo *repository.Repository, supervisorID, groupCode string) (bool, error) {
	a, err := repo.Assignment.GetByGroup(ctx, groupCode)
	if err != nil {
		if isRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return a.SupervisorID == supervisorID, nil
}

func toSupervisorResponse(p *model.Principal) dto.SupervisorResponse {
	resp := dto.SupervisorResponse{ID: p.PrincipalID, Username: p.Username}
	if p.SupervisorProfile != nil {
		resp.Name = p.SupervisorProfile.Name
		resp.Email = p.SupervisorProfile.Email
		resp.Phone = p.SupervisorProfile.Phone
	}
	return resp
}
