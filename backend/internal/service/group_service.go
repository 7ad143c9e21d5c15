package service

import (
	"context"

	"go.uber.org/zap"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// GroupService 小组查询接口
type GroupService interface {
	MyGroup(ctx context.Context, actor Actor) (*dto.GroupResponse, error)
	Get(ctx context.Context, actor Actor, groupCode string) (*dto.GroupResponse, error)
	List(ctx context.Context, actor Actor, req *dto.GroupListRequest) ([]dto.GroupResponse, int64, error)
}

type groupService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewGroupService 创建 GroupService 实例
func NewGroupService(repo *repository.Repository, logger *zap.Logger) GroupService {
	return &groupService{repo: repo, logger: logger}
}

func (s *groupService) MyGroup(ctx context.Context, actor Actor) (*dto.GroupResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	code, err := groupOf(account)
	if err != nil {
		return nil, err
	}
	return buildGroupResponse(ctx, s.repo, code)
}

// Get 管理员任意小组；导师仅限负责的小组；学生仅限本组
func (s *groupService) Get(ctx context.Context, actor Actor, groupCode string) (*dto.GroupResponse, error) {
	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleSupervisor:
		ok, err := isAssignedSupervisor(ctx, s.repo, actor.ID, groupCode)
		if err != nil {
			s.logger.Error("查询导师分配失败", zap.Error(err))
			return nil, err
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "group", groupCode)
		}
	case model.RoleStudent:
		account, err := studentAccountOf(ctx, s.repo, actor)
		if err != nil {
			return nil, err
		}
		if !account.Grouped() || *account.GroupCode != groupCode {
			return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "group", groupCode)
		}
	default:
		return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "principal", actor.ID)
	}
	return buildGroupResponse(ctx, s.repo, groupCode)
}

func (s *groupService) List(ctx context.Context, actor Actor, req *dto.GroupListRequest) ([]dto.GroupResponse, int64, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, 0, err
	}
	groups, total, err := s.repo.Group.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询小组列表失败", zap.Error(err))
		return nil, 0, err
	}
	list, err := buildGroupResponses(ctx, s.repo, groups)
	if err != nil {
		s.logger.Error("组装小组列表失败", zap.Error(err))
		return nil, 0, err
	}
	return list, total, nil
}
