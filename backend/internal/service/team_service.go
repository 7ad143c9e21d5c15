package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"upms-teamup/backend/config"
	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// TeamService 组队业务接口
type TeamService interface {
	SendRequest(ctx context.Context, actor Actor, req *dto.SendTeamRequest) (*dto.TeamRequestResponse, error)
	AcceptRequest(ctx context.Context, actor Actor, requestID string) (*dto.GroupResponse, error)
	DeclineRequest(ctx context.Context, actor Actor, requestID string) (*dto.TeamRequestResponse, error)
	AddMember(ctx context.Context, actor Actor, groupCode string, req *dto.AddMemberRequest) (*dto.GroupResponse, error)

	ListInbox(ctx context.Context, actor Actor) ([]dto.TeamRequestResponse, error)
	ListSent(ctx context.Context, actor Actor) ([]dto.TeamRequestResponse, error)
	ListCandidates(ctx context.Context, actor Actor, req *dto.CandidateListRequest) ([]dto.CandidateResponse, error)
}

type teamService struct {
	repo       *repository.Repository
	codes      GroupCodeGenerator
	maxMembers int
	recorder   TransitionRecorder
	logger     *zap.Logger
}

// NewTeamService 创建 TeamService 实例
func NewTeamService(
	cfg *config.WorkflowConfig,
	repo *repository.Repository,
	codes GroupCodeGenerator,
	recorder TransitionRecorder,
	logger *zap.Logger,
) TeamService {
	return &teamService{
		repo:       repo,
		codes:      codes,
		maxMembers: cfg.MaxGroupMembers,
		recorder:   recorderOrNoop(recorder),
		logger:     logger,
	}
}

// ────────────────────── SendRequest ──────────────────────

func (s *teamService) SendRequest(ctx context.Context, actor Actor, req *dto.SendTeamRequest) (*dto.TeamRequestResponse, error) {
	requester, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	if req.ReceiverStudentID == requester.StudentID {
		return nil, pkgerrors.Validation("不能向自己发送组队请求")
	}

	receiver, err := s.repo.Student.GetAccountByStudentID(ctx, req.ReceiverStudentID)
	if err != nil {
		return nil, notFound(err, "student_account", req.ReceiverStudentID)
	}

	if requester.Grouped() {
		return nil, pkgerrors.New(pkgerrors.ErrAlreadyGrouped, "student_account", requester.StudentID)
	}
	if receiver.Grouped() {
		return nil, pkgerrors.New(pkgerrors.ErrAlreadyGrouped, "student_account", receiver.StudentID)
	}

	if _, err := s.repo.TeamRequest.FindPending(ctx, requester.StudentID, receiver.StudentID); err == nil {
		return nil, pkgerrors.New(pkgerrors.ErrDuplicatePending, "team_request", requester.StudentID+"->"+receiver.StudentID)
	} else if !isRecordNotFound(err) {
		s.logger.Error("查询待处理组队请求失败", zap.Error(err))
		return nil, err
	}

	tr := &model.TeamRequest{
		RequesterStudentID: requester.StudentID,
		ReceiverStudentID:  receiver.StudentID,
		Status:             model.TeamRequestPending,
		CreatedAt:          nowUTC(),
	}
	if err := s.repo.TeamRequest.Create(ctx, tr); err != nil {
		// 并发重复发送由部分唯一索引兜底
		if isDuplicateKey(err) {
			return nil, pkgerrors.New(pkgerrors.ErrDuplicatePending, "team_request", requester.StudentID+"->"+receiver.StudentID)
		}
		s.logger.Error("创建组队请求失败", zap.Error(err))
		return nil, err
	}

	s.recorder.Transition(machineTeamRequest, string(model.TeamRequestPending))
	tr.Requester = requester.Record
	tr.Receiver = receiver.Record
	resp := toTeamRequestResponse(tr)
	return &resp, nil
}

// ────────────────────── AcceptRequest ──────────────────────

// maxAcceptAttempts 小组编号主键冲突时整笔事务的最大执行次数
const maxAcceptAttempts = 3

func (s *teamService) AcceptRequest(ctx context.Context, actor Actor, requestID string) (*dto.GroupResponse, error) {
	acceptor, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}

	var (
		groupCode     string
		requesterGone bool
	)
	for attempt := 1; ; attempt++ {
		groupCode, requesterGone, err = s.acceptOnce(ctx, acceptor, requestID)
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) || attempt >= maxAcceptAttempts {
			break
		}
		s.logger.Warn("小组编号冲突，重试接受",
			zap.String("request_id", requestID), zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("接受组队请求失败", zap.String("request_id", requestID), zap.Error(err))
		}
		return nil, err
	}

	if requesterGone {
		s.recorder.Transition(machineTeamRequest, string(model.TeamRequestDeclined))
		return nil, pkgerrors.New(pkgerrors.ErrRequesterUnavailable, "team_request", requestID)
	}

	s.recorder.Transition(machineTeamRequest, string(model.TeamRequestAccepted))
	s.logger.Info("小组已创建", zap.String("group_code", groupCode), zap.String("request_id", requestID))
	return buildGroupResponse(ctx, s.repo, groupCode)
}

// acceptOnce 单次接受事务；编号主键冲突时整笔回滚并返回 ErrOptimisticLock
func (s *teamService) acceptOnce(ctx context.Context, acceptor *model.StudentAccount, requestID string) (string, bool, error) {
	var (
		groupCode     string
		requesterGone bool
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		tr, err := tx.TeamRequest.LockByID(ctx, requestID)
		if err != nil {
			return notFound(err, "team_request", requestID)
		}
		if tr.ReceiverStudentID != acceptor.StudentID {
			return pkgerrors.New(pkgerrors.ErrNotAuthorized, "team_request", requestID)
		}
		if tr.Status != model.TeamRequestPending {
			return pkgerrors.State("team_request", requestID, string(model.TeamRequestPending), string(tr.Status))
		}

		accounts, err := lockAccounts(ctx, tx, tr.RequesterStudentID, tr.ReceiverStudentID)
		if err != nil {
			return err
		}
		requester, receiver := accounts[tr.RequesterStudentID], accounts[tr.ReceiverStudentID]

		if receiver.Grouped() {
			return pkgerrors.New(pkgerrors.ErrAlreadyGrouped, "student_account", receiver.StudentID)
		}

		now := nowUTC()
		if requester.Grouped() {
			requesterGone = true
			return tx.TeamRequest.UpdateStatus(ctx, requestID, model.TeamRequestDeclined, now)
		}

		code, err := s.codes.Next(ctx, tx.Group, now)
		if err != nil {
			return err
		}
		if err := tx.Group.Create(ctx, &model.Group{GroupCode: code, CreatedAt: now}); err != nil {
			if isDuplicateKey(err) {
				return pkgerrors.New(pkgerrors.ErrOptimisticLock, "group", code)
			}
			return err
		}
		for _, sid := range []string{tr.RequesterStudentID, tr.ReceiverStudentID} {
			if err := tx.Group.AddMember(ctx, &model.GroupMember{GroupCode: code, StudentID: sid, JoinedAt: now}); err != nil {
				return constraint(err, "group_member", sid)
			}
			if err := tx.Student.AssignGroup(ctx, sid, code); err != nil {
				return err
			}
		}
		if err := tx.TeamRequest.UpdateStatus(ctx, requestID, model.TeamRequestAccepted, now); err != nil {
			return err
		}
		groupCode = code
		return nil
	})
	return groupCode, requesterGone, err
}

// lockAccounts 按学号升序加锁，避免交叉接受时死锁
func lockAccounts(ctx context.Context, tx *repository.Repository, studentIDs ...string) (map[string]*model.StudentAccount, error) {
	ids := append([]string(nil), studentIDs...)
	sort.Strings(ids)

	out := make(map[string]*model.StudentAccount, len(ids))
	for _, id := range ids {
		a, err := tx.Student.LockAccount(ctx, id)
		if err != nil {
			return nil, notFound(err, "student_account", id)
		}
		out[id] = a
	}
	return out, nil
}

// ────────────────────── DeclineRequest ──────────────────────

func (s *teamService) DeclineRequest(ctx context.Context, actor Actor, requestID string) (*dto.TeamRequestResponse, error) {
	receiver, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}

	var declined *model.TeamRequest
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		tr, err := tx.TeamRequest.LockByID(ctx, requestID)
		if err != nil {
			return notFound(err, "team_request", requestID)
		}
		if tr.ReceiverStudentID != receiver.StudentID {
			return pkgerrors.New(pkgerrors.ErrNotAuthorized, "team_request", requestID)
		}
		if tr.Status != model.TeamRequestPending {
			return pkgerrors.State("team_request", requestID, string(model.TeamRequestPending), string(tr.Status))
		}

		now := nowUTC()
		if err := tx.TeamRequest.UpdateStatus(ctx, requestID, model.TeamRequestDeclined, now); err != nil {
			return err
		}
		tr.Status = model.TeamRequestDeclined
		tr.RespondedAt = &now
		declined = tr
		return nil
	})
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("拒绝组队请求失败", zap.String("request_id", requestID), zap.Error(err))
		}
		return nil, err
	}

	s.recorder.Transition(machineTeamRequest, string(model.TeamRequestDeclined))
	resp := toTeamRequestResponse(declined)
	return &resp, nil
}

// ────────────────────── AddMember ──────────────────────

// AddMember 管理员直接将已注册学生加入现有小组，不经过请求流程
func (s *teamService) AddMember(ctx context.Context, actor Actor, groupCode string, req *dto.AddMemberRequest) (*dto.GroupResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Group.LockByCode(ctx, groupCode); err != nil {
			return notFound(err, "group", groupCode)
		}
		account, err := tx.Student.LockAccount(ctx, req.StudentID)
		if err != nil {
			return notFound(err, "student_account", req.StudentID)
		}
		if account.Grouped() {
			return pkgerrors.New(pkgerrors.ErrAlreadyGrouped, "student_account", req.StudentID)
		}

		count, err := tx.Group.CountMembers(ctx, groupCode)
		if err != nil {
			return err
		}
		if int(count) >= s.maxMembers {
			return &pkgerrors.WorkflowError{
				Kind:     pkgerrors.ErrGroupFull,
				Entity:   "group",
				ID:       groupCode,
				Expected: "<" + itoa(s.maxMembers),
				Actual:   itoa(int(count)),
			}
		}

		if err := tx.Group.AddMember(ctx, &model.GroupMember{
			GroupCode: groupCode,
			StudentID: req.StudentID,
			JoinedAt:  nowUTC(),
		}); err != nil {
			return constraint(err, "group_member", req.StudentID)
		}
		return tx.Student.AssignGroup(ctx, req.StudentID, groupCode)
	})
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("管理员添加组员失败", zap.String("group_code", groupCode), zap.Error(err))
		}
		return nil, err
	}

	s.recorder.Transition(machineMembership, "admin_added")
	s.logger.Info("管理员添加组员",
		zap.String("group_code", groupCode),
		zap.String("student_id", req.StudentID),
		zap.String("admin_id", actor.ID),
	)
	return buildGroupResponse(ctx, s.repo, groupCode)
}

// ────────────────────── 查询 ──────────────────────

func (s *teamService) ListInbox(ctx context.Context, actor Actor) ([]dto.TeamRequestResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.TeamRequest.ListByReceiver(ctx, account.StudentID, model.TeamRequestPending)
	if err != nil {
		s.logger.Error("查询收到的组队请求失败", zap.Error(err))
		return nil, err
	}
	return toTeamRequestResponses(list), nil
}

func (s *teamService) ListSent(ctx context.Context, actor Actor) ([]dto.TeamRequestResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.TeamRequest.ListByRequester(ctx, account.StudentID)
	if err != nil {
		s.logger.Error("查询发出的组队请求失败", zap.Error(err))
		return nil, err
	}
	return toTeamRequestResponses(list), nil
}

func (s *teamService) ListCandidates(ctx context.Context, actor Actor, req *dto.CandidateListRequest) ([]dto.CandidateResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.Student.ListUngrouped(ctx, req.Keyword, account.StudentID, 50)
	if err != nil {
		s.logger.Error("查询候选同学失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.CandidateResponse, 0, len(list))
	for _, a := range list {
		c := dto.CandidateResponse{
			StudentID:      a.StudentID,
			AvatarInitials: a.AvatarInitials,
			AvatarColor:    a.AvatarColor,
		}
		if a.Record != nil {
			c.Name = a.Record.Name
			c.Program = a.Record.Program
		}
		result = append(result, c)
	}
	return result, nil
}

// ── 转换 ──

func toTeamRequestResponse(tr *model.TeamRequest) dto.TeamRequestResponse {
	resp := dto.TeamRequestResponse{
		ID:                 tr.RequestID,
		RequesterStudentID: tr.RequesterStudentID,
		ReceiverStudentID:  tr.ReceiverStudentID,
		Status:             string(tr.Status),
		CreatedAt:          dto.FormatTime(tr.CreatedAt),
		RespondedAt:        dto.FormatTimePtr(tr.RespondedAt),
	}
	if tr.Requester != nil {
		resp.RequesterName = tr.Requester.Name
	}
	if tr.Receiver != nil {
		resp.ReceiverName = tr.Receiver.Name
	}
	return resp
}

func toTeamRequestResponses(list []model.TeamRequest) []dto.TeamRequestResponse {
	result := make([]dto.TeamRequestResponse, 0, len(list))
	for i := range list {
		result = append(result, toTeamRequestResponse(&list[i]))
	}
	return result
}
