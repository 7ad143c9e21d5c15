package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// TitleService 选题审批业务接口
type TitleService interface {
	SetWindow(ctx context.Context, actor Actor, req *dto.SetWindowRequest) (*dto.WindowResponse, error)
	CurrentWindow(ctx context.Context) (*dto.WindowResponse, error)

	Submit(ctx context.Context, actor Actor, req *dto.SubmitProposalRequest) (*dto.ProposalResponse, error)
	AdminDecide(ctx context.Context, actor Actor, proposalID string, req *dto.DecisionRequest) (*dto.ProposalResponse, error)
	SupervisorDecide(ctx context.Context, actor Actor, proposalID string, req *dto.DecisionRequest) (*dto.ProposalResponse, error)

	GroupTitles(ctx context.Context, actor Actor) (*dto.GroupTitlesResponse, error)
	ListProposals(ctx context.Context, actor Actor, req *dto.ProposalListRequest) ([]dto.ProposalResponse, error)
	ListForSupervisor(ctx context.Context, actor Actor) ([]dto.ProposalResponse, error)
	SearchTaken(ctx context.Context, req *dto.TitleSearchRequest) ([]dto.TakenTitleResponse, error)
}

type titleService struct {
	repo     *repository.Repository
	recorder TransitionRecorder
	logger   *zap.Logger
}

// NewTitleService 创建 TitleService 实例
func NewTitleService(repo *repository.Repository, recorder TransitionRecorder, logger *zap.Logger) TitleService {
	return &titleService{repo: repo, recorder: recorderOrNoop(recorder), logger: logger}
}

// ────────────────────── 选题窗口 ──────────────────────

// SetWindow 追加一条窗口配置，不修改历史记录
func (s *titleService) SetWindow(ctx context.Context, actor Actor, req *dto.SetWindowRequest) (*dto.WindowResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	w := &model.TitleSelectionWindow{
		IsOpen:         *req.IsOpen,
		ScopeAllGroups: true,
		CreatedBy:      &actor.ID,
		CreatedAt:      nowUTC(),
	}
	if req.ScopeAllGroups != nil {
		w.ScopeAllGroups = *req.ScopeAllGroups
	}
	if err := s.repo.Title.CreateWindow(ctx, w); err != nil {
		s.logger.Error("保存选题窗口失败", zap.Error(err))
		return nil, err
	}

	outcome := "closed"
	if w.IsOpen {
		outcome = "opened"
	}
	s.recorder.Transition(machineWindow, outcome)
	s.logger.Info("选题窗口已变更", zap.Bool("is_open", w.IsOpen), zap.String("admin_id", actor.ID))
	resp := toWindowResponse(w)
	return &resp, nil
}

func (s *titleService) CurrentWindow(ctx context.Context) (*dto.WindowResponse, error) {
	w, err := s.latestWindow(ctx, s.repo)
	if err != nil {
		s.logger.Error("查询选题窗口失败", zap.Error(err))
		return nil, err
	}
	resp := toWindowResponse(w)
	return &resp, nil
}

// latestWindow 当前窗口配置；从未配置时返回 nil
func (s *titleService) latestWindow(ctx context.Context, repo *repository.Repository) (*model.TitleSelectionWindow, error) {
	w, err := repo.Title.LatestWindow(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

// ────────────────────── Submit ──────────────────────

func (s *titleService) Submit(ctx context.Context, actor Actor, req *dto.SubmitProposalRequest) (*dto.ProposalResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	groupCode, err := groupOf(account)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, pkgerrors.Validation("题目不能为空")
	}

	var created *model.TitleProposal
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 锁小组行，串行化同组并发申报
		if _, err := tx.Group.LockByCode(ctx, groupCode); err != nil {
			return notFound(err, "group", groupCode)
		}

		w, err := s.latestWindow(ctx, tx)
		if err != nil {
			return err
		}
		if !windowOpen(w) {
			return pkgerrors.New(pkgerrors.ErrWindowClosed, "title_selection_window", "")
		}

		list, err := tx.Title.ListProposalsByGroup(ctx, groupCode)
		if err != nil {
			return err
		}
		if final := finalProposal(list); final != nil {
			return pkgerrors.New(pkgerrors.ErrTitleLocked, "title_proposal", final.ProposalID)
		}
		if cur := currentProposal(list); cur != nil && cur.Live() {
			return pkgerrors.State("title_proposal", cur.ProposalID, "Rejected", decisionPair(cur))
		}

		p := &model.TitleProposal{
			GroupCode:        groupCode,
			Title:            title,
			ProjectType:      strings.TrimSpace(req.ProjectType),
			StatusAdmin:      model.DecisionPending,
			StatusSupervisor: model.DecisionPending,
			SubmittedAt:      nowUTC(),
		}
		if err := tx.Title.CreateProposal(ctx, p); err != nil {
			return constraint(err, "title_proposal", groupCode)
		}
		created = p
		return nil
	})
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("提交题目失败", zap.String("group_code", groupCode), zap.Error(err))
		}
		return nil, err
	}

	s.recorder.Transition(machineTitle, "submitted")
	resp := toProposalResponse(created)
	return &resp, nil
}

// ────────────────────── 审批 ──────────────────────

// AdminDecide 一级审批，不受窗口限制
func (s *titleService) AdminDecide(ctx context.Context, actor Actor, proposalID string, req *dto.DecisionRequest) (*dto.ProposalResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	decision, err := decisionOf(req.Action)
	if err != nil {
		return nil, err
	}

	var decided *model.TitleProposal
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		p, err := s.lockCurrent(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if p.StatusAdmin != model.DecisionPending {
			return pkgerrors.State("title_proposal", proposalID, "admin Pending", "admin "+string(p.StatusAdmin))
		}

		now := nowUTC()
		p.StatusAdmin = decision
		p.LastActionAt = &now
		if err := tx.Title.UpdateDecision(ctx, p); err != nil {
			return err
		}
		decided = p
		return nil
	})
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("管理员审批题目失败", zap.String("proposal_id", proposalID), zap.Error(err))
		}
		return nil, err
	}

	s.recorder.Transition(machineTitle, "admin_"+strings.ToLower(string(decision)))
	resp := toProposalResponse(decided)
	return &resp, nil
}

// SupervisorDecide 二级审批：仅限小组当前导师，且管理员已通过
func (s *titleService) SupervisorDecide(ctx context.Context, actor Actor, proposalID string, req *dto.DecisionRequest) (*dto.ProposalResponse, error) {
	if err := requireRole(actor, model.RoleSupervisor); err != nil {
		return nil, err
	}
	decision, err := decisionOf(req.Action)
	if err != nil {
		return nil, err
	}

	var decided *model.TitleProposal
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		p, err := s.lockCurrent(ctx, tx, proposalID)
		if err != nil {
			return err
		}

		ok, err := isAssignedSupervisor(ctx, tx, actor.ID, p.GroupCode)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.ErrNotAuthorized, "title_proposal", proposalID)
		}
		if p.StatusAdmin != model.DecisionApproved {
			return pkgerrors.State("title_proposal", proposalID, "admin Approved", "admin "+string(p.StatusAdmin))
		}
		if p.StatusSupervisor != model.DecisionPending {
			return pkgerrors.State("title_proposal", proposalID, "supervisor Pending", "supervisor "+string(p.StatusSupervisor))
		}

		now := nowUTC()
		p.StatusSupervisor = decision
		p.LastActionAt = &now
		if err := tx.Title.UpdateDecision(ctx, p); err != nil {
			// 小组最多一个最终题目，由部分唯一索引兜底
			if isDuplicateKey(err) {
				return pkgerrors.New(pkgerrors.ErrTitleLocked, "title_proposal", proposalID)
			}
			return err
		}
		decided = p
		return nil
	})
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("导师审批题目失败", zap.String("proposal_id", proposalID), zap.Error(err))
		}
		return nil, err
	}

	s.recorder.Transition(machineTitle, "supervisor_"+strings.ToLower(string(decision)))
	if decided.Final() {
		s.logger.Info("题目已最终确定", zap.String("group_code", decided.GroupCode), zap.String("proposal_id", proposalID))
	}
	resp := toProposalResponse(decided)
	return &resp, nil
}

// lockCurrent 锁定申报行并确认其为小组当前申报；被取代的旧申报不再接受审批
func (s *titleService) lockCurrent(ctx context.Context, tx *repository.Repository, proposalID string) (*model.TitleProposal, error) {
	p, err := tx.Title.LockProposal(ctx, proposalID)
	if err != nil {
		return nil, notFound(err, "title_proposal", proposalID)
	}
	list, err := tx.Title.ListProposalsByGroup(ctx, p.GroupCode)
	if err != nil {
		return nil, err
	}
	if cur := currentProposal(list); cur == nil || cur.ProposalID != p.ProposalID {
		return nil, pkgerrors.State("title_proposal", proposalID, "current", "superseded")
	}
	return p, nil
}

// ────────────────────── 查询 ──────────────────────

// GroupTitles 学生端：窗口状态、当前申报与历史
func (s *titleService) GroupTitles(ctx context.Context, actor Actor) (*dto.GroupTitlesResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	w, err := s.latestWindow(ctx, s.repo)
	if err != nil {
		s.logger.Error("查询选题窗口失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.GroupTitlesResponse{
		Window:  toWindowResponse(w),
		History: []dto.ProposalResponse{},
	}
	if !account.Grouped() {
		return resp, nil
	}

	list, err := s.repo.Title.ListProposalsByGroup(ctx, *account.GroupCode)
	if err != nil {
		s.logger.Error("查询小组题目失败", zap.Error(err))
		return nil, err
	}
	sortProposalsDesc(list)
	resp.History = toProposalResponses(list)

	cur := currentProposal(list)
	if cur != nil {
		c := toProposalResponse(cur)
		resp.Current = &c
	}
	resp.CanSubmit = windowOpen(w) && finalProposal(list) == nil && (cur == nil || !cur.Live())
	return resp, nil
}

func (s *titleService) ListProposals(ctx context.Context, actor Actor, req *dto.ProposalListRequest) ([]dto.ProposalResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	list, err := s.repo.Title.ListProposals(ctx, repository.ProposalFilter{StatusAdmin: model.Decision(req.StatusAdmin)})
	if err != nil {
		s.logger.Error("查询题目申报失败", zap.Error(err))
		return nil, err
	}
	return toProposalResponses(list), nil
}

// ListForSupervisor 导师待办：负责小组中管理员已通过的申报
func (s *titleService) ListForSupervisor(ctx context.Context, actor Actor) ([]dto.ProposalResponse, error) {
	if err := requireRole(actor, model.RoleSupervisor); err != nil {
		return nil, err
	}
	codes, err := assignedGroupCodes(ctx, s.repo, actor.ID)
	if err != nil {
		s.logger.Error("查询导师分配失败", zap.Error(err))
		return nil, err
	}
	list, err := s.repo.Title.ListProposals(ctx, repository.ProposalFilter{
		GroupCodes:  codes,
		StatusAdmin: model.DecisionApproved,
	})
	if err != nil {
		s.logger.Error("查询题目申报失败", zap.Error(err))
		return nil, err
	}
	return toProposalResponses(list), nil
}

// SearchTaken 往届题库与本届已确定题目
func (s *titleService) SearchTaken(ctx context.Context, req *dto.TitleSearchRequest) ([]dto.TakenTitleResponse, error) {
	keyword := strings.TrimSpace(req.Keyword)
	finals, err := s.repo.Title.SearchFinal(ctx, keyword, 200)
	if err != nil {
		s.logger.Error("检索已确定题目失败", zap.Error(err))
		return nil, err
	}
	archives, err := s.repo.Title.SearchArchive(ctx, keyword, 200)
	if err != nil {
		s.logger.Error("检索往届题库失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.TakenTitleResponse, 0, len(finals)+len(archives))
	for _, p := range finals {
		result = append(result, dto.TakenTitleResponse{
			Title:       p.Title,
			ProjectType: p.ProjectType,
			Source:      "approved",
			GroupCode:   p.GroupCode,
		})
	}
	for _, a := range archives {
		result = append(result, dto.TakenTitleResponse{
			Title:       a.Title,
			ProjectType: a.ProjectType,
			Source:      "archive",
			Year:        a.Year,
			Department:  a.Department,
		})
	}
	return result, nil
}

// ── 转换 ──

func decisionOf(action string) (model.Decision, error) {
	switch action {
	case dto.ActionApprove:
		return model.DecisionApproved, nil
	case dto.ActionReject:
		return model.DecisionRejected, nil
	default:
		return "", pkgerrors.Validation("未知的审批动作: " + action)
	}
}

func decisionPair(p *model.TitleProposal) string {
	return string(p.StatusAdmin) + "/" + string(p.StatusSupervisor)
}

func toWindowResponse(w *model.TitleSelectionWindow) dto.WindowResponse {
	if w == nil {
		return dto.WindowResponse{ScopeAllGroups: true}
	}
	return dto.WindowResponse{
		IsOpen:         w.IsOpen,
		ScopeAllGroups: w.ScopeAllGroups,
		ChangedAt:      dto.FormatTimePtr(&w.CreatedAt),
	}
}

func toProposalResponse(p *model.TitleProposal) dto.ProposalResponse {
	return dto.ProposalResponse{
		ID:               p.ProposalID,
		GroupCode:        p.GroupCode,
		Title:            p.Title,
		ProjectType:      p.ProjectType,
		StatusAdmin:      string(p.StatusAdmin),
		StatusSupervisor: string(p.StatusSupervisor),
		Final:            p.Final(),
		SubmittedAt:      dto.FormatTime(p.SubmittedAt),
		LastActionAt:     dto.FormatTimePtr(p.LastActionAt),
	}
}

func toProposalResponses(list []model.TitleProposal) []dto.ProposalResponse {
	result := make([]dto.ProposalResponse, 0, len(list))
	for i := range list {
		result = append(result, toProposalResponse(&list[i]))
	}
	return result
}
