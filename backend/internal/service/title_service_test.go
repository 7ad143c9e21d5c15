package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// titleFixture 一个已分配导师的两人小组
type titleFixture struct {
	*fixture
	student    Actor
	admin      Actor
	supervisor Actor
	svc        TitleService
}

func newTitleFixture(t *testing.T) *titleFixture {
	f := newFixture(t)
	student := f.addStudent("S001", "Alice")
	f.addStudent("S002", "Bob")
	f.makeGroup("G1", "S001", "S002")
	sup := f.addSupervisor("sup1")
	f.assign("G1", sup)
	return &titleFixture{
		fixture:    f,
		student:    student,
		admin:      f.admin(),
		supervisor: sup,
		svc:        f.titleService(),
	}
}

func approve() *dto.DecisionRequest { return &dto.DecisionRequest{Action: dto.ActionApprove} }
func reject() *dto.DecisionRequest  { return &dto.DecisionRequest{Action: dto.ActionReject} }

// ── 选题窗口 ──

func TestTitleService_Window(t *testing.T) {
	tf := newTitleFixture(t)
	ctx := context.Background()

	w, err := tf.svc.CurrentWindow(ctx)
	if err != nil {
		t.Fatalf("CurrentWindow 应成功: %v", err)
	}
	if w.IsOpen || w.ChangedAt != nil {
		t.Errorf("从未配置时应视为关闭，实际: %+v", w)
	}

	if _, err := tf.svc.SetWindow(ctx, tf.student, &dto.SetWindowRequest{IsOpen: ptrBool(true)}); !errors.Is(err, pkgerrors.ErrNotAuthorized) {
		t.Errorf("学生设置窗口，期望 ErrNotAuthorized，实际: %v", err)
	}

	if _, err := tf.svc.SetWindow(ctx, tf.admin, &dto.SetWindowRequest{IsOpen: ptrBool(true)}); err != nil {
		t.Fatalf("SetWindow 应成功: %v", err)
	}
	if _, err := tf.svc.SetWindow(ctx, tf.admin, &dto.SetWindowRequest{IsOpen: ptrBool(false), ScopeAllGroups: ptrBool(false)}); err != nil {
		t.Fatalf("SetWindow 应成功: %v", err)
	}
	w, _ = tf.svc.CurrentWindow(ctx)
	if w.IsOpen || w.ScopeAllGroups {
		t.Errorf("应以最新一条配置为准，实际: %+v", w)
	}
	if len(tf.db.windows) != 2 {
		t.Errorf("窗口配置只追加，期望 2 条，实际: %d", len(tf.db.windows))
	}
}

// ── 完整审批流程 ──

func TestTitleService_FullApprovalFlow(t *testing.T) {
	tf := newTitleFixture(t)
	ctx := context.Background()
	submit := &dto.SubmitProposalRequest{Title: "Smart Campus Navigation", ProjectType: "Web"}

	// 窗口关闭时拒绝提交
	_, err := tf.svc.Submit(ctx, tf.student, submit)
	if !errors.Is(err, pkgerrors.ErrWindowClosed) {
		t.Fatalf("窗口关闭，期望 ErrWindowClosed，实际: %v", err)
	}

	tf.openWindow(true)
	p, err := tf.svc.Submit(ctx, tf.student, submit)
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if p.StatusAdmin != "Pending" || p.StatusSupervisor != "Pending" || p.Final {
		t.Fatalf("新申报应为 (Pending, Pending)，实际: %+v", p)
	}

	// 审批中不能再次提交
	if _, err := tf.svc.Submit(ctx, tf.student, submit); !errors.Is(err, pkgerrors.ErrInvalidState) {
		t.Errorf("审批中再次提交，期望 ErrInvalidState，实际: %v", err)
	}

	// 管理员通过前导师不能审批
	if _, err := tf.svc.SupervisorDecide(ctx, tf.supervisor, p.ID, approve()); !errors.Is(err, pkgerrors.ErrInvalidState) {
		t.Errorf("管理员未通过，期望 ErrInvalidState，实际: %v", err)
	}

	p, err = tf.svc.AdminDecide(ctx, tf.admin, p.ID, approve())
	if err != nil {
		t.Fatalf("AdminDecide 应成功: %v", err)
	}
	if p.StatusAdmin != "Approved" || p.LastActionAt == nil {
		t.Errorf("期望管理员已通过且记录时间，实际: %+v", p)
	}
	if _, err := tf.svc.AdminDecide(ctx, tf.admin, p.ID, reject()); !errors.Is(err, pkgerrors.ErrInvalidState) {
		t.Errorf("重复一级审批，期望 ErrInvalidState，实际: %v", err)
	}

	p, err = tf.svc.SupervisorDecide(ctx, tf.supervisor, p.ID, approve())
	if err != nil {
		t.Fatalf("SupervisorDecide 应成功: %v", err)
	}
	if !p.Final {
		t.Fatalf("两级通过后应为最终题目: %+v", p)
	}

	_, err = tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "Another"})
	if !errors.Is(err, pkgerrors.ErrTitleLocked) {
		t.Errorf("已有最终题目，期望 ErrTitleLocked，实际: %v", err)
	}

	g, err := buildGroupResponse(ctx, tf.repo, "G1")
	if err != nil {
		t.Fatalf("buildGroupResponse 应成功: %v", err)
	}
	if g.FinalTitle != "Smart Campus Navigation" || g.SupervisorName != "Dr. sup1" {
		t.Errorf("小组概览不符合预期: %+v", g)
	}
	if tf.rec.count(machineTitle, "supervisor_approved") != 1 {
		t.Error("期望记录 1 次导师通过")
	}
}

func TestTitleService_RejectAndResubmit(t *testing.T) {
	tf := newTitleFixture(t)
	tf.openWindow(true)
	ctx := context.Background()

	first, err := tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "First Idea"})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if _, err := tf.svc.AdminDecide(ctx, tf.admin, first.ID, reject()); err != nil {
		t.Fatalf("AdminDecide 应成功: %v", err)
	}

	// 已驳回的申报不能再被通过
	if _, err := tf.svc.AdminDecide(ctx, tf.admin, first.ID, approve()); !errors.Is(err, pkgerrors.ErrInvalidState) {
		t.Errorf("已驳回申报再次通过，期望 ErrInvalidState，实际: %v", err)
	}
	if _, err := tf.svc.SupervisorDecide(ctx, tf.supervisor, first.ID, approve()); !errors.Is(err, pkgerrors.ErrInvalidState) {
		t.Errorf("导师审批已驳回申报，期望 ErrInvalidState，实际: %v", err)
	}

	second, err := tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "Second Idea"})
	if err != nil {
		t.Fatalf("驳回后重新提交应成功: %v", err)
	}

	// 旧申报已被取代
	if _, err := tf.svc.AdminDecide(ctx, tf.admin, first.ID, approve()); !errors.Is(err, pkgerrors.ErrInvalidState) {
		t.Errorf("被取代的申报，期望 ErrInvalidState，实际: %v", err)
	}

	view, err := tf.svc.GroupTitles(ctx, tf.student)
	if err != nil {
		t.Fatalf("GroupTitles 应成功: %v", err)
	}
	if view.Current == nil || view.Current.ID != second.ID {
		t.Errorf("当前申报应为第二次提交，实际: %+v", view.Current)
	}
	if len(view.History) != 2 || view.CanSubmit {
		t.Errorf("期望 2 条历史且不可提交，实际: %d, %v", len(view.History), view.CanSubmit)
	}
}

func TestTitleService_SupervisorReject(t *testing.T) {
	tf := newTitleFixture(t)
	tf.openWindow(true)
	ctx := context.Background()

	p, _ := tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "Idea"})
	if _, err := tf.svc.AdminDecide(ctx, tf.admin, p.ID, approve()); err != nil {
		t.Fatalf("AdminDecide 应成功: %v", err)
	}
	p, err := tf.svc.SupervisorDecide(ctx, tf.supervisor, p.ID, reject())
	if err != nil {
		t.Fatalf("SupervisorDecide 应成功: %v", err)
	}
	if p.StatusAdmin != "Approved" || p.StatusSupervisor != "Rejected" || p.Final {
		t.Errorf("期望 (Approved, Rejected)，实际: %+v", p)
	}

	view, _ := tf.svc.GroupTitles(ctx, tf.student)
	if !view.CanSubmit {
		t.Error("导师驳回后应可重新提交")
	}
}

func TestTitleService_SupervisorNotAssigned(t *testing.T) {
	tf := newTitleFixture(t)
	tf.openWindow(true)
	other := tf.addSupervisor("sup2")
	ctx := context.Background()

	p, _ := tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "Idea"})
	tf.svc.AdminDecide(ctx, tf.admin, p.ID, approve())

	if _, err := tf.svc.SupervisorDecide(ctx, other, p.ID, approve()); !errors.Is(err, pkgerrors.ErrNotAuthorized) {
		t.Errorf("非负责导师，期望 ErrNotAuthorized，实际: %v", err)
	}
	if _, err := tf.svc.SupervisorDecide(ctx, tf.admin, p.ID, approve()); !errors.Is(err, pkgerrors.ErrNotAuthorized) {
		t.Errorf("管理员不能做二级审批，实际: %v", err)
	}

	// 重新分配后新导师可审批
	tf.assign("G1", other)
	if _, err := tf.svc.SupervisorDecide(ctx, tf.supervisor, p.ID, approve()); !errors.Is(err, pkgerrors.ErrNotAuthorized) {
		t.Errorf("原导师已被替换，期望 ErrNotAuthorized，实际: %v", err)
	}
	if _, err := tf.svc.SupervisorDecide(ctx, other, p.ID, approve()); err != nil {
		t.Errorf("新导师审批应成功: %v", err)
	}
}

func TestTitleService_WindowDoesNotGateDecisions(t *testing.T) {
	tf := newTitleFixture(t)
	tf.openWindow(true)
	ctx := context.Background()

	p, _ := tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "Idea"})
	tf.openWindow(false)

	if _, err := tf.svc.AdminDecide(ctx, tf.admin, p.ID, approve()); err != nil {
		t.Errorf("窗口关闭不影响审批: %v", err)
	}
}

func TestTitleService_SubmitGuards(t *testing.T) {
	tf := newTitleFixture(t)
	tf.openWindow(true)
	loner := tf.addStudent("S009", "Solo")
	ctx := context.Background()

	if _, err := tf.svc.Submit(ctx, loner, &dto.SubmitProposalRequest{Title: "Idea"}); !errors.Is(err, pkgerrors.ErrInvalidState) {
		t.Errorf("未组队学生提交，期望 ErrInvalidState，实际: %v", err)
	}
	if _, err := tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "   "}); !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("空题目，期望 ErrValidation，实际: %v", err)
	}
	if _, err := tf.svc.Submit(ctx, tf.admin, &dto.SubmitProposalRequest{Title: "Idea"}); !errors.Is(err, pkgerrors.ErrNotAuthorized) {
		t.Errorf("管理员提交，期望 ErrNotAuthorized，实际: %v", err)
	}
	if _, err := tf.svc.AdminDecide(ctx, tf.admin, "missing", approve()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("申报不存在，期望 ErrNotFound，实际: %v", err)
	}
	if _, err := tf.svc.AdminDecide(ctx, tf.admin, "missing", &dto.DecisionRequest{Action: "maybe"}); !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("未知动作，期望 ErrValidation，实际: %v", err)
	}
}

func TestTitleService_AtMostOneFinal(t *testing.T) {
	tf := newTitleFixture(t)
	ctx := context.Background()

	// 直接构造：已有一条最终题目时，另一条不能再被导师通过
	now := time.Now().UTC()
	tf.db.proposals["old"] = &model.TitleProposal{
		ProposalID: "old", GroupCode: "G1", Title: "Old",
		StatusAdmin: model.DecisionApproved, StatusSupervisor: model.DecisionApproved,
		SubmittedAt: now.Add(-time.Hour),
	}
	tf.db.proposals["new"] = &model.TitleProposal{
		ProposalID: "new", GroupCode: "G1", Title: "New",
		StatusAdmin: model.DecisionApproved, StatusSupervisor: model.DecisionPending,
		SubmittedAt: now,
	}

	if _, err := tf.svc.SupervisorDecide(ctx, tf.supervisor, "new", approve()); !errors.Is(err, pkgerrors.ErrTitleLocked) {
		t.Errorf("期望 ErrTitleLocked，实际: %v", err)
	}
}

func TestTitleService_ListsAndSearch(t *testing.T) {
	tf := newTitleFixture(t)
	tf.openWindow(true)
	ctx := context.Background()
	year := 2024
	tf.db.archives = append(tf.db.archives, model.TitleArchive{ArchiveID: "a1", Title: "Campus Navigation App", Year: &year})

	p, _ := tf.svc.Submit(ctx, tf.student, &dto.SubmitProposalRequest{Title: "Indoor Navigation"})

	pending, err := tf.svc.ListProposals(ctx, tf.admin, &dto.ProposalListRequest{StatusAdmin: "Pending"})
	if err != nil || len(pending) != 1 {
		t.Fatalf("期望 1 条待审申报，实际: %d, %v", len(pending), err)
	}

	queue, _ := tf.svc.ListForSupervisor(ctx, tf.supervisor)
	if len(queue) != 0 {
		t.Errorf("管理员未通过前导师待办应为空，实际: %d", len(queue))
	}
	tf.svc.AdminDecide(ctx, tf.admin, p.ID, approve())
	queue, _ = tf.svc.ListForSupervisor(ctx, tf.supervisor)
	if len(queue) != 1 {
		t.Errorf("期望导师待办 1 条，实际: %d", len(queue))
	}
	tf.svc.SupervisorDecide(ctx, tf.supervisor, p.ID, approve())

	taken, err := tf.svc.SearchTaken(ctx, &dto.TitleSearchRequest{Keyword: "navigation"})
	if err != nil {
		t.Fatalf("SearchTaken 应成功: %v", err)
	}
	sources := map[string]int{}
	for _, item := range taken {
		sources[item.Source]++
	}
	if sources["approved"] != 1 || sources["archive"] != 1 {
		t.Errorf("期望本届与往届各 1 条，实际: %+v", taken)
	}
}
