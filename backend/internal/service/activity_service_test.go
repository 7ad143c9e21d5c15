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

func TestActivityService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()
	student := f.addStudent("S001", "Alice")
	svc := f.activityService()
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		name  string
		actor Actor
		req   *dto.ActivityRequest
		want  error
	}{
		{"学生不能创建", student, &dto.ActivityRequest{Title: "Proposal"}, pkgerrors.ErrNotAuthorized},
		{"标题为空", admin, &dto.ActivityRequest{Title: "  "}, pkgerrors.ErrValidation},
		{"截止早于开始", admin, &dto.ActivityRequest{Title: "Proposal", StartAt: ptrTime(now), DeadlineAt: ptrTime(now.Add(-time.Hour))}, pkgerrors.ErrValidation},
		{"定向但未选小组", admin, &dto.ActivityRequest{Title: "Proposal", ScopeAllGroups: ptrBool(false)}, pkgerrors.ErrValidation},
		{"定向小组不存在", admin, &dto.ActivityRequest{Title: "Proposal", ScopeAllGroups: ptrBool(false), GroupCodes: []string{"G404"}}, pkgerrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.actor, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("期望 %v，实际: %v", tc.want, err)
			}
		})
	}
}

func TestActivityService_CreateDefaultsToAllGroups(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()
	svc := f.activityService()

	a, err := svc.Create(context.Background(), admin, &dto.ActivityRequest{Title: "Final Report", RequirePDF: true})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if !a.ScopeAllGroups || a.CreatedByRole != string(model.RoleAdmin) || a.CreatedByID != admin.ID {
		t.Errorf("活动字段不符合预期: %+v", a)
	}
}

func TestActivityService_SupervisorTargetsFiltered(t *testing.T) {
	f := newFixture(t)
	f.addStudent("S001", "Alice")
	f.addStudent("S002", "Bob")
	f.makeGroup("G1", "S001")
	f.makeGroup("G2", "S002")
	sup := f.addSupervisor("sup1")
	f.assign("G1", sup)
	svc := f.activityService()
	ctx := context.Background()

	a, err := svc.Create(ctx, sup, &dto.ActivityRequest{
		Title:          "Chapter 1",
		ScopeAllGroups: ptrBool(false),
		GroupCodes:     []string{"G1", "G2", "G1"},
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if len(a.GroupCodes) != 1 || a.GroupCodes[0] != "G1" {
		t.Errorf("导师只能定向负责的小组，实际: %v", a.GroupCodes)
	}

	_, err = svc.Create(ctx, sup, &dto.ActivityRequest{
		Title:          "Chapter 2",
		ScopeAllGroups: ptrBool(false),
		GroupCodes:     []string{"G2"},
	})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("过滤后为空，期望 ErrValidation，实际: %v", err)
	}
}

func TestActivityService_AuthorOnly(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()
	sup := f.addSupervisor("sup1")
	other := f.addSupervisor("sup2")
	svc := f.activityService()
	ctx := context.Background()

	a, err := svc.Create(ctx, sup, &dto.ActivityRequest{Title: "Draft"})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	for _, actor := range []Actor{admin, other} {
		if _, err := svc.Update(ctx, actor, a.ID, &dto.ActivityRequest{Title: "Hijack"}); !errors.Is(err, pkgerrors.ErrNotAuthorized) {
			t.Errorf("非作者 %s 修改，期望 ErrNotAuthorized，实际: %v", actor.ID, err)
		}
		if err := svc.Delete(ctx, actor, a.ID); !errors.Is(err, pkgerrors.ErrNotAuthorized) {
			t.Errorf("非作者 %s 删除，期望 ErrNotAuthorized，实际: %v", actor.ID, err)
		}
	}

	updated, err := svc.Update(ctx, sup, a.ID, &dto.ActivityRequest{Title: "Draft v2", RequirePDF: true})
	if err != nil {
		t.Fatalf("作者修改应成功: %v", err)
	}
	if updated.Title != "Draft v2" || !updated.RequirePDF || updated.CreatedByID != sup.ID {
		t.Errorf("修改结果不符合预期: %+v", updated)
	}

	mine, _ := svc.ListMine(ctx, sup)
	if len(mine) != 1 {
		t.Errorf("期望作者有 1 个活动，实际: %d", len(mine))
	}
	if theirs, _ := svc.ListMine(ctx, other); len(theirs) != 0 {
		t.Errorf("其他导师不应看到该活动，实际: %d", len(theirs))
	}

	if err := svc.Delete(ctx, sup, a.ID); err != nil {
		t.Fatalf("作者删除应成功: %v", err)
	}
	if err := svc.Delete(ctx, sup, a.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("重复删除，期望 ErrNotFound，实际: %v", err)
	}
}

func TestActivityService_ListForGroup(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()
	student := f.addStudent("S001", "Alice")
	f.addStudent("S002", "Bob")
	f.makeGroup("G1", "S001")
	f.makeGroup("G2", "S002")
	svc := f.activityService()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	svc.Create(ctx, admin, &dto.ActivityRequest{Title: "Open to all"})
	svc.Create(ctx, admin, &dto.ActivityRequest{Title: "Only G2", ScopeAllGroups: ptrBool(false), GroupCodes: []string{"G2"}})
	svc.Create(ctx, admin, &dto.ActivityRequest{Title: "Closed", DeadlineAt: ptrTime(past)})

	list, err := svc.ListForGroup(ctx, student)
	if err != nil {
		t.Fatalf("ListForGroup 应成功: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("G1 应看到 2 个活动，实际: %d", len(list))
	}
	for _, item := range list {
		if item.Activity.Title == "Only G2" {
			t.Error("不应看到定向其他小组的活动")
		}
		if item.Activity.Title == "Closed" && !item.Locked {
			t.Error("已截止活动应锁定")
		}
	}

	loner := f.addStudent("S009", "Solo")
	empty, err := svc.ListForGroup(ctx, loner)
	if err != nil || len(empty) != 0 {
		t.Errorf("未组队学生应返回空列表，实际: %d, %v", len(empty), err)
	}
}
