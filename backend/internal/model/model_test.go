package model

import (
	"testing"
	"time"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleSupervisor, RoleStudent} {
		if !r.Valid() {
			t.Errorf("%q 应为合法角色", r)
		}
	}
	for _, r := range []Role{"", "Admin", "teacher"} {
		if r.Valid() {
			t.Errorf("%q 不应为合法角色", r)
		}
	}
}

func TestActivity_DeadlinePassed(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name     string
		deadline *time.Time
		want     bool
	}{
		{"未设置截止时间", nil, false},
		{"已过期", &past, true},
		{"未到期", &future, false},
		{"恰好截止", &now, false},
	}
	for _, tc := range cases {
		a := &Activity{DeadlineAt: tc.deadline}
		if got := a.DeadlinePassed(now); got != tc.want {
			t.Errorf("%s: 期望 %v，实际 %v", tc.name, tc.want, got)
		}
	}
}

func TestActivity_TargetsGroup(t *testing.T) {
	all := &Activity{ScopeAllGroups: true}
	if !all.TargetsGroup("G1") {
		t.Error("面向全部小组的活动应对任意小组可见")
	}

	scoped := &Activity{Targets: []ActivityTarget{{GroupCode: "G1"}, {GroupCode: "G2"}}}
	if !scoped.TargetsGroup("G2") {
		t.Error("定向小组应可见")
	}
	if scoped.TargetsGroup("G3") {
		t.Error("非定向小组不应可见")
	}
}

func TestActivity_AuthoredBy(t *testing.T) {
	a := &Activity{CreatedByRole: RoleSupervisor, CreatedByID: "p-1"}
	if !a.AuthoredBy(RoleSupervisor, "p-1") {
		t.Error("作者本人应匹配")
	}
	if a.AuthoredBy(RoleAdmin, "p-1") {
		t.Error("角色不同不应匹配")
	}
}

func TestStudentAccount_Grouped(t *testing.T) {
	code := "G2501010001"
	if (&StudentAccount{}).Grouped() {
		t.Error("group_code 为空时不应视为已组队")
	}
	if !(&StudentAccount{GroupCode: &code}).Grouped() {
		t.Error("group_code 非空时应视为已组队")
	}
}
