package service

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"upms-teamup/backend/config"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	"upms-teamup/backend/pkg/blob"
)

// ── 测试辅助 ──

type fixture struct {
	t     *testing.T
	db    *fakeDB
	repo  *repository.Repository
	rec   *countingRecorder
	store *blob.MemoryStore
	clock *fakeClock
	cfg   *config.Config
}

// fakeClock 未设置时刻时跟随系统时间
type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.at.IsZero() {
		return time.Now().UTC()
	}
	return c.at
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = t.UTC()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newFakeDB()
	return &fixture{
		t:     t,
		db:    db,
		repo:  newMockRepository(db),
		rec:   newCountingRecorder(),
		store: blob.NewMemoryStore(),
		clock: &fakeClock{},
		cfg: &config.Config{
			Auth:     config.AuthConfig{JWTSecret: "test-secret-0123456789", Issuer: "upms-test", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: time.Hour},
			OTP:      config.OTPConfig{ExpMinutes: 10, MaxAttempts: 3, ResendCooldownSecond: 60},
			Workflow: config.WorkflowConfig{MaxGroupMembers: 3, GroupCodePrefix: "G"},
		},
	}
}

func (f *fixture) logger() *zap.Logger { return zap.NewNop() }

func (f *fixture) teamService() TeamService {
	return NewTeamService(&f.cfg.Workflow, f.repo, NewGroupCodeGenerator(f.cfg.Workflow.GroupCodePrefix), f.rec, f.logger())
}

func (f *fixture) titleService() TitleService {
	return NewTitleService(f.repo, f.rec, f.logger())
}

func (f *fixture) supervisorService() SupervisorService {
	return NewSupervisorService(f.repo, f.rec, f.logger())
}

func (f *fixture) activityService() ActivityService {
	return NewActivityService(f.repo, f.rec, f.logger())
}

func (f *fixture) submissionService() SubmissionService {
	return NewSubmissionService(f.repo, f.store, f.clock, f.rec, f.logger())
}

// addRecord 仅名册记录（未激活）
func (f *fixture) addRecord(studentID, name, email string) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.records[studentID] = &model.StudentRecord{
		StudentID: studentID,
		Name:      name,
		Email:     email,
		Program:   "Software Engineering",
	}
}

// addStudent 名册 + 主体 + 账号
func (f *fixture) addStudent(studentID, name string) Actor {
	f.addRecord(studentID, name, studentID+"@uni.test")
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	pid := "p-" + studentID
	f.db.principals[pid] = &model.Principal{PrincipalID: pid, Username: studentID, Role: model.RoleStudent, IsActive: true}
	f.db.accounts[studentID] = &model.StudentAccount{PrincipalID: pid, StudentID: studentID}
	return Actor{ID: pid, Role: model.RoleStudent}
}

func (f *fixture) addSupervisor(username string) Actor {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	pid := "p-" + username
	f.db.principals[pid] = &model.Principal{PrincipalID: pid, Username: username, Role: model.RoleSupervisor, IsActive: true}
	f.db.profiles[pid] = &model.SupervisorProfile{PrincipalID: pid, Name: "Dr. " + username}
	return Actor{ID: pid, Role: model.RoleSupervisor}
}

func (f *fixture) admin() Actor {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	pid := "p-admin"
	f.db.principals[pid] = &model.Principal{PrincipalID: pid, Username: "admin", Role: model.RoleAdmin, IsActive: true}
	return Actor{ID: pid, Role: model.RoleAdmin}
}

// makeGroup 直接写入小组与成员，跳过组队流程
func (f *fixture) makeGroup(code string, studentIDs ...string) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	now := time.Now().UTC()
	f.db.groups[code] = &model.Group{GroupCode: code, CreatedAt: now}
	for i, sid := range studentIDs {
		f.db.members = append(f.db.members, model.GroupMember{
			MemberID:  code + "-" + sid,
			GroupCode: code,
			StudentID: sid,
			JoinedAt:  now.Add(time.Duration(i) * time.Second),
		})
		c := code
		f.db.accounts[sid].GroupCode = &c
	}
}

func (f *fixture) assign(groupCode string, supervisor Actor) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.assignments[groupCode] = &model.SupervisorAssignment{
		GroupCode:    groupCode,
		SupervisorID: supervisor.ID,
		AssignedAt:   time.Now().UTC(),
	}
}

func (f *fixture) openWindow(open bool) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.windows = append(f.db.windows, model.TitleSelectionWindow{
		WindowID:       f.db.nextID("window"),
		IsOpen:         open,
		ScopeAllGroups: true,
		CreatedAt:      time.Now().UTC(),
	})
}

func (f *fixture) groupCodeOf(studentID string) *string {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.accounts[studentID].GroupCode
}

// assertMembershipConsistent 每个 group_code 非空的账号都恰有一条对应成员记录
func (f *fixture) assertMembershipConsistent() {
	f.t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for sid, a := range f.db.accounts {
		n := 0
		for _, m := range f.db.members {
			if m.StudentID == sid {
				n++
				if a.GroupCode == nil || *a.GroupCode != m.GroupCode {
					f.t.Errorf("学生 %s 的成员记录与账号 group_code 不一致", sid)
				}
			}
		}
		if a.GroupCode != nil && n != 1 {
			f.t.Errorf("学生 %s 已组队但成员记录数=%d", sid, n)
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrBool(b bool) *bool { return &b }
