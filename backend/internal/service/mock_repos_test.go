package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
	"upms-teamup/backend/pkg/redis"
)

// ── 内存数据库 ──
//
// 所有 mock repository 共享同一份状态，以便跨实体校验不变量。
// 读取返回副本，模拟数据库行语义。

type fakeDB struct {
	mu sync.Mutex
	seq int

	principals  map[string]*model.Principal
	profiles    map[string]*model.SupervisorProfile
	records     map[string]*model.StudentRecord
	accounts    map[string]*model.StudentAccount // key: student_id
	groups      map[string]*model.Group
	members     []model.GroupMember
	requests    map[string]*model.TeamRequest
	assignments map[string]*model.SupervisorAssignment
	windows     []model.TitleSelectionWindow
	proposals   map[string]*model.TitleProposal
	archives    []model.TitleArchive
	activities  map[string]*model.Activity
	submissions map[string]*model.Submission
	sequences   map[string]int64 // key: yyyy-mm-dd
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		principals:  make(map[string]*model.Principal),
		profiles:    make(map[string]*model.SupervisorProfile),
		records:     make(map[string]*model.StudentRecord),
		accounts:    make(map[string]*model.StudentAccount),
		groups:      make(map[string]*model.Group),
		requests:    make(map[string]*model.TeamRequest),
		assignments: make(map[string]*model.SupervisorAssignment),
		proposals:   make(map[string]*model.TitleProposal),
		activities:  make(map[string]*model.Activity),
		submissions: make(map[string]*model.Submission),
		sequences:   make(map[string]int64),
	}
}

func (db *fakeDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%04d", prefix, db.seq)
}

func newMockRepository(db *fakeDB) *repository.Repository {
	return &repository.Repository{
		Principal:   &mockPrincipalRepo{db: db},
		Student:     &mockStudentRepo{db: db},
		Group:       &mockGroupRepo{db: db},
		TeamRequest: &mockTeamRequestRepo{db: db},
		Assignment:  &mockAssignmentRepo{db: db},
		Title:       &mockTitleRepo{db: db},
		Activity:    &mockActivityRepo{db: db},
		Submission:  &mockSubmissionRepo{db: db},
	}
}

// ── Mock PrincipalRepository ──

type mockPrincipalRepo struct{ db *fakeDB }

func (m *mockPrincipalRepo) Create(_ context.Context, p *model.Principal) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.principals {
		if existing.Username == p.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if p.PrincipalID == "" {
		p.PrincipalID = m.db.nextID("principal")
	}
	cp := *p
	cp.SupervisorProfile = nil
	m.db.principals[p.PrincipalID] = &cp
	return nil
}

func (m *mockPrincipalRepo) withProfile(p *model.Principal) *model.Principal {
	cp := *p
	if prof, ok := m.db.profiles[p.PrincipalID]; ok {
		pc := *prof
		cp.SupervisorProfile = &pc
	}
	return &cp
}

func (m *mockPrincipalRepo) GetByID(_ context.Context, id string) (*model.Principal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p, ok := m.db.principals[id]; ok {
		return m.withProfile(p), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPrincipalRepo) GetByUsername(_ context.Context, username string) (*model.Principal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, p := range m.db.principals {
		if p.Username == username {
			return m.withProfile(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPrincipalRepo) CreateSupervisorProfile(_ context.Context, profile *model.SupervisorProfile) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cp := *profile
	m.db.profiles[profile.PrincipalID] = &cp
	return nil
}

func (m *mockPrincipalRepo) ListSupervisors(_ context.Context) ([]model.Principal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Principal
	for _, p := range m.db.principals {
		if p.Role == model.RoleSupervisor {
			result = append(result, *m.withProfile(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *mockPrincipalRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p, ok := m.db.principals[id]; ok {
		p.PasswordHash = passwordHash
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockPrincipalRepo) List(_ context.Context, role model.Role, keyword string) ([]model.Principal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Principal
	for _, p := range m.db.principals {
		if role != "" && p.Role != role {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(p.Username), strings.ToLower(keyword)) {
			continue
		}
		result = append(result, *m.withProfile(p))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Role != result[j].Role {
			return result[i].Role < result[j].Role
		}
		return result[i].Username < result[j].Username
	})
	return result, nil
}

func (m *mockPrincipalRepo) CountByRole(_ context.Context, role model.Role) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for _, p := range m.db.principals {
		if p.Role == role {
			n++
		}
	}
	return n, nil
}

// Delete 模拟外键：被分配或活动引用时拒绝，资料与学生账号级联删除
func (m *mockPrincipalRepo) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.principals[id]; !ok {
		return nil
	}
	for _, a := range m.db.assignments {
		if a.SupervisorID == id {
			return gorm.ErrForeignKeyViolated
		}
	}
	for _, a := range m.db.activities {
		if a.CreatedByID == id {
			return gorm.ErrForeignKeyViolated
		}
	}
	delete(m.db.principals, id)
	delete(m.db.profiles, id)
	for sid, a := range m.db.accounts {
		if a.PrincipalID == id {
			delete(m.db.accounts, sid)
		}
	}
	return nil
}

// ── Mock StudentRepository ──

type mockStudentRepo struct{ db *fakeDB }

func (m *mockStudentRepo) account(a *model.StudentAccount) *model.StudentAccount {
	cp := *a
	if a.GroupCode != nil {
		code := *a.GroupCode
		cp.GroupCode = &code
	}
	if rec, ok := m.db.records[a.StudentID]; ok {
		rc := *rec
		cp.Record = &rc
	}
	return &cp
}

func (m *mockStudentRepo) GetRecord(_ context.Context, studentID string) (*model.StudentRecord, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if r, ok := m.db.records[studentID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) UpsertRecords(_ context.Context, records []model.StudentRecord) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range records {
		cp := records[i]
		m.db.records[cp.StudentID] = &cp
	}
	return nil
}

func (m *mockStudentRepo) ExistingRecordIDs(_ context.Context, studentIDs []string) (map[string]bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if _, ok := m.db.records[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *mockStudentRepo) CountRecords(_ context.Context) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return int64(len(m.db.records)), nil
}

func (m *mockStudentRepo) ListRoster(_ context.Context, f repository.RosterFilter) ([]repository.RosterRow, int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var rows []repository.RosterRow
	for _, r := range m.db.records {
		row := repository.RosterRow{
			StudentID: r.StudentID, Name: r.Name, Gender: r.Gender, Phone: r.Phone, Email: r.Email,
			Faculty: r.Faculty, Program: r.Program, Batch: r.Batch,
		}
		if a, ok := m.db.accounts[r.StudentID]; ok {
			pid := a.PrincipalID
			row.PrincipalID = &pid
			row.GroupCode = a.GroupCode
		}
		switch f.Status {
		case repository.RosterNotRegistered:
			if row.PrincipalID != nil {
				continue
			}
		case repository.RosterInTeam:
			if row.GroupCode == nil {
				continue
			}
		case repository.RosterNoTeam:
			if row.PrincipalID == nil || row.GroupCode != nil {
				continue
			}
		}
		if f.Keyword != "" && !strings.Contains(strings.ToLower(r.StudentID+" "+r.Name+" "+r.Email), strings.ToLower(f.Keyword)) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentID < rows[j].StudentID })
	total := int64(len(rows))
	if f.Offset >= len(rows) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[f.Offset:end], total, nil
}

func (m *mockStudentRepo) CreateAccount(_ context.Context, account *model.StudentAccount) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.accounts[account.StudentID]; ok {
		return gorm.ErrDuplicatedKey
	}
	if _, ok := m.db.records[account.StudentID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	cp := *account
	cp.Record = nil
	m.db.accounts[account.StudentID] = &cp
	return nil
}

func (m *mockStudentRepo) GetAccountByPrincipal(_ context.Context, principalID string) (*model.StudentAccount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, a := range m.db.accounts {
		if a.PrincipalID == principalID {
			return m.account(a), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetAccountByStudentID(_ context.Context, studentID string) (*model.StudentAccount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a, ok := m.db.accounts[studentID]; ok {
		return m.account(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) LockAccount(ctx context.Context, studentID string) (*model.StudentAccount, error) {
	return m.GetAccountByStudentID(ctx, studentID)
}

func (m *mockStudentRepo) AssignGroup(_ context.Context, studentID, groupCode string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.accounts[studentID]
	if !ok || a.GroupCode != nil {
		return pkgerrors.New(pkgerrors.ErrAlreadyGrouped, "student_account", studentID)
	}
	code := groupCode
	a.GroupCode = &code
	return nil
}

func (m *mockStudentRepo) ListUngrouped(_ context.Context, keyword, excludeStudentID string, limit int) ([]model.StudentAccount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.StudentAccount
	for _, a := range m.db.accounts {
		if a.GroupCode != nil || a.StudentID == excludeStudentID {
			continue
		}
		acc := m.account(a)
		if keyword != "" && acc.Record != nil &&
			!strings.Contains(strings.ToLower(acc.StudentID+" "+acc.Record.Name), strings.ToLower(keyword)) {
			continue
		}
		result = append(result, *acc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockStudentRepo) ListAccountsByGroup(_ context.Context, groupCode string) ([]model.StudentAccount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.StudentAccount
	for _, a := range m.db.accounts {
		if a.GroupCode != nil && *a.GroupCode == groupCode {
			result = append(result, *m.account(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

// ── Mock GroupRepository ──

type mockGroupRepo struct{ db *fakeDB }

func (m *mockGroupRepo) Create(_ context.Context, g *model.Group) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.groups[g.GroupCode]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *g
	cp.Members = nil
	m.db.groups[g.GroupCode] = &cp
	return nil
}

func (m *mockGroupRepo) Exists(_ context.Context, code string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	_, ok := m.db.groups[code]
	return ok, nil
}

func (m *mockGroupRepo) withMembers(g *model.Group) model.Group {
	cp := *g
	cp.Members = nil
	for _, mem := range m.db.members {
		if mem.GroupCode == g.GroupCode {
			mc := mem
			if rec, ok := m.db.records[mem.StudentID]; ok {
				rc := *rec
				mc.Student = &rc
			}
			cp.Members = append(cp.Members, mc)
		}
	}
	sort.SliceStable(cp.Members, func(i, j int) bool { return cp.Members[i].JoinedAt.Before(cp.Members[j].JoinedAt) })
	return cp
}

func (m *mockGroupRepo) GetByCode(_ context.Context, code string) (*model.Group, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if g, ok := m.db.groups[code]; ok {
		cp := m.withMembers(g)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGroupRepo) LockByCode(_ context.Context, code string) (*model.Group, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if g, ok := m.db.groups[code]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGroupRepo) AddMember(_ context.Context, mem *model.GroupMember) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.members {
		if existing.StudentID == mem.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	if mem.MemberID == "" {
		mem.MemberID = m.db.nextID("member")
	}
	cp := *mem
	cp.Student = nil
	m.db.members = append(m.db.members, cp)
	return nil
}

func (m *mockGroupRepo) CountMembers(_ context.Context, code string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for _, mem := range m.db.members {
		if mem.GroupCode == code {
			n++
		}
	}
	return n, nil
}

func (m *mockGroupRepo) NextDailySequence(_ context.Context, day time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	key := day.UTC().Format("2006-01-02")
	m.db.sequences[key]++
	return m.db.sequences[key], nil
}

func (m *mockGroupRepo) Count(_ context.Context) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return int64(len(m.db.groups)), nil
}

func (m *mockGroupRepo) List(_ context.Context, offset, limit int) ([]model.Group, int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var all []model.Group
	for _, g := range m.db.groups {
		all = append(all, m.withMembers(g))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].GroupCode < all[j].GroupCode })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockGroupRepo) ListByCodes(_ context.Context, codes []string) ([]model.Group, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Group
	for _, code := range codes {
		if g, ok := m.db.groups[code]; ok {
			result = append(result, m.withMembers(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GroupCode < result[j].GroupCode })
	return result, nil
}

// ── Mock TeamRequestRepository ──

type mockTeamRequestRepo struct{ db *fakeDB }

func (m *mockTeamRequestRepo) view(tr *model.TeamRequest) model.TeamRequest {
	cp := *tr
	if r, ok := m.db.records[tr.RequesterStudentID]; ok {
		rc := *r
		cp.Requester = &rc
	}
	if r, ok := m.db.records[tr.ReceiverStudentID]; ok {
		rc := *r
		cp.Receiver = &rc
	}
	return cp
}

func (m *mockTeamRequestRepo) Create(_ context.Context, req *model.TeamRequest) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.requests {
		if existing.Status == model.TeamRequestPending &&
			existing.RequesterStudentID == req.RequesterStudentID &&
			existing.ReceiverStudentID == req.ReceiverStudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	if req.RequestID == "" {
		req.RequestID = m.db.nextID("request")
	}
	cp := *req
	cp.Requester, cp.Receiver = nil, nil
	m.db.requests[req.RequestID] = &cp
	return nil
}

func (m *mockTeamRequestRepo) GetByID(_ context.Context, id string) (*model.TeamRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if tr, ok := m.db.requests[id]; ok {
		v := m.view(tr)
		return &v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTeamRequestRepo) LockByID(ctx context.Context, id string) (*model.TeamRequest, error) {
	return m.GetByID(ctx, id)
}

func (m *mockTeamRequestRepo) FindPending(_ context.Context, requesterID, receiverID string) (*model.TeamRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, tr := range m.db.requests {
		if tr.Status == model.TeamRequestPending && tr.RequesterStudentID == requesterID && tr.ReceiverStudentID == receiverID {
			v := m.view(tr)
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTeamRequestRepo) UpdateStatus(_ context.Context, id string, status model.TeamRequestStatus, respondedAt time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	tr, ok := m.db.requests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	tr.Status = status
	t := respondedAt
	tr.RespondedAt = &t
	return nil
}

func (m *mockTeamRequestRepo) DeclinePendingFor(_ context.Context, studentID string, respondedAt time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for _, tr := range m.db.requests {
		if tr.Status != model.TeamRequestPending {
			continue
		}
		if tr.RequesterStudentID == studentID || tr.ReceiverStudentID == studentID {
			tr.Status = model.TeamRequestDeclined
			t := respondedAt
			tr.RespondedAt = &t
			n++
		}
	}
	return n, nil
}

func (m *mockTeamRequestRepo) list(match func(*model.TeamRequest) bool) []model.TeamRequest {
	var result []model.TeamRequest
	for _, tr := range m.db.requests {
		if match(tr) {
			result = append(result, m.view(tr))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestID > result[j].RequestID })
	return result
}

func (m *mockTeamRequestRepo) ListByReceiver(_ context.Context, studentID string, status model.TeamRequestStatus) ([]model.TeamRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.list(func(tr *model.TeamRequest) bool {
		return tr.ReceiverStudentID == studentID && (status == "" || tr.Status == status)
	}), nil
}

func (m *mockTeamRequestRepo) ListByRequester(_ context.Context, studentID string) ([]model.TeamRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.list(func(tr *model.TeamRequest) bool { return tr.RequesterStudentID == studentID }), nil
}

// ── Mock SupervisorAssignmentRepository ──

type mockAssignmentRepo struct{ db *fakeDB }

func (m *mockAssignmentRepo) Upsert(_ context.Context, a *model.SupervisorAssignment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cp := *a
	m.db.assignments[a.GroupCode] = &cp
	return nil
}

func (m *mockAssignmentRepo) GetByGroup(_ context.Context, groupCode string) (*model.SupervisorAssignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a, ok := m.db.assignments[groupCode]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListBySupervisor(_ context.Context, supervisorID string) ([]model.SupervisorAssignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.SupervisorAssignment
	for _, a := range m.db.assignments {
		if a.SupervisorID == supervisorID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GroupCode < result[j].GroupCode })
	return result, nil
}

func (m *mockAssignmentRepo) ListByGroups(_ context.Context, groupCodes []string) ([]model.SupervisorAssignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.SupervisorAssignment
	for _, code := range groupCodes {
		if a, ok := m.db.assignments[code]; ok {
			result = append(result, *a)
		}
	}
	return result, nil
}

// ── Mock TitleRepository ──

type mockTitleRepo struct{ db *fakeDB }

func (m *mockTitleRepo) CreateWindow(_ context.Context, w *model.TitleSelectionWindow) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if w.WindowID == "" {
		w.WindowID = m.db.nextID("window")
	}
	m.db.windows = append(m.db.windows, *w)
	return nil
}

func (m *mockTitleRepo) LatestWindow(_ context.Context) (*model.TitleSelectionWindow, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if len(m.db.windows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	w := m.db.windows[len(m.db.windows)-1]
	return &w, nil
}

func (m *mockTitleRepo) CreateProposal(_ context.Context, p *model.TitleProposal) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p.ProposalID == "" {
		p.ProposalID = m.db.nextID("proposal")
	}
	cp := *p
	m.db.proposals[p.ProposalID] = &cp
	return nil
}

func (m *mockTitleRepo) GetProposal(_ context.Context, id string) (*model.TitleProposal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p, ok := m.db.proposals[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTitleRepo) LockProposal(ctx context.Context, id string) (*model.TitleProposal, error) {
	return m.GetProposal(ctx, id)
}

func (m *mockTitleRepo) ListProposalsByGroup(_ context.Context, groupCode string) ([]model.TitleProposal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.TitleProposal
	for _, p := range m.db.proposals {
		if p.GroupCode == groupCode {
			result = append(result, *p)
		}
	}
	sortProposalsDesc(result)
	return result, nil
}

func (m *mockTitleRepo) UpdateDecision(_ context.Context, p *model.TitleProposal) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.proposals[p.ProposalID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if p.Final() {
		for _, other := range m.db.proposals {
			if other.ProposalID != p.ProposalID && other.GroupCode == p.GroupCode && other.Final() {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	stored.StatusAdmin = p.StatusAdmin
	stored.StatusSupervisor = p.StatusSupervisor
	stored.LastActionAt = p.LastActionAt
	return nil
}

func (m *mockTitleRepo) ListProposals(_ context.Context, f repository.ProposalFilter) ([]model.TitleProposal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	allowed := map[string]bool{}
	for _, c := range f.GroupCodes {
		allowed[c] = true
	}
	var result []model.TitleProposal
	for _, p := range m.db.proposals {
		if f.GroupCodes != nil && !allowed[p.GroupCode] {
			continue
		}
		if f.StatusAdmin != "" && p.StatusAdmin != f.StatusAdmin {
			continue
		}
		result = append(result, *p)
	}
	sortProposalsDesc(result)
	return result, nil
}

func (m *mockTitleRepo) SearchFinal(_ context.Context, keyword string, _ int) ([]model.TitleProposal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.TitleProposal
	for _, p := range m.db.proposals {
		if p.Final() && strings.Contains(strings.ToLower(p.Title), strings.ToLower(keyword)) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockTitleRepo) CreateArchives(_ context.Context, archives []model.TitleArchive) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.archives = append(m.db.archives, archives...)
	return nil
}

func (m *mockTitleRepo) SearchArchive(_ context.Context, keyword string, _ int) ([]model.TitleArchive, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.TitleArchive
	for _, a := range m.db.archives {
		if strings.Contains(strings.ToLower(a.Title), strings.ToLower(keyword)) {
			result = append(result, a)
		}
	}
	return result, nil
}

// ── Mock ActivityRepository ──

type mockActivityRepo struct{ db *fakeDB }

func copyActivity(a *model.Activity) *model.Activity {
	cp := *a
	cp.Targets = append([]model.ActivityTarget(nil), a.Targets...)
	return &cp
}

func (m *mockActivityRepo) Create(_ context.Context, a *model.Activity) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a.ActivityID == "" {
		a.ActivityID = m.db.nextID("activity")
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	for i := range a.Targets {
		a.Targets[i].ActivityID = a.ActivityID
		if a.Targets[i].TargetID == "" {
			a.Targets[i].TargetID = m.db.nextID("target")
		}
	}
	m.db.activities[a.ActivityID] = copyActivity(a)
	return nil
}

func (m *mockActivityRepo) GetByID(_ context.Context, id string) (*model.Activity, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a, ok := m.db.activities[id]; ok {
		return copyActivity(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockActivityRepo) Update(_ context.Context, a *model.Activity) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.activities[a.ActivityID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Title = a.Title
	stored.Description = a.Description
	stored.StartAt = a.StartAt
	stored.DeadlineAt = a.DeadlineAt
	stored.RequirePDF = a.RequirePDF
	stored.ScopeAllGroups = a.ScopeAllGroups
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockActivityRepo) ReplaceTargets(_ context.Context, activityID string, groupCodes []string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.activities[activityID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Targets = nil
	for _, code := range groupCodes {
		stored.Targets = append(stored.Targets, model.ActivityTarget{
			TargetID:   m.db.nextID("target"),
			ActivityID: activityID,
			GroupCode:  code,
		})
	}
	return nil
}

func (m *mockActivityRepo) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	delete(m.db.activities, id)
	for sid, s := range m.db.submissions {
		if s.ActivityID == id {
			delete(m.db.submissions, sid)
		}
	}
	return nil
}

func (m *mockActivityRepo) ListByAuthor(_ context.Context, role model.Role, authorID string) ([]model.Activity, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Activity
	for _, a := range m.db.activities {
		if a.AuthoredBy(role, authorID) {
			result = append(result, *copyActivity(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ActivityID < result[j].ActivityID })
	return result, nil
}

func (m *mockActivityRepo) ListForGroup(_ context.Context, groupCode string) ([]model.Activity, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Activity
	for _, a := range m.db.activities {
		if a.TargetsGroup(groupCode) {
			result = append(result, *copyActivity(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ActivityID < result[j].ActivityID })
	return result, nil
}

func (m *mockActivityRepo) Count(_ context.Context) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return int64(len(m.db.activities)), nil
}

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct{ db *fakeDB }

func (m *mockSubmissionRepo) view(s *model.Submission, withActivity bool) *model.Submission {
	cp := *s
	cp.Activity = nil
	if withActivity {
		if a, ok := m.db.activities[s.ActivityID]; ok {
			cp.Activity = copyActivity(a)
		}
	}
	return &cp
}

func (m *mockSubmissionRepo) Create(_ context.Context, s *model.Submission) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.submissions {
		if existing.ActivityID == s.ActivityID && existing.GroupCode == s.GroupCode {
			return gorm.ErrDuplicatedKey
		}
	}
	if s.SubmissionID == "" {
		s.SubmissionID = m.db.nextID("submission")
	}
	m.db.submissions[s.SubmissionID] = m.view(s, false)
	return nil
}

func (m *mockSubmissionRepo) Save(_ context.Context, s *model.Submission) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.submissions[s.SubmissionID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.db.submissions[s.SubmissionID] = m.view(s, false)
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if s, ok := m.db.submissions[id]; ok {
		return m.view(s, true), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) LockByID(_ context.Context, id string) (*model.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if s, ok := m.db.submissions[id]; ok {
		return m.view(s, false), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) LockByActivityGroup(_ context.Context, activityID, groupCode string) (*model.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, s := range m.db.submissions {
		if s.ActivityID == activityID && s.GroupCode == groupCode {
			return m.view(s, false), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) ListByGroup(_ context.Context, groupCode string) ([]model.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Submission
	for _, s := range m.db.submissions {
		if s.GroupCode == groupCode {
			result = append(result, *m.view(s, false))
		}
	}
	return result, nil
}

func (m *mockSubmissionRepo) ListByActivities(_ context.Context, activityIDs []string) ([]model.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	want := map[string]bool{}
	for _, id := range activityIDs {
		want[id] = true
	}
	var result []model.Submission
	for _, s := range m.db.submissions {
		if want[s.ActivityID] {
			result = append(result, *m.view(s, true))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubmissionID < result[j].SubmissionID })
	return result, nil
}

func (m *mockSubmissionRepo) CountByStatus(_ context.Context, status model.SubmissionStatus) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for _, s := range m.db.submissions {
		if s.Status == status {
			n++
		}
	}
	return n, nil
}

// ── Mock 外部协作者 ──

type mockActivationStore struct {
	mu       sync.Mutex
	records  map[string]*redis.Activation
	cooldown map[string]bool
}

func newMockActivationStore() *mockActivationStore {
	return &mockActivationStore{
		records:  make(map[string]*redis.Activation),
		cooldown: make(map[string]bool),
	}
}

func (m *mockActivationStore) PutActivation(_ context.Context, studentID, codeHash string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[studentID] = &redis.Activation{CodeHash: codeHash}
	return nil
}

func (m *mockActivationStore) GetActivation(_ context.Context, studentID string) (*redis.Activation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[studentID]
	if !ok {
		return nil, redis.ErrActivationMissing
	}
	cp := *a
	return &cp, nil
}

func (m *mockActivationStore) IncrActivationAttempts(_ context.Context, studentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[studentID]
	if !ok {
		return 0, redis.ErrActivationMissing
	}
	a.Attempts++
	return a.Attempts, nil
}

func (m *mockActivationStore) MarkActivationVerified(_ context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.records[studentID]; ok {
		a.Verified = true
	}
	return nil
}

func (m *mockActivationStore) DeleteActivation(_ context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, studentID)
	return nil
}

func (m *mockActivationStore) AcquireResendSlot(_ context.Context, studentID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cooldown[studentID] {
		return false, nil
	}
	m.cooldown[studentID] = true
	return true, nil
}

type mockBlacklist struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{revoked: make(map[string]bool)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = true
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[jti], nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) Transition(machine, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[machine+":"+outcome]++
}

func (r *countingRecorder) count(machine, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[machine+":"+outcome]
}
