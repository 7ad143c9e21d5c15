package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
)

// ── 报表模块业务错误 ──

var ErrReportGenerateFail = errors.New("生成报表文件失败")

// ReportService 报表导出与看板统计接口
//
//   - 提交汇总导出为 Excel，按活动分 Sheet
//   - 小组截止日历导出为 iCalendar
//   - 未注册学生名单导出为 CSV
//   - 文件结果以 bytes.Buffer 返回，由 Handler 层设置响应头
type ReportService interface {
	ExportSubmissions(ctx context.Context, actor Actor) (*bytes.Buffer, string, error)
	GroupCalendar(ctx context.Context, actor Actor) (*bytes.Buffer, string, error)
	ExportNotRegistered(ctx context.Context, actor Actor) (*bytes.Buffer, string, error)

	AdminDashboard(ctx context.Context, actor Actor) (*dto.AdminDashboardResponse, error)
	SupervisorDashboard(ctx context.Context, actor Actor) (*dto.SupervisorDashboardResponse, error)
}

type reportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(repo *repository.Repository, logger *zap.Logger) ReportService {
	return &reportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportSubmissions 导出作者名下的提交汇总
// ═══════════════════════════════════════════════════════════
//
// 每个活动一个 Sheet：小组 | 提交人 | 提交时间 | 文件 | 状态 | 重交次数 | 评阅时间 | 评语
// 无提交的作者也返回仅含表头的“汇总” Sheet

func (s *reportService) ExportSubmissions(ctx context.Context, actor Actor) (*bytes.Buffer, string, error) {
	subs, err := authoredSubmissions(ctx, s.repo, actor)
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("查询提交失败", zap.Error(err))
		}
		return nil, "", err
	}

	// 1. 按活动分组
	type sheetData struct {
		title string
		rows  []model.Submission
	}
	byActivity := make(map[string]*sheetData)
	var order []string
	for _, sub := range subs {
		sd, ok := byActivity[sub.ActivityID]
		if !ok {
			title := sub.ActivityID
			if sub.Activity != nil {
				title = sub.Activity.Title
			}
			sd = &sheetData{title: title}
			byActivity[sub.ActivityID] = sd
			order = append(order, sub.ActivityID)
		}
		sd.rows = append(sd.rows, sub)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return byActivity[order[i]].title < byActivity[order[j]].title
	})

	// 2. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	headers := []string{"小组", "提交人学号", "提交时间", "文件", "状态", "重交次数", "评阅时间", "评语"}

	writeSheet := func(name string, rows []model.Submission) {
		for i, h := range headers {
			f.SetCellValue(name, cell(colName(i), 1), h)
		}
		f.SetCellStyle(name, "A1", cell(colName(len(headers)-1), 1), headerStyle)
		f.SetColWidth(name, "A", "B", 14)
		f.SetColWidth(name, "C", "C", 22)
		f.SetColWidth(name, "D", "D", 36)
		f.SetColWidth(name, "H", "H", 40)

		sort.SliceStable(rows, func(i, j int) bool { return rows[i].GroupCode < rows[j].GroupCode })
		for r, sub := range rows {
			row := r + 2
			file := "-"
			if sub.FilePath != nil {
				file = displayName(*sub.FilePath)
			}
			markedAt := "-"
			if sub.MarkedAt != nil {
				markedAt = sub.MarkedAt.UTC().Format(time.RFC3339)
			}
			f.SetCellValue(name, cell("A", row), sub.GroupCode)
			f.SetCellValue(name, cell("B", row), sub.SubmittedByStudentID)
			f.SetCellValue(name, cell("C", row), sub.SubmittedAt.UTC().Format(time.RFC3339))
			f.SetCellValue(name, cell("D", row), file)
			f.SetCellValue(name, cell("E", row), string(sub.Status))
			f.SetCellValue(name, cell("F", row), sub.ResubmissionCount)
			f.SetCellValue(name, cell("G", row), markedAt)
			f.SetCellValue(name, cell("H", row), sub.Feedback)
		}
	}

	if len(order) == 0 {
		f.SetSheetName("Sheet1", "汇总")
		writeSheet("汇总", nil)
	} else {
		used := make(map[string]bool)
		for i, id := range order {
			name := sheetName(byActivity[id].title, i, used)
			if i == 0 {
				f.SetSheetName("Sheet1", name)
			} else if _, err := f.NewSheet(name); err != nil {
				s.logger.Error("创建 Sheet 失败", zap.Error(err))
				return nil, "", ErrReportGenerateFail
			}
			writeSheet(name, byActivity[id].rows)
		}
	}

	// 3. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrReportGenerateFail
	}
	filename := fmt.Sprintf("submissions_%s.xlsx", nowUTC().Format("20060102"))
	return buf, filename, nil
}

// sheetName Sheet 名最长 31 字符且不可重复，不允许 : \ / ? * [ ]
func sheetName(title string, idx int, used map[string]bool) string {
	clean := make([]rune, 0, len(title))
	for _, r := range title {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			clean = append(clean, '_')
		default:
			clean = append(clean, r)
		}
	}
	if len(clean) > 27 {
		clean = clean[:27]
	}
	name := string(clean)
	if name == "" || used[name] {
		name = fmt.Sprintf("%s_%d", name, idx+1)
	}
	used[name] = true
	return name
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// ═══════════════════════════════════════════════════════════
// GroupCalendar 生成本组活动截止日历
// ═══════════════════════════════════════════════════════════

func (s *reportService) GroupCalendar(ctx context.Context, actor Actor) (*bytes.Buffer, string, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, "", err
	}
	groupCode, err := groupOf(account)
	if err != nil {
		return nil, "", err
	}

	activities, err := s.repo.Activity.ListForGroup(ctx, groupCode)
	if err != nil {
		s.logger.Error("查询小组活动失败", zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//UPMS TeamUp//Group Deadlines//ZH")
	cal.SetName("小组 " + groupCode + " 截止日程")

	stamp := nowUTC()
	for _, a := range activities {
		if a.DeadlineAt == nil {
			continue
		}
		evt := cal.AddEvent(fmt.Sprintf("%s-%s@upms-teamup", a.ActivityID, groupCode))
		evt.SetDtStampTime(stamp)
		evt.SetSummary("截止: " + a.Title)
		if a.Description != "" {
			evt.SetDescription(a.Description)
		}
		start := a.DeadlineAt.Add(-time.Hour)
		if a.StartAt != nil && a.StartAt.Before(*a.DeadlineAt) && a.DeadlineAt.Sub(*a.StartAt) < time.Hour {
			start = *a.StartAt
		}
		evt.SetStartAt(start.UTC())
		evt.SetEndAt(a.DeadlineAt.UTC())
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, fmt.Sprintf("group_%s_deadlines.ics", groupCode), nil
}

// ═══════════════════════════════════════════════════════════
// ExportNotRegistered 导出名册中尚未激活账号的学生
// ═══════════════════════════════════════════════════════════

// exportPageSize 分页读取名册的页大小
const exportPageSize = 500

var notRegisteredHeader = []string{"student_id", "name", "gender", "phone", "email", "faculty", "program", "batch"}

func (s *reportService) ExportNotRegistered(ctx context.Context, actor Actor) (*bytes.Buffer, string, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if err := w.Write(notRegisteredHeader); err != nil {
		return nil, "", ErrReportGenerateFail
	}

	for offset := 0; ; offset += exportPageSize {
		rows, total, err := s.repo.Student.ListRoster(ctx, repository.RosterFilter{
			Status: repository.RosterNotRegistered,
			Offset: offset,
			Limit:  exportPageSize,
		})
		if err != nil {
			s.logger.Error("查询未注册学生失败", zap.Error(err))
			return nil, "", err
		}
		for _, r := range rows {
			if err := w.Write([]string{r.StudentID, r.Name, r.Gender, r.Phone, r.Email, r.Faculty, r.Program, r.Batch}); err != nil {
				return nil, "", ErrReportGenerateFail
			}
		}
		if len(rows) == 0 || int64(offset+len(rows)) >= total {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		s.logger.Error("写入 CSV 失败", zap.Error(err))
		return nil, "", ErrReportGenerateFail
	}
	return buf, "non_registered_students.csv", nil
}

// ═══════════════════════════════════════════════════════════
// 看板统计
// ═══════════════════════════════════════════════════════════

func (s *reportService) AdminDashboard(ctx context.Context, actor Actor) (*dto.AdminDashboardResponse, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		resp dto.AdminDashboardResponse
		err  error
	)
	counters := []struct {
		dst   *int64
		count func() (int64, error)
	}{
		{&resp.StudentRecords, func() (int64, error) { return s.repo.Student.CountRecords(ctx) }},
		{&resp.StudentAccounts, func() (int64, error) { return s.repo.Principal.CountByRole(ctx, model.RoleStudent) }},
		{&resp.Supervisors, func() (int64, error) { return s.repo.Principal.CountByRole(ctx, model.RoleSupervisor) }},
		{&resp.Groups, func() (int64, error) { return s.repo.Group.Count(ctx) }},
		{&resp.Activities, func() (int64, error) { return s.repo.Activity.Count(ctx) }},
		{&resp.SubmissionsPending, func() (int64, error) { return s.repo.Submission.CountByStatus(ctx, model.SubmissionPending) }},
	}
	for _, c := range counters {
		if *c.dst, err = c.count(); err != nil {
			s.logger.Error("统计看板数据失败", zap.Error(err))
			return nil, err
		}
	}

	proposals, err := s.repo.Title.ListProposals(ctx, repository.ProposalFilter{StatusAdmin: model.DecisionPending})
	if err != nil {
		s.logger.Error("统计待审题目失败", zap.Error(err))
		return nil, err
	}
	resp.ProposalsPending = int64(len(proposals))
	return &resp, nil
}

// SupervisorDashboard 指导小组数、名下活动、待评阅提交与待导师审批的题目
func (s *reportService) SupervisorDashboard(ctx context.Context, actor Actor) (*dto.SupervisorDashboardResponse, error) {
	if err := requireRole(actor, model.RoleSupervisor); err != nil {
		return nil, err
	}

	assignments, err := s.repo.Assignment.ListBySupervisor(ctx, actor.ID)
	if err != nil {
		s.logger.Error("查询指导小组失败", zap.Error(err))
		return nil, err
	}
	activities, err := s.repo.Activity.ListByAuthor(ctx, model.RoleSupervisor, actor.ID)
	if err != nil {
		s.logger.Error("查询名下活动失败", zap.Error(err))
		return nil, err
	}
	resp := &dto.SupervisorDashboardResponse{
		Groups:     int64(len(assignments)),
		Activities: int64(len(activities)),
	}

	if len(activities) > 0 {
		ids := make([]string, 0, len(activities))
		for _, a := range activities {
			ids = append(ids, a.ActivityID)
		}
		subs, err := s.repo.Submission.ListByActivities(ctx, ids)
		if err != nil {
			s.logger.Error("查询提交失败", zap.Error(err))
			return nil, err
		}
		for _, sub := range subs {
			if sub.Status == model.SubmissionPending {
				resp.SubmissionsPending++
			}
		}
	}

	codes := make([]string, 0, len(assignments))
	for _, a := range assignments {
		codes = append(codes, a.GroupCode)
	}
	proposals, err := s.repo.Title.ListProposals(ctx, repository.ProposalFilter{
		GroupCodes:  codes,
		StatusAdmin: model.DecisionApproved,
	})
	if err != nil {
		s.logger.Error("查询待审题目失败", zap.Error(err))
		return nil, err
	}
	for _, p := range proposals {
		if p.StatusSupervisor == model.DecisionPending {
			resp.ProposalsPending++
		}
	}
	return resp, nil
}
