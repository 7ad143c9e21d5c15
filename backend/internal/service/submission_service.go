package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	"upms-teamup/backend/pkg/blob"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// Upload 学生上传的文件；Body 为 nil 表示未上传
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SubmissionFile 待下载的提交文件
type SubmissionFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// SubmissionService 小组提交与评阅业务接口
type SubmissionService interface {
	Submit(ctx context.Context, actor Actor, activityID string, upload *Upload) (*dto.SubmissionResponse, error)
	Grade(ctx context.Context, actor Actor, submissionID string, req *dto.GradeRequest) (*dto.SubmissionResponse, error)
	ListForAuthor(ctx context.Context, actor Actor) ([]dto.SubmissionResponse, error)
	OpenFile(ctx context.Context, actor Actor, submissionID string) (*SubmissionFile, error)
}

type submissionService struct {
	repo     *repository.Repository
	store    blob.Store
	clock    Clock
	recorder TransitionRecorder
	logger   *zap.Logger
}

// NewSubmissionService 创建 SubmissionService 实例
func NewSubmissionService(
	repo *repository.Repository,
	store blob.Store,
	clock Clock,
	recorder TransitionRecorder,
	logger *zap.Logger,
) SubmissionService {
	return &submissionService{
		repo:     repo,
		store:    store,
		clock:    clockOrSystem(clock),
		recorder: recorderOrNoop(recorder),
		logger:   logger,
	}
}

// ────────────────────── Submit ──────────────────────

// Submit 首次提交或覆盖重交；截止后一律拒绝，已评为 Marked 的提交不可再改
func (s *submissionService) Submit(ctx context.Context, actor Actor, activityID string, upload *Upload) (*dto.SubmissionResponse, error) {
	account, err := studentAccountOf(ctx, s.repo, actor)
	if err != nil {
		return nil, err
	}
	groupCode, err := groupOf(account)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.ErrNotEligible, "activity", activityID)
	}

	activity, err := s.repo.Activity.GetByID(ctx, activityID)
	if err != nil {
		return nil, notFound(err, "activity", activityID)
	}
	if !activity.TargetsGroup(groupCode) {
		return nil, pkgerrors.New(pkgerrors.ErrNotEligible, "activity", activityID)
	}
	hasFile := upload != nil && upload.Body != nil
	if err := checkFile(activity, upload, hasFile); err != nil {
		return nil, err
	}

	var (
		saved   *model.Submission
		newKey  string
		oldKey  string
		outcome string
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 锁小组行，串行化同组首次提交
		if _, err := tx.Group.LockByCode(ctx, groupCode); err != nil {
			return notFound(err, "group", groupCode)
		}
		existing, err := tx.Submission.LockByActivityGroup(ctx, activityID, groupCode)
		if err != nil && !isRecordNotFound(err) {
			return err
		}
		if existing != nil && existing.Status == model.SubmissionMarked {
			return pkgerrors.State("submission", existing.SubmissionID, "Pending|Rejected", string(model.SubmissionMarked))
		}
		now := s.clock.Now().UTC()
		if activity.DeadlinePassed(now) {
			return pkgerrors.New(pkgerrors.ErrDeadlinePassed, "activity", activityID)
		}

		if hasFile {
			key, err := s.storeFile(ctx, groupCode, activityID, upload)
			if err != nil {
				return err
			}
			newKey = key
		}

		if existing == nil {
			sub := &model.Submission{
				ActivityID:           activityID,
				GroupCode:            groupCode,
				SubmittedByStudentID: account.StudentID,
				Status:               model.SubmissionPending,
				SubmittedAt:          now,
			}
			if newKey != "" {
				sub.FilePath = &newKey
			}
			if err := tx.Submission.Create(ctx, sub); err != nil {
				return constraint(err, "submission", activityID+"/"+groupCode)
			}
			saved, outcome = sub, "submitted"
			return nil
		}

		if newKey != "" {
			if existing.FilePath != nil {
				oldKey = *existing.FilePath
			}
			existing.FilePath = &newKey
		}
		existing.SubmittedByStudentID = account.StudentID
		existing.Status = model.SubmissionPending
		existing.SubmittedAt = now
		existing.ResubmissionCount++
		existing.MarkedBy = nil
		existing.MarkedAt = nil
		existing.Feedback = ""
		if err := tx.Submission.Save(ctx, existing); err != nil {
			return err
		}
		saved, outcome = existing, "resubmitted"
		return nil
	})
	if err != nil {
		if newKey != "" {
			s.discard(ctx, newKey)
		}
		if !isWorkflow(err) {
			s.logger.Error("保存提交失败", zap.String("activity_id", activityID), zap.String("group_code", groupCode), zap.Error(err))
		}
		return nil, err
	}
	if oldKey != "" {
		s.discard(ctx, oldKey)
	}

	s.recorder.Transition(machineSubmission, outcome)
	saved.Activity = activity
	resp := toSubmissionResponse(saved)
	return &resp, nil
}

// checkFile 仅按扩展名校验，不检查文件内容
func checkFile(activity *model.Activity, upload *Upload, hasFile bool) error {
	if !activity.RequirePDF {
		return nil
	}
	if !hasFile {
		return pkgerrors.New(pkgerrors.ErrFileRequired, "activity", activity.ActivityID)
	}
	if !strings.EqualFold(path.Ext(upload.Filename), ".pdf") {
		return &pkgerrors.WorkflowError{
			Kind:     pkgerrors.ErrFileTypeInvalid,
			Entity:   "activity",
			ID:       activity.ActivityID,
			Expected: ".pdf",
			Actual:   path.Ext(upload.Filename),
		}
	}
	return nil
}

// storeFile 写入文件存储，返回持久化的 key
func (s *submissionService) storeFile(ctx context.Context, groupCode, activityID string, upload *Upload) (string, error) {
	key := fmt.Sprintf("submissions/%s/activity_%s_%s_%s", groupCode, activityID, uuid.NewString(), safeFilename(upload.Filename))
	info, err := s.store.Put(ctx, key, upload.Body, blob.PutOptions{ContentType: upload.ContentType})
	if err != nil {
		s.logger.Error("写入提交文件失败", zap.String("key", key), zap.Error(err))
		return "", err
	}
	return info.Key, nil
}

// discard 尽力删除文件，失败只记录日志
func (s *submissionService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("删除提交文件失败", zap.String("key", key), zap.Error(err))
	}
}

// safeFilename 去除目录部分与不安全字符
func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// ────────────────────── Grade ──────────────────────

// Grade 仅活动作者可评阅，且只能评阅 Pending 状态
func (s *submissionService) Grade(ctx context.Context, actor Actor, submissionID string, req *dto.GradeRequest) (*dto.SubmissionResponse, error) {
	if err := requireRole(actor, model.RoleAdmin, model.RoleSupervisor); err != nil {
		return nil, err
	}
	verdict := model.SubmissionStatus(req.Verdict)
	if verdict != model.SubmissionMarked && verdict != model.SubmissionRejected {
		return nil, pkgerrors.Validation("评阅结果只能为 Marked 或 Rejected")
	}

	var graded *model.Submission
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		sub, err := tx.Submission.LockByID(ctx, submissionID)
		if err != nil {
			return notFound(err, "submission", submissionID)
		}
		activity, err := tx.Activity.GetByID(ctx, sub.ActivityID)
		if err != nil {
			return notFound(err, "activity", sub.ActivityID)
		}
		if !activity.AuthoredBy(actor.Role, actor.ID) {
			return pkgerrors.New(pkgerrors.ErrNotAuthorized, "submission", submissionID)
		}
		if sub.Status != model.SubmissionPending {
			return pkgerrors.State("submission", submissionID, string(model.SubmissionPending), string(sub.Status))
		}

		now := s.clock.Now().UTC()
		sub.Status = verdict
		sub.MarkedBy = &actor.ID
		sub.MarkedAt = &now
		sub.Feedback = strings.TrimSpace(req.Feedback)
		if err := tx.Submission.Save(ctx, sub); err != nil {
			return err
		}
		sub.Activity = activity
		graded = sub
		return nil
	})
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("评阅提交失败", zap.String("submission_id", submissionID), zap.Error(err))
		}
		return nil, err
	}

	s.recorder.Transition(machineSubmission, strings.ToLower(string(verdict)))
	resp := toSubmissionResponse(graded)
	return &resp, nil
}

// ────────────────────── 查询 ──────────────────────

// ListForAuthor 作者创建的全部活动下的提交
func (s *submissionService) ListForAuthor(ctx context.Context, actor Actor) ([]dto.SubmissionResponse, error) {
	list, err := authoredSubmissions(ctx, s.repo, actor)
	if err != nil {
		if !isWorkflow(err) {
			s.logger.Error("查询提交列表失败", zap.Error(err))
		}
		return nil, err
	}
	result := make([]dto.SubmissionResponse, 0, len(list))
	for i := range list {
		result = append(result, toSubmissionResponse(&list[i]))
	}
	return result, nil
}

// authoredSubmissions 作者名下全部提交（含活动信息）
func authoredSubmissions(ctx context.Context, repo *repository.Repository, actor Actor) ([]model.Submission, error) {
	if err := requireRole(actor, model.RoleAdmin, model.RoleSupervisor); err != nil {
		return nil, err
	}
	activities, err := repo.Activity.ListByAuthor(ctx, actor.Role, actor.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ActivityID)
	}
	return repo.Submission.ListByActivities(ctx, ids)
}

// OpenFile 活动作者或本组成员可下载
func (s *submissionService) OpenFile(ctx context.Context, actor Actor, submissionID string) (*SubmissionFile, error) {
	sub, err := s.repo.Submission.GetByID(ctx, submissionID)
	if err != nil {
		return nil, notFound(err, "submission", submissionID)
	}

	switch actor.Role {
	case model.RoleAdmin, model.RoleSupervisor:
		if sub.Activity == nil || !sub.Activity.AuthoredBy(actor.Role, actor.ID) {
			return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "submission", submissionID)
		}
	case model.RoleStudent:
		account, err := studentAccountOf(ctx, s.repo, actor)
		if err != nil {
			return nil, err
		}
		if !account.Grouped() || *account.GroupCode != sub.GroupCode {
			return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "submission", submissionID)
		}
	default:
		return nil, pkgerrors.New(pkgerrors.ErrNotAuthorized, "principal", actor.ID)
	}

	if sub.FilePath == nil {
		return nil, pkgerrors.New(pkgerrors.ErrNotFound, "submission_file", submissionID)
	}
	info, body, err := s.store.Get(ctx, *sub.FilePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.ErrNotFound, "submission_file", submissionID)
		}
		s.logger.Error("读取提交文件失败", zap.String("key", *sub.FilePath), zap.Error(err))
		return nil, err
	}
	return &SubmissionFile{
		Name:        displayName(*sub.FilePath),
		ContentType: info.ContentType,
		Size:        info.Size,
		Body:        body,
	}, nil
}

// displayName 从存储 key 还原原始文件名：activity_<id>_<uuid>_<name>
func displayName(key string) string {
	base := path.Base(key)
	parts := strings.SplitN(base, "_", 4)
	if len(parts) == 4 {
		return parts[3]
	}
	return base
}

func toSubmissionResponse(sub *model.Submission) dto.SubmissionResponse {
	resp := dto.SubmissionResponse{
		ID:                   sub.SubmissionID,
		ActivityID:           sub.ActivityID,
		GroupCode:            sub.GroupCode,
		SubmittedByStudentID: sub.SubmittedByStudentID,
		HasFile:              sub.FilePath != nil,
		Status:               string(sub.Status),
		SubmittedAt:          dto.FormatTime(sub.SubmittedAt),
		MarkedBy:             sub.MarkedBy,
		MarkedAt:             dto.FormatTimePtr(sub.MarkedAt),
		Feedback:             sub.Feedback,
		ResubmissionCount:    sub.ResubmissionCount,
	}
	if sub.FilePath != nil {
		resp.FileName = displayName(*sub.FilePath)
	}
	if sub.Activity != nil {
		resp.ActivityTitle = sub.Activity.Title
	}
	return resp
}
