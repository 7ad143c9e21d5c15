package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"upms-teamup/backend/internal/service"
	pkgerrors "upms-teamup/backend/pkg/errors"
	"upms-teamup/backend/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Account    *AccountHandler
	Team       *TeamHandler
	Group      *GroupHandler
	Supervisor *SupervisorHandler
	Title      *TitleHandler
	Activity   *ActivityHandler
	Submission *SubmissionHandler
	Report     *ReportHandler
}

// NewHandler 创建 Handler 聚合
// uploadLimit 为单个提交文件的最大字节数
func NewHandler(svc *service.Service, uploadLimit int64, logger *zap.Logger) *Handler {
	errs := newErrorWriter(logger)
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth, errs),
		Account:    NewAccountHandler(svc.Account, errs),
		Team:       NewTeamHandler(svc.Team, errs),
		Group:      NewGroupHandler(svc.Group, errs),
		Supervisor: NewSupervisorHandler(svc.Supervisor, errs),
		Title:      NewTitleHandler(svc.Title, errs),
		Activity:   NewActivityHandler(svc.Activity, errs),
		Submission: NewSubmissionHandler(svc.Submission, uploadLimit, errs),
		Report:     NewReportHandler(svc.Report, errs),
	}
}

// ── 错误映射 ──
//
// 流程错误类别 -> HTTP 状态码 + 业务码
// 20xxx: 流程错误；11xxx: 认证与激活；16xxx: 报表

type errorRule struct {
	kind   error
	status int
	code   int
}

var workflowRules = []errorRule{
	{pkgerrors.ErrValidation, http.StatusBadRequest, 20001},
	{pkgerrors.ErrNotAuthorized, http.StatusForbidden, 20002},
	{pkgerrors.ErrNotFound, http.StatusNotFound, 20003},
	{pkgerrors.ErrInvalidState, http.StatusConflict, 20004},
	{pkgerrors.ErrAlreadyGrouped, http.StatusConflict, 20005},
	{pkgerrors.ErrRequesterUnavailable, http.StatusConflict, 20006},
	{pkgerrors.ErrDuplicatePending, http.StatusConflict, 20007},
	{pkgerrors.ErrConstraintViolation, http.StatusConflict, 20008},
	{pkgerrors.ErrGroupFull, http.StatusConflict, 20009},
	{pkgerrors.ErrTitleLocked, http.StatusConflict, 20010},
	{pkgerrors.ErrOptimisticLock, http.StatusConflict, 20011},
	{pkgerrors.ErrWindowClosed, http.StatusForbidden, 20012},
	{pkgerrors.ErrNotEligible, http.StatusForbidden, 20013},
	{pkgerrors.ErrDeadlinePassed, http.StatusUnprocessableEntity, 20014},
	{pkgerrors.ErrFileRequired, http.StatusUnprocessableEntity, 20015},
	{pkgerrors.ErrFileTypeInvalid, http.StatusUnprocessableEntity, 20016},
}

var authRules = []errorRule{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, 11001},
	{service.ErrAccountDisabled, http.StatusForbidden, 11002},
	{service.ErrRefreshTokenInvalid, http.StatusUnauthorized, 11003},
	{service.ErrActivationUnavailable, http.StatusServiceUnavailable, 11101},
	{service.ErrStudentNotInRoster, http.StatusNotFound, 11102},
	{service.ErrStudentEmailMissing, http.StatusUnprocessableEntity, 11103},
	{service.ErrAlreadyActivated, http.StatusConflict, 11104},
	{service.ErrResendTooSoon, http.StatusTooManyRequests, 11105},
	{service.ErrCodeExpired, http.StatusBadRequest, 11106},
	{service.ErrCodeInvalid, http.StatusBadRequest, 11107},
	{service.ErrTooManyAttempts, http.StatusTooManyRequests, 11108},
	{service.ErrCodeNotVerified, http.StatusBadRequest, 11109},
	{service.ErrReportGenerateFail, http.StatusInternalServerError, 16101},
}

type errorWriter struct {
	logger *zap.Logger
}

func newErrorWriter(logger *zap.Logger) *errorWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &errorWriter{logger: logger}
}

// write 将 Service 返回的错误写为统一响应
func (w *errorWriter) write(c *gin.Context, err error) {
	if kind := pkgerrors.Kind(err); kind != nil {
		for _, r := range workflowRules {
			if r.kind == kind {
				response.ErrorWithDetails(c, r.status, r.code, kind.Error(), details(err, kind))
				return
			}
		}
	}
	for _, r := range authRules {
		if errors.Is(err, r.kind) {
			response.Error(c, r.status, r.code, r.kind.Error())
			return
		}
	}

	w.logger.Error("未归类的服务错误",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.InternalError(c)
}

// details 仅当错误携带上下文时返回完整信息
func details(err error, kind error) string {
	if msg := err.Error(); msg != kind.Error() {
		return msg
	}
	return ""
}
