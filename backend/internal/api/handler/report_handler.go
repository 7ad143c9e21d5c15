package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// ReportHandler 报表导出 HTTP 处理器
type ReportHandler struct {
	reportSvc service.ReportService
	errs      *errorWriter
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportSvc service.ReportService, errs *errorWriter) *ReportHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &ReportHandler{reportSvc: reportSvc, errs: errs}
}

// ExportSubmissions 导出作者名下提交汇总
// GET /api/v1/export/submissions
func (h *ReportHandler) ExportSubmissions(c *gin.Context) {
	h.download(c, h.reportSvc.ExportSubmissions, contentTypeXLSX)
}

// GroupCalendar 导出小组活动截止日历
// GET /api/v1/export/calendar
func (h *ReportHandler) GroupCalendar(c *gin.Context) {
	h.download(c, h.reportSvc.GroupCalendar, contentTypeICS)
}

// ExportNotRegistered 导出未注册学生名单
// GET /api/v1/admin/students/export
func (h *ReportHandler) ExportNotRegistered(c *gin.Context) {
	h.download(c, h.reportSvc.ExportNotRegistered, contentTypeCSV)
}

// AdminDashboard 管理员看板统计
// GET /api/v1/admin/dashboard
func (h *ReportHandler) AdminDashboard(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	stats, err := h.reportSvc.AdminDashboard(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, stats)
}

// SupervisorDashboard 导师看板统计
// GET /api/v1/supervisors/me/dashboard
func (h *ReportHandler) SupervisorDashboard(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	stats, err := h.reportSvc.SupervisorDashboard(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, stats)
}

func (h *ReportHandler) download(
	c *gin.Context,
	build func(ctx context.Context, actor service.Actor) (*bytes.Buffer, string, error),
	contentType string,
) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	buf, filename, err := build(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
