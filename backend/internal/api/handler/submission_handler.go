package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

// multipart 表单除文件外的额外开销
const formOverhead = 1 << 20

// SubmissionHandler 提交与评阅 HTTP 处理器
type SubmissionHandler struct {
	submissionSvc service.SubmissionService
	uploadLimit   int64
	errs          *errorWriter
}

// NewSubmissionHandler 创建 SubmissionHandler
func NewSubmissionHandler(submissionSvc service.SubmissionService, uploadLimit int64, errs *errorWriter) *SubmissionHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &SubmissionHandler{submissionSvc: submissionSvc, uploadLimit: uploadLimit, errs: errs}
}

// Submit 小组提交（multipart，文件字段 file 可选）
// POST /api/v1/activities/:id/submission
func (h *SubmissionHandler) Submit(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if h.uploadLimit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadLimit+formOverhead)
	}

	upload := &service.Upload{}
	file, header, err := c.Request.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if h.uploadLimit > 0 && header.Size > h.uploadLimit {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005,
				fmt.Sprintf("文件大小不能超过 %dMB", h.uploadLimit>>20))
			return
		}
		upload.Filename = header.Filename
		upload.ContentType = header.Header.Get("Content-Type")
		upload.Size = header.Size
		upload.Body = file
	case errors.Is(err, http.ErrMissingFile):
		// 未上传文件，是否允许由活动配置决定
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return
		}
		response.BadRequest(c, 10001, "请使用 multipart/form-data 上传")
		return
	}

	result, err := h.submissionSvc.Submit(c.Request.Context(), actor, c.Param("id"), upload)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// Grade 评阅提交
// POST /api/v1/submissions/:id/grade
func (h *SubmissionHandler) Grade(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.submissionSvc.Grade(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// ListForAuthor 作者名下活动的全部提交
// GET /api/v1/submissions
func (h *SubmissionHandler) ListForAuthor(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.submissionSvc.ListForAuthor(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// Download 下载提交文件
// GET /api/v1/submissions/:id/file
func (h *SubmissionHandler) Download(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	f, err := h.submissionSvc.OpenFile(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.errs.write(c, err)
		return
	}
	defer f.Body.Close()

	c.DataFromReader(http.StatusOK, f.Size, f.ContentType, f.Body, map[string]string{
		"Content-Disposition": "attachment; filename*=UTF-8''" + url.QueryEscape(f.Name),
	})
}
