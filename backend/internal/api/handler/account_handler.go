package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

// AccountHandler 账号管理 HTTP 处理器（管理员）
type AccountHandler struct {
	accountSvc service.AccountService
	errs       *errorWriter
}

// NewAccountHandler 创建 AccountHandler
func NewAccountHandler(accountSvc service.AccountService, errs *errorWriter) *AccountHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &AccountHandler{accountSvc: accountSvc, errs: errs}
}

// CreateSupervisor 创建导师账号
// POST /api/v1/admin/supervisors
func (h *AccountHandler) CreateSupervisor(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.accountSvc.CreateSupervisor(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.Created(c, result)
}

// ListStudents 学生名册（含注册与组队状态）
// GET /api/v1/admin/students?status=&q=&page=&page_size=
func (h *AccountHandler) ListStudents(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.RosterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.accountSvc.ListStudents(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListAccounts 登录账号列表
// GET /api/v1/admin/accounts?role=&q=
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.AccountListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.accountSvc.ListAccounts(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// ImportRoster 导入学生名册（.csv / .xlsx，字段 file）
// POST /api/v1/admin/import/students
func (h *AccountHandler) ImportRoster(c *gin.Context) {
	h.importFile(c, h.accountSvc.ImportRoster)
}

// ImportTitleArchive 导入历史题目库（.csv / .xlsx，字段 file）
// POST /api/v1/admin/import/titles
func (h *AccountHandler) ImportTitleArchive(c *gin.Context) {
	h.importFile(c, h.accountSvc.ImportTitleArchive)
}

func (h *AccountHandler) importFile(
	c *gin.Context,
	run func(ctx context.Context, actor service.Actor, r io.Reader, filename string) (*dto.ImportResult, error),
) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 10001, "请上传 .csv 或 .xlsx 文件")
		return
	}
	defer file.Close()

	result, err := run(c.Request.Context(), actor, file, header.Filename)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// ResetPassword 重置账号密码
// POST /api/v1/admin/accounts/:id/reset-password
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.accountSvc.ResetPassword(c.Request.Context(), actor, c.Param("id"), &req); err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, nil)
}

// DeleteAccount 删除账号
// DELETE /api/v1/admin/accounts/:id
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.accountSvc.DeleteAccount(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, nil)
}

// DeleteSupervisor 删除导师账号与资料
// DELETE /api/v1/admin/supervisors/:id
func (h *AccountHandler) DeleteSupervisor(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.accountSvc.DeleteSupervisor(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, nil)
}
