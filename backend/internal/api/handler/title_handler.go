package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

// TitleHandler 选题审批 HTTP 处理器
type TitleHandler struct {
	titleSvc service.TitleService
	errs     *errorWriter
}

// NewTitleHandler 创建 TitleHandler
func NewTitleHandler(titleSvc service.TitleService, errs *errorWriter) *TitleHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &TitleHandler{titleSvc: titleSvc, errs: errs}
}

// ── 选题窗口 ──

// GetWindow 当前选题窗口
// GET /api/v1/titles/window
func (h *TitleHandler) GetWindow(c *gin.Context) {
	result, err := h.titleSvc.CurrentWindow(c.Request.Context())
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// SetWindow 开关选题窗口
// PUT /api/v1/titles/window
func (h *TitleHandler) SetWindow(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.SetWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.titleSvc.SetWindow(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// ── 申报 ──

// Submit 小组申报题目
// POST /api/v1/titles/proposals
func (h *TitleHandler) Submit(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.titleSvc.Submit(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.Created(c, result)
}

// GroupTitles 学生端选题页：窗口、当前申报与历史
// GET /api/v1/titles/mine
func (h *TitleHandler) GroupTitles(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.titleSvc.GroupTitles(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// SearchTaken 已占用题目检索
// GET /api/v1/titles/taken?q=
func (h *TitleHandler) SearchTaken(c *gin.Context) {
	var req dto.TitleSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.titleSvc.SearchTaken(c.Request.Context(), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// ── 审批 ──

// ListProposals 管理员审批列表
// GET /api/v1/titles/proposals?status_admin=
func (h *TitleHandler) ListProposals(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ProposalListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.titleSvc.ListProposals(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// ListForSupervisor 导师待审列表
// GET /api/v1/titles/supervised
func (h *TitleHandler) ListForSupervisor(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.titleSvc.ListForSupervisor(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// AdminDecide 管理员初审
// POST /api/v1/titles/proposals/:id/admin-decision
func (h *TitleHandler) AdminDecide(c *gin.Context) {
	h.decide(c, h.titleSvc.AdminDecide)
}

// SupervisorDecide 导师终审
// POST /api/v1/titles/proposals/:id/supervisor-decision
func (h *TitleHandler) SupervisorDecide(c *gin.Context) {
	h.decide(c, h.titleSvc.SupervisorDecide)
}

func (h *TitleHandler) decide(
	c *gin.Context,
	fn func(ctx context.Context, actor service.Actor, proposalID string, req *dto.DecisionRequest) (*dto.ProposalResponse, error),
) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := fn(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}
