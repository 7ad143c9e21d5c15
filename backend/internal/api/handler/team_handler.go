package handler

import (
	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

// TeamHandler 组队模块 HTTP 处理器
type TeamHandler struct {
	teamSvc service.TeamService
	errs    *errorWriter
}

// NewTeamHandler 创建 TeamHandler
func NewTeamHandler(teamSvc service.TeamService, errs *errorWriter) *TeamHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &TeamHandler{teamSvc: teamSvc, errs: errs}
}

// SendRequest 向同学发送组队请求
// POST /api/v1/team/requests
func (h *TeamHandler) SendRequest(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.SendTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.teamSvc.SendRequest(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.Created(c, result)
}

// AcceptRequest 接受组队请求并成组
// POST /api/v1/team/requests/:id/accept
func (h *TeamHandler) AcceptRequest(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.teamSvc.AcceptRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// DeclineRequest 拒绝组队请求
// POST /api/v1/team/requests/:id/decline
func (h *TeamHandler) DeclineRequest(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.teamSvc.DeclineRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// ListInbox 收到的待处理请求
// GET /api/v1/team/requests/inbox
func (h *TeamHandler) ListInbox(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.teamSvc.ListInbox(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// ListSent 已发出的请求
// GET /api/v1/team/requests/sent
func (h *TeamHandler) ListSent(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.teamSvc.ListSent(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// ListCandidates 可邀请的未组队同学
// GET /api/v1/team/candidates?q=
func (h *TeamHandler) ListCandidates(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CandidateListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.teamSvc.ListCandidates(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// AddMember 管理员直接加入成员
// POST /api/v1/groups/:code/members
func (h *TeamHandler) AddMember(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.teamSvc.AddMember(c.Request.Context(), actor, c.Param("code"), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}
