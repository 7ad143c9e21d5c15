package handler

import (
	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

// SupervisorHandler 导师分配 HTTP 处理器
type SupervisorHandler struct {
	supervisorSvc service.SupervisorService
	errs          *errorWriter
}

// NewSupervisorHandler 创建 SupervisorHandler
func NewSupervisorHandler(supervisorSvc service.SupervisorService, errs *errorWriter) *SupervisorHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &SupervisorHandler{supervisorSvc: supervisorSvc, errs: errs}
}

// Assign 为小组分配（或更换）导师
// PUT /api/v1/groups/:code/supervisor
func (h *SupervisorHandler) Assign(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.AssignSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.supervisorSvc.Assign(c.Request.Context(), actor, c.Param("code"), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// ListSupervisors 导师列表
// GET /api/v1/supervisors
func (h *SupervisorHandler) ListSupervisors(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.supervisorSvc.ListSupervisors(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// ListMyGroups 导师名下小组
// GET /api/v1/supervisors/me/groups
func (h *SupervisorHandler) ListMyGroups(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.supervisorSvc.ListMyGroups(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}
