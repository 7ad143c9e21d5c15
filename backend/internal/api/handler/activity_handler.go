package handler

import (
	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

// ActivityHandler 活动管理 HTTP 处理器
type ActivityHandler struct {
	activitySvc service.ActivityService
	errs        *errorWriter
}

// NewActivityHandler 创建 ActivityHandler
func NewActivityHandler(activitySvc service.ActivityService, errs *errorWriter) *ActivityHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &ActivityHandler{activitySvc: activitySvc, errs: errs}
}

// CreateActivity 发布活动
// POST /api/v1/activities
func (h *ActivityHandler) CreateActivity(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.activitySvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateActivity 修改活动（仅作者）
// PUT /api/v1/activities/:id
func (h *ActivityHandler) UpdateActivity(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.activitySvc.Update(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteActivity 删除活动，提交随之级联删除
// DELETE /api/v1/activities/:id
func (h *ActivityHandler) DeleteActivity(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.activitySvc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, nil)
}

// ListMine 作者名下活动
// GET /api/v1/activities/mine
func (h *ActivityHandler) ListMine(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.activitySvc.ListMine(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}

// ListForGroup 学生所在小组可见的活动及提交情况
// GET /api/v1/activities/group
func (h *ActivityHandler) ListForGroup(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.activitySvc.ListForGroup(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKList(c, list)
}
