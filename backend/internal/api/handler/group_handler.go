package handler

import (
	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

// GroupHandler 小组查询 HTTP 处理器
type GroupHandler struct {
	groupSvc service.GroupService
	errs     *errorWriter
}

// NewGroupHandler 创建 GroupHandler
func NewGroupHandler(groupSvc service.GroupService, errs *errorWriter) *GroupHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &GroupHandler{groupSvc: groupSvc, errs: errs}
}

// MyGroup 学生所在小组
// GET /api/v1/groups/me
func (h *GroupHandler) MyGroup(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.groupSvc.MyGroup(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// GetGroup 小组详情（管理员 / 指导导师 / 组员）
// GET /api/v1/groups/:code
func (h *GroupHandler) GetGroup(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.groupSvc.Get(c.Request.Context(), actor, c.Param("code"))
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// ListGroups 小组分页列表
// GET /api/v1/groups?page=&page_size=
func (h *GroupHandler) ListGroups(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.GroupListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.groupSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
