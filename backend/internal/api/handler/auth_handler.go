package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/service"
	"upms-teamup/backend/pkg/response"
)

const (
	refreshCookie     = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// AuthHandler 认证与账号激活 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	errs    *errorWriter
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, errs *errorWriter) *AuthHandler {
	if errs == nil {
		errs = newErrorWriter(nil)
	}
	return &AuthHandler{authSvc: authSvc, errs: errs}
}

// Login 登录（学生使用学号）
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// RefreshToken 刷新 Token，请求体缺省时读取 Cookie
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		token, cerr := c.Cookie(refreshCookie)
		if cerr != nil || token == "" {
			response.BadRequest(c, 10001, "缺少 refresh_token")
			return
		}
		req.RefreshToken = token
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// Logout 注销当前 Access Token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp, ok := MustGetToken(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		h.errs.write(c, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, "", -1, refreshCookiePath, "", false, true)
	response.OK(c, nil)
}

// GetCurrentUser 当前登录主体
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.authSvc.Me(c.Request.Context(), actor)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// ── 账号激活 ──

// StartActivation 发送激活验证码到名册邮箱
// POST /api/v1/auth/activation/start
func (h *AuthHandler) StartActivation(c *gin.Context) {
	var req dto.ActivationStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.StartActivation(c.Request.Context(), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, result)
}

// VerifyActivation 校验验证码
// POST /api/v1/auth/activation/verify
func (h *AuthHandler) VerifyActivation(c *gin.Context) {
	var req dto.ActivationVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.authSvc.VerifyActivation(c.Request.Context(), &req); err != nil {
		h.errs.write(c, err)
		return
	}

	response.OK(c, gin.H{"verified": true})
}

// CompleteActivation 设置密码并创建学生账号
// POST /api/v1/auth/activation/complete
func (h *AuthHandler) CompleteActivation(c *gin.Context) {
	var req dto.ActivationCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.CompleteActivation(c.Request.Context(), &req)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	setRefreshCookie(c, result.RefreshToken)
	response.Created(c, result)
}

func setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, token, 0, refreshCookiePath, "", false, true)
}
