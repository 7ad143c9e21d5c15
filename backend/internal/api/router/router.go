package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"upms-teamup/backend/config"
	"upms-teamup/backend/internal/api/handler"
	"upms-teamup/backend/internal/api/middleware"
	"upms-teamup/backend/pkg/jwt"
	"upms-teamup/backend/pkg/metrics"
	"upms-teamup/backend/pkg/redis"
)

const (
	roleAdmin      = "admin"
	roleSupervisor = "supervisor"
	roleStudent    = "student"
)

// Setup 初始化并返回 Gin 路由引擎
// m 为 nil 时不暴露 /metrics
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	if m != nil {
		r.Use(middleware.Metrics(m))
	}

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if m != nil && cfg.Server.MetricsEnable {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	maxBody := cfg.Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	jsonLimit := middleware.BodyLimit(maxBody)
	importLimit := middleware.BodyLimit(cfg.Server.UploadLimitBytes())
	authLimit := middleware.RateLimit(rdb, 10, time.Minute)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证与激活（无需认证）
		auth := v1.Group("/auth", jsonLimit)
		{
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/activation/start", authLimit, h.Auth.StartActivation)
			auth.POST("/activation/verify", authLimit, h.Auth.VerifyActivation)
			auth.POST("/activation/complete", authLimit, h.Auth.CompleteActivation)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 管理员账号管理
			admin := authorized.Group("/admin", middleware.RoleAuth(roleAdmin))
			{
				admin.GET("/dashboard", h.Report.AdminDashboard)
				admin.POST("/supervisors", jsonLimit, h.Account.CreateSupervisor)
				admin.DELETE("/supervisors/:id", h.Account.DeleteSupervisor)
				admin.GET("/students", h.Account.ListStudents)
				admin.GET("/students/export", h.Report.ExportNotRegistered)
				admin.GET("/accounts", h.Account.ListAccounts)
				admin.POST("/accounts/:id/reset-password", jsonLimit, h.Account.ResetPassword)
				admin.DELETE("/accounts/:id", h.Account.DeleteAccount)
				admin.POST("/import/students", importLimit, h.Account.ImportRoster)
				admin.POST("/import/titles", importLimit, h.Account.ImportTitleArchive)
			}

			// 组队模块
			team := authorized.Group("/team", middleware.RoleAuth(roleStudent))
			{
				team.GET("/candidates", h.Team.ListCandidates)
				team.GET("/requests/inbox", h.Team.ListInbox)
				team.GET("/requests/sent", h.Team.ListSent)
				team.POST("/requests", jsonLimit, h.Team.SendRequest)
				team.POST("/requests/:id/accept", h.Team.AcceptRequest)
				team.POST("/requests/:id/decline", h.Team.DeclineRequest)
			}

			// 小组模块（可见性在 Service 层判断）
			groups := authorized.Group("/groups")
			{
				groups.GET("", middleware.RoleAuth(roleAdmin), h.Group.ListGroups)
				groups.GET("/me", middleware.RoleAuth(roleStudent), h.Group.MyGroup)
				groups.GET("/:code", h.Group.GetGroup)
				groups.POST("/:code/members", middleware.RoleAuth(roleAdmin), jsonLimit, h.Team.AddMember)
				groups.PUT("/:code/supervisor", middleware.RoleAuth(roleAdmin), jsonLimit, h.Supervisor.Assign)
			}

			// 导师模块
			supervisors := authorized.Group("/supervisors")
			{
				supervisors.GET("", middleware.RoleAuth(roleAdmin), h.Supervisor.ListSupervisors)
				supervisors.GET("/me/groups", middleware.RoleAuth(roleSupervisor), h.Supervisor.ListMyGroups)
				supervisors.GET("/me/dashboard", middleware.RoleAuth(roleSupervisor), h.Report.SupervisorDashboard)
			}

			// 选题模块
			titles := authorized.Group("/titles")
			{
				titles.GET("/window", h.Title.GetWindow)
				titles.PUT("/window", middleware.RoleAuth(roleAdmin), jsonLimit, h.Title.SetWindow)
				titles.GET("/taken", h.Title.SearchTaken)
				titles.GET("/mine", middleware.RoleAuth(roleStudent), h.Title.GroupTitles)
				titles.POST("/proposals", middleware.RoleAuth(roleStudent), jsonLimit, h.Title.Submit)
				titles.GET("/proposals", middleware.RoleAuth(roleAdmin), h.Title.ListProposals)
				titles.GET("/supervised", middleware.RoleAuth(roleSupervisor), h.Title.ListForSupervisor)
				titles.POST("/proposals/:id/admin-decision", middleware.RoleAuth(roleAdmin), jsonLimit, h.Title.AdminDecide)
				titles.POST("/proposals/:id/supervisor-decision", middleware.RoleAuth(roleSupervisor), jsonLimit, h.Title.SupervisorDecide)
			}

			// 活动模块
			activities := authorized.Group("/activities")
			{
				author := middleware.RoleAuth(roleAdmin, roleSupervisor)
				activities.GET("/mine", author, h.Activity.ListMine)
				activities.POST("", author, jsonLimit, h.Activity.CreateActivity)
				activities.PUT("/:id", author, jsonLimit, h.Activity.UpdateActivity)
				activities.DELETE("/:id", author, h.Activity.DeleteActivity)
				activities.GET("/group", middleware.RoleAuth(roleStudent), h.Activity.ListForGroup)
				// 上传大小由 SubmissionHandler 单独限制
				activities.POST("/:id/submission", middleware.RoleAuth(roleStudent), h.Submission.Submit)
			}

			// 提交与评阅
			submissions := authorized.Group("/submissions")
			{
				submissions.GET("", middleware.RoleAuth(roleAdmin, roleSupervisor), h.Submission.ListForAuthor)
				submissions.POST("/:id/grade", middleware.RoleAuth(roleAdmin, roleSupervisor), jsonLimit, h.Submission.Grade)
				submissions.GET("/:id/file", h.Submission.Download)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/submissions", middleware.RoleAuth(roleAdmin, roleSupervisor), h.Report.ExportSubmissions)
				export.GET("/calendar", middleware.RoleAuth(roleStudent), h.Report.GroupCalendar)
			}
		}
	}

	return r
}
