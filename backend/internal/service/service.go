package service

import (
	"go.uber.org/zap"

	"upms-teamup/backend/config"
	"upms-teamup/backend/internal/repository"
	"upms-teamup/backend/pkg/blob"
	"upms-teamup/backend/pkg/jwt"
	"upms-teamup/backend/pkg/mailer"
	"upms-teamup/backend/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Account    AccountService
	Team       TeamService
	Group      GroupService
	Supervisor SupervisorService
	Title      TitleService
	Activity   ActivityService
	Submission SubmissionService
	Report     ReportService
}

// Deps 外部协作者
// Redis 为 nil 时激活与注销降级为不可用，Clock 为 nil 时取系统时间
type Deps struct {
	JWT      *jwt.Manager
	Redis    *redis.Client
	Blob     blob.Store
	Mailer   mailer.Mailer
	Recorder TransitionRecorder
	Clock    Clock
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	var (
		activation ActivationStore
		blacklist  TokenBlacklist
	)
	if deps.Redis != nil {
		activation = deps.Redis
		blacklist = deps.Redis
	}
	codes := NewGroupCodeGenerator(cfg.Workflow.GroupCodePrefix)

	return &Service{
		Auth:       NewAuthService(cfg, repo, deps.JWT, activation, blacklist, deps.Mailer, deps.Recorder, logger),
		Account:    NewAccountService(repo, logger),
		Team:       NewTeamService(&cfg.Workflow, repo, codes, deps.Recorder, logger),
		Group:      NewGroupService(repo, logger),
		Supervisor: NewSupervisorService(repo, deps.Recorder, logger),
		Title:      NewTitleService(repo, deps.Recorder, logger),
		Activity:   NewActivityService(repo, deps.Recorder, logger),
		Submission: NewSubmissionService(repo, deps.Blob, deps.Clock, deps.Recorder, logger),
		Report:     NewReportService(repo, logger),
	}
}
