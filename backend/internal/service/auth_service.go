package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"upms-teamup/backend/config"
	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	"upms-teamup/backend/pkg/jwt"
	"upms-teamup/backend/pkg/mailer"
	"upms-teamup/backend/pkg/redis"
)

var (
	ErrInvalidCredentials    = errors.New("用户名或密码错误")
	ErrAccountDisabled       = errors.New("账号已停用")
	ErrRefreshTokenInvalid   = errors.New("刷新令牌无效或已过期")
	ErrActivationUnavailable = errors.New("激活服务暂不可用")
	ErrStudentNotInRoster    = errors.New("学号不在名册中")
	ErrStudentEmailMissing   = errors.New("名册中缺少该学生的邮箱")
	ErrAlreadyActivated      = errors.New("该学号已激活")
	ErrResendTooSoon         = errors.New("验证码发送过于频繁，请稍后再试")
	ErrCodeExpired           = errors.New("验证码已过期，请重新获取")
	ErrCodeInvalid           = errors.New("验证码错误")
	ErrTooManyAttempts       = errors.New("验证码错误次数过多，请重新获取")
	ErrCodeNotVerified       = errors.New("请先完成验证码校验")
)

// ActivationStore 激活验证码存储
type ActivationStore interface {
	PutActivation(ctx context.Context, studentID, codeHash string, ttl time.Duration) error
	GetActivation(ctx context.Context, studentID string) (*redis.Activation, error)
	IncrActivationAttempts(ctx context.Context, studentID string) (int, error)
	MarkActivationVerified(ctx context.Context, studentID string) error
	DeleteActivation(ctx context.Context, studentID string) error
	AcquireResendSlot(ctx context.Context, studentID string, cooldown time.Duration) (bool, error)
}

// TokenBlacklist 已注销 Token 黑名单
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证与账号激活业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	Me(ctx context.Context, actor Actor) (*dto.PrincipalResponse, error)

	StartActivation(ctx context.Context, req *dto.ActivationStartRequest) (*dto.ActivationStartResponse, error)
	VerifyActivation(ctx context.Context, req *dto.ActivationVerifyRequest) error
	CompleteActivation(ctx context.Context, req *dto.ActivationCompleteRequest) (*dto.TokenResponse, error)
}

type authService struct {
	cfg        *config.Config
	repo       *repository.Repository
	jwtMgr     *jwt.Manager
	activation ActivationStore
	blacklist  TokenBlacklist
	mail       mailer.Mailer
	recorder   TransitionRecorder
	logger     *zap.Logger
}

// NewAuthService 创建 AuthService 实例
// activation / blacklist 为 nil 时（未配置 Redis）激活与注销不可用
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	activation ActivationStore,
	blacklist TokenBlacklist,
	mail mailer.Mailer,
	recorder TransitionRecorder,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:        cfg,
		repo:       repo,
		jwtMgr:     jwtMgr,
		activation: activation,
		blacklist:  blacklist,
		mail:       mail,
		recorder:   recorderOrNoop(recorder),
		logger:     logger,
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询主体
	p, err := s.repo.Principal.GetByUsername(ctx, req.Username)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !p.IsActive {
		return nil, ErrAccountDisabled
	}

	// 3. 生成 Token 对
	return s.issueTokens(ctx, p)
}

// ────────────────────── Refresh ──────────────────────

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrRefreshTokenInvalid
	}
	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("检查 Token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if revoked {
			return nil, ErrRefreshTokenInvalid
		}
	}

	p, err := s.repo.Principal.GetByID(ctx, claims.UserID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrRefreshTokenInvalid
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrAccountDisabled
	}

	// 旧刷新令牌一次性使用
	if s.blacklist != nil && claims.ExpiresAt != nil {
		if err := s.blacklist.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("注销旧刷新令牌失败", zap.Error(err))
		}
	}
	return s.issueTokens(ctx, p)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Me ──────────────────────

func (s *authService) Me(ctx context.Context, actor Actor) (*dto.PrincipalResponse, error) {
	p, err := s.repo.Principal.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, notFound(err, "principal", actor.ID)
	}
	resp, err := s.principalResponse(ctx, p)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ────────────────────── 账号激活 ──────────────────────

// StartActivation 校验名册并发送 6 位验证码
func (s *authService) StartActivation(ctx context.Context, req *dto.ActivationStartRequest) (*dto.ActivationStartResponse, error) {
	if s.activation == nil {
		return nil, ErrActivationUnavailable
	}

	record, err := s.repo.Student.GetRecord(ctx, req.StudentID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrStudentNotInRoster
		}
		s.logger.Error("查询名册失败", zap.Error(err))
		return nil, err
	}
	if record.Email == "" {
		return nil, ErrStudentEmailMissing
	}
	if activated, err := s.activated(ctx, req.StudentID); err != nil {
		return nil, err
	} else if activated {
		return nil, ErrAlreadyActivated
	}

	ok, err := s.activation.AcquireResendSlot(ctx, req.StudentID, time.Duration(s.cfg.OTP.ResendCooldownSecond)*time.Second)
	if err != nil {
		s.logger.Error("检查验证码冷却失败", zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, ErrResendTooSoon
	}

	code, err := generateOTP()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(s.cfg.OTP.ExpMinutes) * time.Minute
	if err := s.activation.PutActivation(ctx, req.StudentID, string(hash), ttl); err != nil {
		s.logger.Error("保存验证码失败", zap.Error(err))
		return nil, err
	}

	s.sendCode(record, code, ttl)
	return &dto.ActivationStartResponse{
		MaskedEmail: maskEmail(record.Email),
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}

// sendCode 异步投递，失败不影响激活流程
func (s *authService) sendCode(record *model.StudentRecord, code string, ttl time.Duration) {
	if s.mail == nil {
		return
	}
	msg := mailer.ActivationCode(record.Email, record.Name, code, ttl)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mail.Send(ctx, msg); err != nil {
			s.logger.Warn("发送激活验证码失败", zap.String("student_id", record.StudentID), zap.Error(err))
		}
	}()
}

func (s *authService) VerifyActivation(ctx context.Context, req *dto.ActivationVerifyRequest) error {
	if s.activation == nil {
		return ErrActivationUnavailable
	}
	a, err := s.loadActivation(ctx, req.StudentID)
	if err != nil {
		return err
	}
	if a.Attempts >= s.cfg.OTP.MaxAttempts {
		return ErrTooManyAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.CodeHash), []byte(req.Code)); err != nil {
		n, incErr := s.activation.IncrActivationAttempts(ctx, req.StudentID)
		if incErr != nil {
			s.logger.Error("记录验证码错误次数失败", zap.Error(incErr))
			return incErr
		}
		if n >= s.cfg.OTP.MaxAttempts {
			_ = s.activation.DeleteActivation(ctx, req.StudentID)
			return ErrTooManyAttempts
		}
		return ErrCodeInvalid
	}

	if err := s.activation.MarkActivationVerified(ctx, req.StudentID); err != nil {
		s.logger.Error("标记验证码通过失败", zap.Error(err))
		return err
	}
	return nil
}

// CompleteActivation 验证通过后设置密码，创建主体与学生账号并直接登录
func (s *authService) CompleteActivation(ctx context.Context, req *dto.ActivationCompleteRequest) (*dto.TokenResponse, error) {
	if s.activation == nil {
		return nil, ErrActivationUnavailable
	}
	a, err := s.loadActivation(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !a.Verified {
		return nil, ErrCodeNotVerified
	}

	record, err := s.repo.Student.GetRecord(ctx, req.StudentID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrStudentNotInRoster
		}
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	p := &model.Principal{
		Username:     record.StudentID,
		PasswordHash: string(hash),
		Role:         model.RoleStudent,
		IsActive:     true,
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Principal.Create(ctx, p); err != nil {
			return err
		}
		return tx.Student.CreateAccount(ctx, &model.StudentAccount{
			PrincipalID:    p.PrincipalID,
			StudentID:      record.StudentID,
			AvatarInitials: avatarInitials(record.Name),
			AvatarColor:    avatarColor(record.StudentID),
		})
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrAlreadyActivated
		}
		s.logger.Error("创建学生账号失败", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, err
	}

	if err := s.activation.DeleteActivation(ctx, req.StudentID); err != nil {
		s.logger.Warn("清理验证码失败", zap.Error(err))
	}
	s.recorder.Transition(machineAccount, "activated")
	s.logger.Info("学生账号已激活", zap.String("student_id", req.StudentID))
	return s.issueTokens(ctx, p)
}

func (s *authService) loadActivation(ctx context.Context, studentID string) (*redis.Activation, error) {
	a, err := s.activation.GetActivation(ctx, studentID)
	if err != nil {
		if errors.Is(err, redis.ErrActivationMissing) {
			return nil, ErrCodeExpired
		}
		s.logger.Error("读取验证码失败", zap.Error(err))
		return nil, err
	}
	return a, nil
}

// activated 学号是否已有账号或同名主体
func (s *authService) activated(ctx context.Context, studentID string) (bool, error) {
	if _, err := s.repo.Student.GetAccountByStudentID(ctx, studentID); err == nil {
		return true, nil
	} else if !isRecordNotFound(err) {
		return false, err
	}
	if _, err := s.repo.Principal.GetByUsername(ctx, studentID); err == nil {
		return true, nil
	} else if !isRecordNotFound(err) {
		return false, err
	}
	return false, nil
}

// generateOTP 6 位数字验证码
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("生成验证码失败: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ── Token 与主体视图 ──

func (s *authService) issueTokens(ctx context.Context, p *model.Principal) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(p.PrincipalID, string(p.Role))
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(p.PrincipalID, string(p.Role))
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}
	user, err := s.principalResponse(ctx, p)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         user,
	}, nil
}

func (s *authService) principalResponse(ctx context.Context, p *model.Principal) (dto.PrincipalResponse, error) {
	resp := dto.PrincipalResponse{
		ID:       p.PrincipalID,
		Username: p.Username,
		Role:     string(p.Role),
		Name:     p.Username,
	}
	switch p.Role {
	case model.RoleAdmin:
	case model.RoleSupervisor:
		if p.SupervisorProfile != nil && p.SupervisorProfile.Name != "" {
			resp.Name = p.SupervisorProfile.Name
		}
	case model.RoleStudent:
		account, err := s.repo.Student.GetAccountByPrincipal(ctx, p.PrincipalID)
		if err != nil {
			if isRecordNotFound(err) {
				return resp, nil
			}
			s.logger.Error("查询学生账号失败", zap.Error(err))
			return resp, err
		}
		resp.StudentID = account.StudentID
		resp.GroupCode = account.GroupCode
		resp.AvatarInitials = account.AvatarInitials
		resp.AvatarColor = account.AvatarColor
		if account.Record != nil {
			resp.Name = account.Record.Name
		}
	}
	return resp, nil
}
