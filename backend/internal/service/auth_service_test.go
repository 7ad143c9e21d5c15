package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/pkg/jwt"
	"upms-teamup/backend/pkg/mailer"
)

// ── Mock Mailer ──

type captureMailer struct {
	sent chan mailer.Message
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{sent: make(chan mailer.Message, 4)}
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.sent <- msg
	return nil
}

func (m *captureMailer) wait(t *testing.T) mailer.Message {
	t.Helper()
	select {
	case msg := <-m.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("等待验证码邮件超时")
		return mailer.Message{}
	}
}

var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

// ── 辅助 ──

type authFixture struct {
	*fixture
	jwtMgr     *jwt.Manager
	activation *mockActivationStore
	blacklist  *mockBlacklist
	mail       *captureMailer
	svc        AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	f := newFixture(t)
	af := &authFixture{
		fixture:    f,
		jwtMgr:     jwt.NewManager(&f.cfg.Auth),
		activation: newMockActivationStore(),
		blacklist:  newMockBlacklist(),
		mail:       newCaptureMailer(),
	}
	af.svc = NewAuthService(f.cfg, f.repo, af.jwtMgr, af.activation, af.blacklist, af.mail, f.rec, f.logger())
	return af
}

func (af *authFixture) setPassword(principalID, password string) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	af.db.mu.Lock()
	defer af.db.mu.Unlock()
	af.db.principals[principalID].PasswordHash = string(hash)
}

// ── Login ──

func TestAuthService_Login(t *testing.T) {
	af := newAuthFixture(t)
	admin := af.admin()
	af.setPassword(admin.ID, "admin123")
	ctx := context.Background()

	resp, err := af.svc.Login(ctx, &dto.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if resp.User.Role != "admin" || resp.ExpiresIn != int((15 * time.Minute).Seconds()) {
		t.Errorf("登录结果不符合预期: %+v", resp.User)
	}
	claims, err := af.jwtMgr.ParseToken(resp.AccessToken)
	if err != nil || claims.UserID != admin.ID || claims.TokenType != jwt.TokenTypeAccess {
		t.Errorf("AccessToken 内容不符合预期: %+v, %v", claims, err)
	}

	if _, err := af.svc.Login(ctx, &dto.LoginRequest{Username: "admin", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("密码错误，期望 ErrInvalidCredentials，实际: %v", err)
	}
	if _, err := af.svc.Login(ctx, &dto.LoginRequest{Username: "nobody", Password: "x"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("用户不存在，期望 ErrInvalidCredentials，实际: %v", err)
	}

	af.db.principals[admin.ID].IsActive = false
	if _, err := af.svc.Login(ctx, &dto.LoginRequest{Username: "admin", Password: "admin123"}); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("账号停用，期望 ErrAccountDisabled，实际: %v", err)
	}
}

func TestAuthService_Me_Student(t *testing.T) {
	af := newAuthFixture(t)
	student := af.addStudent("S001", "Alice Tan")
	af.makeGroup("G1", "S001")

	me, err := af.svc.Me(context.Background(), student)
	if err != nil {
		t.Fatalf("Me 应成功: %v", err)
	}
	if me.StudentID != "S001" || me.Name != "Alice Tan" || me.GroupCode == nil || *me.GroupCode != "G1" {
		t.Errorf("学生主体信息不符合预期: %+v", me)
	}
}

// ── Refresh / Logout ──

func TestAuthService_RefreshRotates(t *testing.T) {
	af := newAuthFixture(t)
	sup := af.addSupervisor("sup1")
	af.setPassword(sup.ID, "sup123")
	ctx := context.Background()

	login, err := af.svc.Login(ctx, &dto.LoginRequest{Username: "sup1", Password: "sup123"})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if login.User.Name != "Dr. sup1" {
		t.Errorf("导师姓名应取自资料，实际: %s", login.User.Name)
	}

	if _, err := af.svc.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: login.AccessToken}); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Errorf("AccessToken 不能用于刷新，实际: %v", err)
	}

	refreshed, err := af.svc.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("应返回新的 AccessToken")
	}
	if _, err := af.svc.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: login.RefreshToken}); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Errorf("旧刷新令牌应失效，实际: %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	af := newAuthFixture(t)
	ctx := context.Background()

	if err := af.svc.Logout(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	revoked, _ := af.blacklist.IsBlacklisted(ctx, "jti-1")
	if !revoked {
		t.Error("注销后 jti 应在黑名单中")
	}

	// 未配置 Redis 时注销为空操作
	noRedis := NewAuthService(af.cfg, af.repo, af.jwtMgr, nil, nil, nil, nil, af.logger())
	if err := noRedis.Logout(ctx, "jti-2", time.Now().Add(time.Minute)); err != nil {
		t.Errorf("无黑名单时注销应直接成功: %v", err)
	}
	if _, err := noRedis.StartActivation(ctx, &dto.ActivationStartRequest{StudentID: "S001"}); !errors.Is(err, ErrActivationUnavailable) {
		t.Errorf("无 Redis 时激活，期望 ErrActivationUnavailable，实际: %v", err)
	}
}

// ── 账号激活 ──

func TestAuthService_ActivationFlow(t *testing.T) {
	af := newAuthFixture(t)
	af.addRecord("CS001", "Alice Tan", "alice@uni.test")
	ctx := context.Background()

	start, err := af.svc.StartActivation(ctx, &dto.ActivationStartRequest{StudentID: "CS001"})
	if err != nil {
		t.Fatalf("StartActivation 应成功: %v", err)
	}
	if start.MaskedEmail == "alice@uni.test" || start.ExpiresIn != 600 {
		t.Errorf("发送结果不符合预期: %+v", start)
	}

	msg := af.mail.wait(t)
	if msg.To != "alice@uni.test" {
		t.Errorf("收件人应为名册邮箱，实际: %s", msg.To)
	}
	m := otpPattern.FindStringSubmatch(msg.Text)
	if m == nil {
		t.Fatalf("邮件中未找到验证码: %s", msg.Text)
	}
	code := m[1]

	if _, err := af.svc.StartActivation(ctx, &dto.ActivationStartRequest{StudentID: "CS001"}); !errors.Is(err, ErrResendTooSoon) {
		t.Errorf("冷却期内重发，期望 ErrResendTooSoon，实际: %v", err)
	}

	if _, err := af.svc.CompleteActivation(ctx, &dto.ActivationCompleteRequest{StudentID: "CS001", Password: "secret1"}); !errors.Is(err, ErrCodeNotVerified) {
		t.Errorf("未校验验证码，期望 ErrCodeNotVerified，实际: %v", err)
	}
	if err := af.svc.VerifyActivation(ctx, &dto.ActivationVerifyRequest{StudentID: "CS001", Code: code}); err != nil {
		t.Fatalf("VerifyActivation 应成功: %v", err)
	}

	tokens, err := af.svc.CompleteActivation(ctx, &dto.ActivationCompleteRequest{StudentID: "CS001", Password: "secret1"})
	if err != nil {
		t.Fatalf("CompleteActivation 应成功: %v", err)
	}
	if tokens.User.Role != string(model.RoleStudent) || tokens.User.StudentID != "CS001" || tokens.User.AvatarInitials != "AT" {
		t.Errorf("激活后主体信息不符合预期: %+v", tokens.User)
	}
	if af.rec.count(machineAccount, "activated") != 1 {
		t.Error("期望记录 1 次激活")
	}

	if _, err := af.svc.Login(ctx, &dto.LoginRequest{Username: "CS001", Password: "secret1"}); err != nil {
		t.Errorf("激活后应可用学号登录: %v", err)
	}
	if err := af.svc.VerifyActivation(ctx, &dto.ActivationVerifyRequest{StudentID: "CS001", Code: code}); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("验证码应在激活后清除，实际: %v", err)
	}
}

func TestAuthService_StartActivationGuards(t *testing.T) {
	af := newAuthFixture(t)
	af.addRecord("CS002", "No Mail", "")
	af.addStudent("CS003", "Bob")
	ctx := context.Background()

	cases := []struct {
		sid  string
		want error
	}{
		{"CS404", ErrStudentNotInRoster},
		{"CS002", ErrStudentEmailMissing},
		{"CS003", ErrAlreadyActivated},
	}
	for _, tc := range cases {
		if _, err := af.svc.StartActivation(ctx, &dto.ActivationStartRequest{StudentID: tc.sid}); !errors.Is(err, tc.want) {
			t.Errorf("学号 %s 期望 %v，实际: %v", tc.sid, tc.want, err)
		}
	}
}

func TestAuthService_VerifyAttemptsExhausted(t *testing.T) {
	af := newAuthFixture(t)
	af.addRecord("CS001", "Alice", "alice@uni.test")
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	af.activation.PutActivation(ctx, "CS001", string(hash), time.Minute)

	req := &dto.ActivationVerifyRequest{StudentID: "CS001", Code: "000000"}
	for i := 1; i < af.cfg.OTP.MaxAttempts; i++ {
		if err := af.svc.VerifyActivation(ctx, req); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("第 %d 次错误，期望 ErrCodeInvalid，实际: %v", i, err)
		}
	}
	if err := af.svc.VerifyActivation(ctx, req); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("达到上限，期望 ErrTooManyAttempts，实际: %v", err)
	}

	// 验证码已作废，正确的码也不再可用
	req.Code = "123456"
	if err := af.svc.VerifyActivation(ctx, req); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("作废后，期望 ErrCodeExpired，实际: %v", err)
	}
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := generateOTP()
		if err != nil {
			t.Fatalf("generateOTP 应成功: %v", err)
		}
		if !otpPattern.MatchString(code) || len(code) != 6 {
			t.Errorf("验证码应为 6 位数字，实际: %q", code)
		}
	}
}
