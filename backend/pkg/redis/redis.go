package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"upms-teamup/backend/config"
)

// ErrActivationMissing 激活记录不存在或已过期
var ErrActivationMissing = errors.New("激活记录不存在或已过期")

// Client Redis 客户端封装
// 用于 Token 黑名单、账号激活验证码与接口限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromGoRedis 包装已有连接（测试用）
func NewFromGoRedis(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 账号激活 ──

const (
	activationPrefix = "activation:"
	cooldownPrefix   = "activation:cooldown:"
)

// Activation 激活验证码记录
type Activation struct {
	CodeHash string
	Attempts int
	Verified bool
}

// PutActivation 写入新的验证码，覆盖旧记录并重置尝试次数
func (c *Client) PutActivation(ctx context.Context, studentID, codeHash string, ttl time.Duration) error {
	key := activationPrefix + studentID
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code_hash", codeHash, "attempts", 0, "verified", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// GetActivation 读取验证码记录
func (c *Client) GetActivation(ctx context.Context, studentID string) (*Activation, error) {
	vals, err := c.rdb.HGetAll(ctx, activationPrefix+studentID).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrActivationMissing
	}
	attempts, _ := strconv.Atoi(vals["attempts"])
	return &Activation{
		CodeHash: vals["code_hash"],
		Attempts: attempts,
		Verified: vals["verified"] == "1",
	}, nil
}

// IncrActivationAttempts 错误次数 +1，返回累计次数
func (c *Client) IncrActivationAttempts(ctx context.Context, studentID string) (int, error) {
	n, err := c.rdb.HIncrBy(ctx, activationPrefix+studentID, "attempts", 1).Result()
	return int(n), err
}

// MarkActivationVerified 标记验证码已通过
func (c *Client) MarkActivationVerified(ctx context.Context, studentID string) error {
	return c.rdb.HSet(ctx, activationPrefix+studentID, "verified", 1).Err()
}

// DeleteActivation 删除验证码记录
func (c *Client) DeleteActivation(ctx context.Context, studentID string) error {
	return c.rdb.Del(ctx, activationPrefix+studentID).Err()
}

// AcquireResendSlot 重发冷却，冷却期内返回 false
func (c *Client) AcquireResendSlot(ctx context.Context, studentID string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	return c.rdb.SetNX(ctx, cooldownPrefix+studentID, "1", cooldown).Result()
}

// ── 限流 ──

// CheckRateLimit 基于 ZSET 的滑动窗口计数
// 返回 true 表示允许本次请求
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)
	windowStart := now.Add(-window).UnixNano()

	var card *goredis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return card.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
