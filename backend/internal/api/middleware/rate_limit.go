package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"upms-teamup/backend/pkg/redis"
	"upms-teamup/backend/pkg/response"
)

const codeTooManyRequests = 10004

// RateLimit 按客户端 IP 与路由模板计数的滑动窗口限流
// 用于登录与账号激活等可被暴力尝试的接口
// rdb 为 nil 或 Redis 出错时放行，与 JWTAuth 的降级策略一致
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), "rate_limit:"+route+":"+c.ClientIP(), limit, window)
		if err != nil || allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", retryAfter)
		response.Error(c, http.StatusTooManyRequests, codeTooManyRequests, "请求过于频繁，请稍后再试")
		c.Abort()
	}
}
