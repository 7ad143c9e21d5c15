package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver 请求指标采集
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Metrics 按路由模板记录请求数与耗时，避免以原始路径作为标签
func Metrics(obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obs.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
