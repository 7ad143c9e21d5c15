package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"upms-teamup/backend/pkg/response"
)

const codeBodyTooLarge = 10005

// BodyLimit 限制 JSON 接口的请求体大小
// 已声明 Content-Length 且超限时直接返回 413；分块上传由 MaxBytesReader 在绑定阶段截断
// 文件上传接口不挂载本中间件，由 SubmissionHandler 按上传上限单独处理
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, codeBodyTooLarge, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
