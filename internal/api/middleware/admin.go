package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/pkg/response"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey 运营接口鉴权，未配置密钥时全部拒绝
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(AdminKeyHeader)
		if key == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			response.AuthError(c, "Invalid admin key")
			c.Abort()
			return
		}
		c.Next()
	}
}
