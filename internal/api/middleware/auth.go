package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/pkg/jwt"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
)

// AccountIDKey 上下文中账户 ID 的键
const AccountIDKey = "accountID"

var (
	errNoToken      = errors.New("no token provided")
	errHeaderFormat = errors.New("invalid authorization header format")
)

// Auth 校验 Bearer 令牌并把账户 ID 写入上下文
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, err := authenticate(c.GetHeader("Authorization"), jwtSecret)
		if err != nil {
			response.AuthError(c, authMessage(err))
			c.Abort()
			return
		}

		c.Set(AccountIDKey, accountID)
		c.Next()
	}
}

func authenticate(header, secret string) (int64, error) {
	if header == "" {
		return 0, errNoToken
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return 0, errHeaderFormat
	}

	claims, err := jwt.ParseToken(strings.TrimSpace(token), secret)
	if err != nil {
		return 0, err
	}
	if claims.AccountID <= 0 {
		return 0, jwt.ErrInvalidToken
	}
	return claims.AccountID, nil
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, errNoToken):
		return "Access denied. No token provided."
	case errors.Is(err, errHeaderFormat):
		return "Invalid authorization header format"
	case errors.Is(err, jwt.ErrExpiredToken):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

// GetAccountID 从上下文获取账户 ID
func GetAccountID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(AccountIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
