package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

// Gate 能力判定
type Gate interface {
	Authorize(accountID int64, c model.Capability) error
	Refund(accountID int64, c model.Capability) error
}

// Entitle 能力检查中间件；计量能力先原子计入用量，handler 返回错误状态时退还
func Entitle(gate Gate, capability model.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := GetAccountID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		if err := gate.Authorize(accountID, capability); err != nil {
			switch {
			case errors.Is(err, service.ErrQuotaExceeded):
				response.ErrorWithData(c, response.CodeQuotaExceeded, err.Error(), gin.H{"capability": capability})
			case errors.Is(err, service.ErrNotEntitled):
				response.ErrorWithData(c, response.CodePermissionDenied, err.Error(), gin.H{"capability": capability})
			default:
				log.Printf("[entitle] account %d capability %s: %v", accountID, capability, err)
				response.ServerError(c, "")
			}
			c.Abort()
			return
		}

		c.Next()

		if capability.Metered() && c.Writer.Status() >= http.StatusBadRequest {
			if err := gate.Refund(accountID, capability); err != nil {
				log.Printf("[entitle] refund account %d capability %s failed: %v", accountID, capability, err)
			}
		}
	}
}
