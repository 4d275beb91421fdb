package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAdminKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"valid key", "admin-secret", "admin-secret", http.StatusOK},
		{"wrong key", "admin-secret", "guess", http.StatusUnauthorized},
		{"missing header", "admin-secret", "", http.StatusUnauthorized},
		{"not configured", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AdminKey(tt.configured))
			router.POST("/admin", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{})
			})

			req := httptest.NewRequest("POST", "/admin", nil)
			if tt.header != "" {
				req.Header.Set(AdminKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
