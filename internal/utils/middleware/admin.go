package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/flox/server/internal/shared/response"
	apperrors "github.com/flox/server/internal/utils/errors"
)

// AdminTokenHeader carries the shared secret for administrative endpoints.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken guards a route group with a static token.
// An empty token disables the group entirely.
func AdminToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			response.Error(c, apperrors.Forbidden("admin endpoints are disabled"))
			return
		}
		got := []byte(c.GetHeader(AdminTokenHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			response.Error(c, apperrors.Unauthorized("invalid admin token"))
			return
		}
		c.Next()
	}
}
