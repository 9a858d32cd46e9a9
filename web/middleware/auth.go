package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/web/entity"
	"github.com/vitalink-io/vitalink/web/locale"
	"github.com/vitalink-io/vitalink/web/service"
)

// SessionAuth validates the bearer token on protected routes and leaves
// the authenticated account in the gin context under "user" and "role".
func SessionAuth(userService *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{
				Msg: locale.I18n(locale.Web, "api.unauthorized"),
			})
			return
		}

		user, err := userService.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{
				Msg: locale.I18n(locale.Web, "api.sessionExpired"),
			})
			return
		}

		c.Set("user", user)
		c.Set("role", user.Role)
		c.Next()
	}
}
