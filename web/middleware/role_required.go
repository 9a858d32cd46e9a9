package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/web/entity"
	"github.com/vitalink-io/vitalink/web/locale"
)

// RoleRequired allows only the listed roles through. Admins always pass.
// SessionAuth must run earlier on the chain so "role" is set.
func RoleRequired(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(c *gin.Context) {
		roleVal, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{
				Msg: locale.I18n(locale.Web, "api.unauthorized"),
			})
			return
		}
		role, ok := roleVal.(string)
		if !ok || (!allowed[role] && role != string(model.RoleAdmin)) {
			c.AbortWithStatusJSON(http.StatusForbidden, entity.Msg{
				Msg: locale.I18n(locale.Web, "api.forbidden"),
			})
			return
		}
		c.Next()
	}
}
