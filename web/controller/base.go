// Package controller provides the HTTP handlers of the dashboard API:
// authentication, user administration, acquisition status and the
// user-database replication endpoint.
package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web/locale"
)

// currentUser returns the account SessionAuth left on the context, nil on
// unauthenticated routes.
func currentUser(c *gin.Context) *model.User {
	value, exists := c.Get("user")
	if !exists {
		return nil
	}
	user, ok := value.(*model.User)
	if !ok {
		return nil
	}
	return user
}

// I18nWeb retrieves an internationalized message for the web interface based on the current locale.
func I18nWeb(c *gin.Context, name string, params ...string) string {
	anyfunc, funcExists := c.Get("I18n")
	if !funcExists {
		logger.Warning("I18n function not exists in gin context!")
		return ""
	}
	i18nFunc, _ := anyfunc.(func(i18nType locale.I18nType, key string, keyParams ...string) string)
	msg := i18nFunc(locale.Web, name, params...)
	return msg
}
