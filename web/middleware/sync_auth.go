package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/dbsync"
	"github.com/vitalink-io/vitalink/web/entity"
)

// SyncTokenAuth guards the replication endpoint with the shared sync
// token. It rejects before any handler touches the request body, so an
// unauthenticated push never reaches the decoder.
func SyncTokenAuth(auth dbsync.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.Authenticate(c.Request) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{
				Msg: "invalid sync token",
			})
			return
		}
		c.Next()
	}
}
