package handlers

import (
	"net/http"
	"strconv"

	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminKeyHeader = "X-Admin-Key"
	adminIDHeader  = "X-Admin-ID"
	authUserHeader = "X-Auth-User"
	clientCtxKey   = "client"
)

// AdminKey accepts requests whose X-Admin-Key matches the configured bcrypt
// hash. An optional X-Admin-ID is recorded as the actor on activity logs.
func AdminKey(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(adminKeyHeader)
		if keyHash == "" || key == "" ||
			bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if id, err := strconv.ParseUint(c.GetHeader(adminIDHeader), 10, 64); err == nil && id > 0 {
			c.Request = c.Request.WithContext(services.WithActor(c.Request.Context(), uint(id)))
		}
		c.Next()
	}
}

// ClientAuth resolves the X-Auth-User identity set by the upstream identity
// proxy. Unknown, slow or failing lookups are all rejected the same way.
func ClientAuth(users services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := users.ResolveClient(c.Request.Context(), c.GetHeader(authUserHeader))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(clientCtxKey, client)
		c.Next()
	}
}
