package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	principalKey   = "principal"
)

// principalMiddleware resolves the caller forwarded by the auth layer
func principalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
		if err != nil || userID <= 0 {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "missing or invalid "+headerUserID+" header")
			return
		}

		role := models.Role(strings.ToUpper(strings.TrimSpace(c.GetHeader(headerUserRole))))
		switch role {
		case "":
			role = models.RoleCustomer
		case models.RoleCustomer, models.RoleAdmin:
		default:
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "unknown role")
			return
		}

		c.Set(principalKey, models.Principal{UserID: userID, Role: role})
		c.Next()
	}
}

// requireAdmin rejects principals without the ADMIN role
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principalFrom(c).IsAdmin() {
			abortWithError(c, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) models.Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(models.Principal)
	return principal
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
