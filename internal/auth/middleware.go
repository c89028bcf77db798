package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/response"
)

const (
	HeaderUserID = "X-User-Id"
	QueryUserID  = "uid"
	ContextKey   = "worker"
)

// IdentityMiddleware resolves the worker from the X-User-Id header (or the
// uid query value) and rejects disabled or deleted workers.
func IdentityMiddleware(provider Provider, logger internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader(HeaderUserID)
		if uid == "" {
			uid = c.Query(QueryUserID)
		}
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("missing user id"))
			return
		}

		w, err := provider.Resolve(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, internal.ErrValidation) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized(err.Error()))
				return
			}
			logger.Errorf("[request_id=%s] identity lookup failed: %v", c.GetString("request_id"), err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.InternalError("identity lookup failed"))
			return
		}
		if w.Status != internal.WorkerActive {
			logger.Warnf("[request_id=%s] rejected %s worker %q", c.GetString("request_id"), w.Status, w.UID)
			c.AbortWithStatusJSON(http.StatusForbidden,
				response.Forbidden("account is not active", map[string]any{"status": w.Status}))
			return
		}

		c.Set(ContextKey, w)
		c.Next()
	}
}

// Worker returns the worker resolved by IdentityMiddleware.
func Worker(c *gin.Context) *internal.Worker {
	return c.MustGet(ContextKey).(*internal.Worker)
}
