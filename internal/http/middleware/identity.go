package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the caller identity set by the fronting gateway.
const HeaderUserID = "X-User-ID"

const ctxKeyUserID = "userID"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@:\-]{1,64}$`)

// Identity resolves the caller from X-User-ID and stores it under "userID".
// Requests without a usable identity are rejected with 401. The reserved
// ids (assistant and system accounts) cannot be claimed by callers.
func Identity(reserved ...string) gin.HandlerFunc {
	deny := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		if r = strings.TrimSpace(r); r != "" {
			deny[r] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" || !userIDPattern.MatchString(uid) {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing or invalid "+HeaderUserID)
			return
		}
		if _, bad := deny[uid]; bad {
			abortJSON(c, http.StatusForbidden, "forbidden", "reserved user id")
			return
		}
		c.Set(ctxKeyUserID, uid)
		c.Next()
	}
}

// UserID returns the identity stored by Identity, or "" when absent.
func UserID(c *gin.Context) string {
	return asString(c.Value(ctxKeyUserID))
}

// abortJSON writes the shared error envelope from inside middleware.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
