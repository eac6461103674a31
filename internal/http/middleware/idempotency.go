package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets a client retry a message post without posting
// (and paying for) it twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set to "true" on replayed responses.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // string: message id of the earlier post
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures header validation. Zero values use a 200
// byte limit and a token-character pattern.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
}

// IdempotencyLookup returns the id of the message an earlier request with
// (userID, chatID, key) produced, or "" when there is no live record.
// Expiry is the lookup's concern.
type IdempotencyLookup func(ctx context.Context, userID, chatID, key string, now time.Time) (messageID string, err error)

// Idempotency validates Idempotency-Key and, when a live record exists,
// marks the request as a replay of that message. Handlers serve replays
// from storage (see ReplayOf) and the rate limiter skips them.
//
// A missing header is a no-op. A malformed one is rejected with 400.
// Lookup failures are ignored: the request proceeds as a first attempt.
func Idempotency(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid "+HeaderIdempotencyKey)
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			id, err := lookup(c.Request.Context(), UserID(c), c.Param("id"), key, time.Now().UTC())
			if err == nil && id != "" {
				c.Set(ctxKeyIdemReplay, id)
			}
		}
		c.Next()
	}
}

// IdempotencyKey returns the validated key, if any.
func IdempotencyKey(c *gin.Context) (string, bool) {
	s := asString(c.Value(ctxKeyIdemKey))
	return s, s != ""
}

// ReplayOf returns the message id to replay, or "" for a first attempt.
func ReplayOf(c *gin.Context) string {
	return asString(c.Value(ctxKeyIdemReplay))
}

// IsReplay reports whether ReplayOf is set.
func IsReplay(c *gin.Context) bool { return ReplayOf(c) != "" }
