package middleware

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"laivdata.app/agentdesk/common/logger"
)

type contextKey string

const (
	SessionHeader = "X-Session-Id"
	RequestHeader = "X-Request-Id"

	sessionIDContextKey contextKey = "session_id"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// Session identifies the client session a request belongs to, from the
// X-Session-Id header or the session_id query parameter. A missing or
// malformed id gets a fresh one, echoed back so the client can keep
// it. The session and request ids are added to the log fields.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		if sessionID == "" {
			// EventSource cannot set headers.
			sessionID = c.Query("session_id")
		}
		if !validID.MatchString(sessionID) {
			sessionID = uuid.NewString()
		}
		requestID := c.GetHeader(RequestHeader)
		if !validID.MatchString(requestID) {
			requestID = uuid.NewString()
		}
		c.Header(SessionHeader, sessionID)
		c.Header(RequestHeader, requestID)

		ctx := context.WithValue(c.Request.Context(), sessionIDContextKey, sessionID)
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			SessionID: logger.Ptr(sessionID),
			RequestID: logger.Ptr(requestID),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDContextKey).(string)
	return sessionID
}
