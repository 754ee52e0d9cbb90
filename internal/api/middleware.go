package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID assigns a uuid v4 to every request, echoing a client-supplied
// one if present, and exposes it via both the response header and the gin
// context (for handlers and access logging).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// ClientAuth enforces OPENBRIDGE_CLIENT_API_KEY via an Authorization:
// Bearer header or an X-Api-Key header, matching
// original_source/openbridge/api/routes.py::_require_client_auth. An
// empty apiKey disables client auth entirely, matching the original's
// optional-auth default.
func ClientAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if presented, ok := clientKeyFrom(c.Request); ok && presented == apiKey {
			c.Next()
			return
		}
		writeError(c, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
		c.Abort()
	}
}

func clientKeyFrom(r *http.Request) (string, bool) {
	if h := r.Header.Get("X-Api-Key"); h != "" {
		return h, true
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), true
	}
	return "", false
}
