// Package middleware – bearer-token authentication.
//
// Requests authenticate with an HS256 JWT minted by the identity service.
// The middleware verifies the signature and expiry and stores the subject
// under the "userID" Gin context key, which the handlers, the rate limiter
// key function, and the websocket upgrade all read.
//
// Browsers cannot set custom headers on a websocket handshake, so the token
// is also accepted from the `token` query parameter on upgrade requests.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ctxKeyUserID is the Gin context key the verified subject is stored under.
const ctxKeyUserID = "userID"

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	// Secret is the HS256 signing key. Empty disables verification and the
	// middleware becomes a pass-through (local development only).
	Secret string
}

// Auth returns a Gin middleware that rejects requests without a valid
// bearer token before any store access happens. Tokens must carry the user
// id in the standard `sub` claim.
func Auth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Secret == "" {
			c.Next()
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(opts.Secret), nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "invalid or expired token")
			return
		}
		if claims.Subject == "" {
			unauthorized(c, "token has no subject")
			return
		}

		c.Set(ctxKeyUserID, claims.Subject)
		c.Next()
	}
}

// bearerToken extracts the JWT from the Authorization header or, for
// websocket handshakes, the token query parameter.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return strings.TrimSpace(c.Query("token"))
}

// unauthorized aborts with a 401 envelope matching the handlers package.
func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
