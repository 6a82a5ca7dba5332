package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Token subject types
const (
	RoleAdmin   = "admin"
	RolePartner = "partner"
)

const subjectKey = "auth.subject"

// Claims are the JWT claims the API accepts. Subject carries the admin or
// agent id.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// RequireRole rejects requests without a valid HS256 bearer token of the
// given type. Browsers cannot set headers on websocket upgrades, so the token
// may also arrive as the token query parameter.
func RequireRole(secret, role string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Type != role || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Query("token")
}

// subjectID returns the authenticated subject as a numeric id
func subjectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetString(subjectKey), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
