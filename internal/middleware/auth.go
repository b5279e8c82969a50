package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/flicky/phone-marketplace/internal/model"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
	ctxUserName = "userName"
)

type identity struct {
	id   uuid.UUID
	role string
	name string
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "not_authenticated"})
			return
		}

		id, msg := parseToken(header[7:], secret)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "not_authenticated"})
			return
		}
		id.store(c)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			if id, msg := parseToken(header[7:], secret); msg == "" {
				id.store(c)
			}
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only", "code": "forbidden"})
			return
		}
		c.Next()
	}
}

func parseToken(raw, secret string) (identity, string) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return identity{}, "invalid token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return identity{}, "invalid claims"
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return identity{}, "invalid user id"
	}

	role, _ := claims["role"].(string)
	name, _ := claims["name"].(string)
	return identity{id: userID, role: role, name: name}, ""
}

func (i identity) store(c *gin.Context) {
	c.Set(ctxUserID, i.id)
	c.Set(ctxUserRole, i.role)
	c.Set(ctxUserName, i.name)
}

func GetUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ctxUserID)
	uid, _ := id.(uuid.UUID)
	return uid
}

// LookupUserID reports the caller's id, if any.
func LookupUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	uid, ok := id.(uuid.UUID)
	return uid, ok
}

func GetUserRole(c *gin.Context) string {
	role, _ := c.Get(ctxUserRole)
	r, _ := role.(string)
	return r
}

func GetUserName(c *gin.Context) string {
	name, _ := c.Get(ctxUserName)
	n, _ := name.(string)
	return n
}
