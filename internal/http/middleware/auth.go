// Package middleware holds the gin middleware shared by the public and admin routes.
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/security"
	"gorm.io/gorm"
)

// Context keys set by Authenticate.
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "userID"
)

// Client-facing authentication messages.
const (
	MsgNoToken       = "No token provided"
	MsgInvalidToken  = "Invalid token"
	MsgAdminRequired = "Admin access required"
)

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate requires a valid player token and loads the player row.
func Authenticate(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			respond.Fail(c, respond.Unauthorized(MsgNoToken))
			return
		}
		user, errLoad := loadUser(c, db, secret, token)
		if errLoad != nil {
			respond.Fail(c, errLoad)
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth loads the player when a valid token is present and lets anonymous
// requests through. A present but invalid token is rejected.
func OptionalAuth(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		user, errLoad := loadUser(c, db, secret, token)
		if errLoad != nil {
			respond.Fail(c, errLoad)
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// RequireAdmin rejects players without the admin flag. It must run after
// Authenticate, which reads the flag from the database rather than the token.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			respond.Fail(c, respond.Unauthorized(MsgNoToken))
			return
		}
		if !user.IsAdmin {
			respond.Fail(c, respond.Forbidden(MsgAdminRequired))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the player loaded by Authenticate or OptionalAuth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// CurrentUserID returns the authenticated player id, or 0.
func CurrentUserID(c *gin.Context) uint64 {
	return c.GetUint64(ContextUserIDKey)
}

func loadUser(c *gin.Context, db *gorm.DB, secret, token string) (models.User, error) {
	claims, errParse := security.ParseUserToken(secret, token)
	if errParse != nil {
		return models.User{}, respond.Unauthorized(MsgInvalidToken)
	}
	var user models.User
	if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.User{}, respond.Unauthorized(MsgInvalidToken)
		}
		return models.User{}, respond.Internal(errFind)
	}
	return user, nil
}

func setUser(c *gin.Context, user models.User) {
	c.Set(ContextUserKey, user)
	c.Set(ContextUserIDKey, user.ID)
}
