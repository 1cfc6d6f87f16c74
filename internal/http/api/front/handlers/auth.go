package handlers

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
)

// AuthHandler registers and signs in players.
type AuthHandler struct {
	db     *gorm.DB
	secret string
	expiry time.Duration
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, secret string, expiry time.Duration) *AuthHandler {
	return &AuthHandler{db: db, secret: secret, expiry: expiry}
}

type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// Signup creates a player account and returns a token for it.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body signupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid request body"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	username := strings.TrimSpace(body.Username)
	if email == "" || username == "" || body.Password == "" {
		respond.Fail(c, respond.BadRequest("Email, username and password are required"))
		return
	}
	if _, errAddr := mail.ParseAddress(email); errAddr != nil {
		respond.Fail(c, respond.BadRequest("Invalid email address"))
		return
	}
	if n := len(username); n < minUsernameLength || n > maxUsernameLength {
		respond.Fail(c, respond.BadRequest("Username must be between 3 and 32 characters"))
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errors.Is(errHash, security.ErrPasswordTooShort) {
		respond.Fail(c, respond.BadRequest("Password must be at least 8 characters"))
		return
	}
	if errHash != nil {
		respond.Fail(c, respond.Internal(errHash))
		return
	}

	ctx := c.Request.Context()
	var taken int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).Count(&taken).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	if taken > 0 {
		respond.Fail(c, respond.Conflict("Email or username already in use"))
		return
	}

	user := models.User{Email: email, Username: username, PasswordHash: hash}
	if errCreate := h.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		respond.Fail(c, respond.Internal(errCreate))
		return
	}
	token, errToken := security.IssueUserToken(h.secret, user.ID, user.IsAdmin, h.expiry)
	if errToken != nil {
		respond.Fail(c, respond.Internal(errToken))
		return
	}
	log.WithField("user_id", user.ID).Info("auth: player registered")
	respond.Created(c, authResponse{Token: token, User: ProfileOf(user)})
}

// Login exchanges email and password for a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid request body"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		respond.Fail(c, respond.BadRequest("Email and password are required"))
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respond.Fail(c, respond.Unauthorized("Invalid email or password"))
			return
		}
		respond.Fail(c, respond.Internal(errFind))
		return
	}
	if !security.CheckPassword(user.PasswordHash, body.Password) {
		respond.Fail(c, respond.Unauthorized("Invalid email or password"))
		return
	}
	token, errToken := security.IssueUserToken(h.secret, user.ID, user.IsAdmin, h.expiry)
	if errToken != nil {
		respond.Fail(c, respond.Internal(errToken))
		return
	}
	respond.OK(c, authResponse{Token: token, User: ProfileOf(user)})
}
