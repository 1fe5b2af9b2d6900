package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"paper-trader/models"
	"paper-trader/portfolio"
)

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrInvalidCredentials is returned for a bad username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user with the initial cash balance and establishes a
// session, exactly as a successful login would.
func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Password != input.ConfirmPassword {
		fail(c, ErrPasswordMismatch)
		return
	}

	var existing models.User
	err := h.db.Where("username = ?", input.Username).First(&existing).Error
	if err == nil {
		fail(c, ErrUsernameTaken)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, err)
		return
	}

	user := models.User{
		Username:     input.Username,
		PasswordHash: string(hashed),
		Cash:         portfolio.InitialCash,
	}
	if err := h.db.Create(&user).Error; err != nil {
		fail(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"method":         "Register",
		"param_username": input.Username,
	}).Info("registered new user")

	h.issueTokens(c, &user, http.StatusCreated)
}

// Login verifies the credentials and issues tokens. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("username = ?", input.Username).First(&user).Error; err != nil {
		fail(c, ErrInvalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		fail(c, ErrInvalidCredentials)
		return
	}

	h.issueTokens(c, &user, http.StatusOK)
}

// Logout drops the refresh token so it can no longer be redeemed.
func (h *Handler) Logout(c *gin.Context) {
	var input struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.rdb != nil {
		if err := h.rdb.Del(context.Background(), input.RefreshToken).Err(); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) issueTokens(c *gin.Context, user *models.User, status int) {
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(accessTokenTTL).Unix(),
	})
	accessToken, err := access.SignedString(h.jwtSecret)
	if err != nil {
		fail(c, err)
		return
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(refreshTokenTTL).Unix(),
	})
	refreshToken, err := refresh.SignedString(h.jwtSecret)
	if err != nil {
		fail(c, err)
		return
	}

	if h.rdb != nil {
		if err := h.rdb.Set(context.Background(), refreshToken, user.ID, refreshTokenTTL).Err(); err != nil {
			fail(c, err)
			return
		}
	}

	c.JSON(status, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}
