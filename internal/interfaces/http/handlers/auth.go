// internal/interfaces/http/handlers/auth.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/user"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	userService *user.Service
	logger      *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *user.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, "User registered successfully", response)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "Login successful", response)
}

// RefreshToken handles POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if errors.Is(err, user.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
		return
	}
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "Token refreshed successfully", response)
}

// Activate handles GET /auth/activate/:token
func (h *AuthHandler) Activate(c *gin.Context) {
	if err := h.userService.Activate(c.Request.Context(), c.Param("token")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Account activated successfully", nil)
}

// ForgotPassword handles POST /auth/forgot-password. The answer is the same
// whether or not the email belongs to an account.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.userService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "If the email exists, a reset link has been sent", nil)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Password reset successfully", nil)
}
