// internal/interfaces/http/handlers/user_profile.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/user"
)

// UserProfileHandler serves the authenticated user's own profile
type UserProfileHandler struct {
	userService *user.Service
	logger      *logrus.Logger
}

// NewUserProfileHandler creates a new profile handler
func NewUserProfileHandler(userService *user.Service, logger *logrus.Logger) *UserProfileHandler {
	return &UserProfileHandler{
		userService: userService,
		logger:      logger,
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// GetProfile handles GET /users/me
func (h *UserProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	u, err := h.userService.GetActiveUser(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Profile retrieved successfully", u)
}

// UpdateProfile handles PUT /users/me
func (h *UserProfileHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	u, err := h.userService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully", u)
}

// ChangePassword handles PUT /users/me/password
func (h *UserProfileHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Password changed successfully", nil)
}
