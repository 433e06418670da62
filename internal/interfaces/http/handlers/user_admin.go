// internal/interfaces/http/handlers/user_admin.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/user"
)

// UserAdminHandler handles admin user management endpoints
type UserAdminHandler struct {
	adminService *user.AdminService
	logger       *logrus.Logger
}

// NewUserAdminHandler creates a new admin user handler
func NewUserAdminHandler(adminService *user.AdminService, logger *logrus.Logger) *UserAdminHandler {
	return &UserAdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

type updateRoleRequest struct {
	Role user.Role `json:"role" binding:"required,oneof=buyer seller admin"`
}

type updateStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// GetUsers handles GET /admin/users
func (h *UserAdminHandler) GetUsers(c *gin.Context) {
	var req user.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.adminService.GetUsers(c.Request.Context(), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Users retrieved successfully", response)
}

// UpdateRole handles PUT /admin/users/:id/role
func (h *UserAdminHandler) UpdateRole(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	u, err := h.adminService.UpdateRole(c.Request.Context(), adminID, userID, req.Role)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "User role updated successfully", u)
}

// UpdateStatus handles PUT /admin/users/:id/status
func (h *UserAdminHandler) UpdateStatus(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	u, err := h.adminService.UpdateStatus(c.Request.Context(), adminID, userID, *req.IsActive)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	message := "User deactivated successfully"
	if u.IsActive {
		message = "User activated successfully"
	}
	respond(c, http.StatusOK, message, u)
}
