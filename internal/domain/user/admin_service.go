// internal/domain/user/admin_service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/pkg/pagination"
	"gorm.io/gorm"
)

// AdminService handles admin user management operations
type AdminService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewAdminService creates a new admin user service
func NewAdminService(db *gorm.DB, logger *logrus.Logger) *AdminService {
	return &AdminService{db: db, logger: logger}
}

// UserListRequest represents user list query parameters
type UserListRequest struct {
	pagination.Params
	Search string `form:"search"`
	Status string `form:"status"` // active, inactive, all
	Role   string `form:"role"`
}

// UserListResponse represents user list with pagination
type UserListResponse struct {
	Users      []User          `json:"users"`
	Pagination pagination.Meta `json:"pagination"`
}

// GetUsers retrieves users with filtering and pagination
func (s *AdminService) GetUsers(ctx context.Context, req *UserListRequest) (*UserListResponse, error) {
	params := req.Params.Normalize(20, 100)
	query := s.db.WithContext(ctx).Model(&User{})

	if req.Search != "" {
		term := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", term, term, term)
	}

	switch req.Status {
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	}

	if req.Role != "" && req.Role != "all" {
		query = query.Where("role = ?", req.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	var users []User
	if err := query.Order("created_at DESC").Offset(params.Offset()).Limit(params.Limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return &UserListResponse{Users: users, Pagination: pagination.NewMeta(params, total)}, nil
}

// UpdateRole changes the role of another user
func (s *AdminService) UpdateRole(ctx context.Context, adminID, userID uint, role Role) (*User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if adminID == userID {
		return nil, ErrCannotModifySelf
	}

	user, err := s.update(ctx, userID, "role", role)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"admin_id": adminID, "user_id": userID, "role": role}).Info("User role changed")
	return user, nil
}

// UpdateStatus activates or deactivates another user
func (s *AdminService) UpdateStatus(ctx context.Context, adminID, userID uint, active bool) (*User, error) {
	if adminID == userID {
		return nil, ErrCannotModifySelf
	}

	user, err := s.update(ctx, userID, "is_active", active)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"admin_id": adminID, "user_id": userID, "active": active}).Info("User status changed")
	return user, nil
}

func (s *AdminService) update(ctx context.Context, userID uint, column string, value interface{}) (*User, error) {
	db := s.db.WithContext(ctx)

	var user User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := db.Model(&user).Update(column, value).Error; err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", column, err)
	}
	return &user, nil
}
