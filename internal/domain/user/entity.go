// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role decides which parts of the API a user may call
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User represents the user entity
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Email               string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password            string         `gorm:"not null;size:255" json:"-"`
	FirstName           string         `gorm:"size:100" json:"first_name"`
	LastName            string         `gorm:"size:100" json:"last_name"`
	Phone               string         `gorm:"size:20" json:"phone"`
	Avatar              string         `gorm:"size:500" json:"avatar"`
	Role                Role           `gorm:"size:20;not null;default:'buyer';index" json:"role"`
	IsActive            bool           `gorm:"default:true" json:"is_active"`
	EmailVerified       bool           `gorm:"default:false" json:"email_verified"`
	EmailVerifiedAt     *time.Time     `json:"email_verified_at"`
	ActivationTokenHash string         `gorm:"size:64;index" json:"-"`
	ActivationExpiresAt *time.Time     `json:"-"`
	ResetTokenHash      string         `gorm:"size:64;index" json:"-"`
	ResetExpiresAt      *time.Time     `json:"-"`
	LastLoginAt         *time.Time     `json:"last_login_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeSave normalizes the email and fills the default role
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleBuyer
	}
	return nil
}

// GetFullName returns the user's full name
func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// GetDisplayName returns display name (full name or email)
func (u *User) GetDisplayName() string {
	if fullName := u.GetFullName(); fullName != "" {
		return fullName
	}
	return u.Email
}

// HasRole reports whether the user holds one of roles. Admins pass every check.
func (u *User) HasRole(roles ...Role) bool {
	if u.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
