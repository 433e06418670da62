// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/domain/notification"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
	"gorm.io/gorm"
)

// AccountNotifier receives account emails to send after the change is stored
type AccountNotifier interface {
	NotifyWelcome(userID uint, activationURL string)
	NotifyPasswordReset(userID uint, resetURL string)
}

// Service handles user accounts and authentication
type Service struct {
	db              *gorm.DB
	config          *config.Config
	passwordManager *auth.PasswordManager
	jwtManager      *auth.JWTManager
	notifier        AccountNotifier
	logger          *logrus.Logger
	now             func() time.Time
}

// NewService creates a new user service
func NewService(db *gorm.DB, cfg *config.Config, notifier AccountNotifier, logger *logrus.Logger) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		passwordManager: auth.NewPasswordManager(cfg),
		jwtManager:      auth.NewJWTManager(cfg),
		notifier:        notifier,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required,max=100"`
	LastName        string `json:"last_name" binding:"required,max=100"`
	Phone           string `json:"phone" binding:"max=20"`
	Role            Role   `json:"role" binding:"omitempty,oneof=buyer seller"`
}

// LoginRequest represents user login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents a partial profile update
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=20"`
	Avatar    *string `json:"avatar" binding:"omitempty,max=500"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User *User `json:"user"`
	*auth.TokenPair
}

// Register creates a new user account and queues the activation email
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordConfirmation
	}

	db := s.db.WithContext(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	token, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.config.Security.ActivationTokenTTL)

	role := req.Role
	if role == "" {
		role = RoleBuyer
	}

	user := User{
		Email:               email,
		Password:            hashedPassword,
		FirstName:           strings.TrimSpace(req.FirstName),
		LastName:            strings.TrimSpace(req.LastName),
		Phone:               req.Phone,
		Role:                role,
		IsActive:            true,
		ActivationTokenHash: tokenHash,
		ActivationExpiresAt: &expires,
	}

	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	s.notifier.NotifyWelcome(user.ID, s.config.App.BaseURL+"/api/v1/auth/activate/"+token)

	return s.issueTokens(ctx, &user)
}

// Login authenticates a user by email and password
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(req.Email)), true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.passwordManager.VerifyPassword(req.Password, user.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, &user)
}

// RefreshToken exchanges a refresh token for a new token pair
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.GetActiveUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *Service) issueTokens(ctx context.Context, user *User) (*AuthResponse, error) {
	pair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).
		Update("last_login_at", now).Error; err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to record last login")
	}

	return &AuthResponse{User: user, TokenPair: pair}, nil
}

// GetActiveUser loads an active user by id
func (s *Service) GetActiveUser(ctx context.Context, userID uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile updates the editable profile fields
func (s *Service) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*User, error) {
	user, err := s.GetActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetActiveUser(ctx, userID)
}

// SetAvatar stores the public url of an uploaded avatar
func (s *Service) SetAvatar(ctx context.Context, userID uint, url string) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("avatar", url)
	if res.Error != nil {
		return fmt.Errorf("failed to update avatar: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ChangePassword changes user password after verifying current password
func (s *Service) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	user, err := s.GetActiveUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.passwordManager.VerifyPassword(currentPassword, user.Password); err != nil {
		return ErrIncorrectPassword
	}

	hashedPassword, err := s.passwordManager.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password", hashedPassword).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// Activate marks the account behind an activation token as verified
func (s *Service) Activate(ctx context.Context, token string) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&User{}).
		Where("activation_token_hash = ? AND activation_expires_at > ?", auth.HashOpaqueToken(token), now).
		Updates(map[string]interface{}{
			"email_verified":        true,
			"email_verified_at":     now,
			"activation_token_hash": "",
			"activation_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to activate account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidActivationToken
	}
	return nil
}

// ForgotPassword queues a reset link. Unknown emails are not reported so the
// endpoint cannot be used to probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	var user User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.config.Security.PasswordResetTokenTTL)

	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"reset_token_hash": tokenHash,
		"reset_expires_at": expires,
	}).Error; err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	s.notifier.NotifyPasswordReset(user.ID, s.config.App.BaseURL+"/reset-password?token="+token)
	return nil
}

// ResetPassword sets a new password using a reset token
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hashedPassword, err := s.passwordManager.HashPassword(newPassword)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&User{}).
		Where("reset_token_hash = ? AND reset_expires_at > ? AND is_active = ?", auth.HashOpaqueToken(token), s.now(), true).
		Updates(map[string]interface{}{
			"password":         hashedPassword,
			"reset_token_hash": "",
			"reset_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidResetToken
	}
	return nil
}

// ResolveRecipient provides contact details to the notification dispatcher
func (s *Service) ResolveRecipient(ctx context.Context, userID uint) (notification.Recipient, error) {
	var user User
	err := s.db.WithContext(ctx).Select("id", "email", "first_name", "last_name").
		Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notification.Recipient{}, ErrUserNotFound
		}
		return notification.Recipient{}, fmt.Errorf("failed to load recipient: %w", err)
	}
	return notification.Recipient{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.GetDisplayName(),
	}, nil
}
