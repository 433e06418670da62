package user

import "errors"

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailTaken             = errors.New("user with this email already exists")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrPasswordConfirmation   = errors.New("passwords do not match")
	ErrIncorrectPassword      = errors.New("current password is incorrect")
	ErrInvalidActivationToken = errors.New("activation link is invalid or has expired")
	ErrInvalidResetToken      = errors.New("reset link is invalid or has expired")
	ErrInvalidRole            = errors.New("invalid role")
	ErrCannotModifySelf       = errors.New("admins cannot change their own role or status")
)
