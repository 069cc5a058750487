package dto

import "time"

// SignupRequest registers a new user.
type SignupRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=5"`
	Role      string `json:"role" validate:"required,oneof=Admin Teacher Student"`
	SignupKey string `json:"signupKey"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RequestResetRequest starts the password reset flow.
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestResetResponse acknowledges a reset request. ResetToken is only
// populated when token exposure is enabled outside production.
type RequestResetResponse struct {
	Message    string     `json:"message"`
	ResetToken string     `json:"resetToken,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=5"`
}
