package httpapi

import "github.com/dmitrijs2005/sessionkeeper/internal/server/models"

type LoginRequest struct {
	Username          string                   `json:"username"`
	Password          string                   `json:"password"`
	DeviceFingerprint models.DeviceFingerprint `json:"deviceFingerprint,omitempty"`
}

type UserView struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
}

type LoginResponse struct {
	Success     bool     `json:"success"`
	AccessToken string   `json:"accessToken"`
	User        UserView `json:"user"`
}

// RefreshRequest is optional: the cookie takes precedence over RefreshToken.
type RefreshRequest struct {
	RefreshToken      string                   `json:"refreshToken,omitempty"`
	DeviceFingerprint models.DeviceFingerprint `json:"deviceFingerprint,omitempty"`
}

type RefreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LogoutAllResponse struct {
	Success bool  `json:"success"`
	Revoked int64 `json:"revoked"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
