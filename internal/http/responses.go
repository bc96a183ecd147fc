package http

import (
	"time"

	"identity-service/internal/auth"
	"identity-service/internal/domain"
)

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type ProfileResponse struct {
	UserID     string `json:"user_id"`
	AvatarURL  string `json:"avatar_url"`
	Level      int    `json:"level"`
	Experience int64  `json:"experience"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type PreferencesResponse struct {
	UserID        string `json:"user_id"`
	Notifications bool   `json:"notifications"`
	Language      string `json:"language"`
	Theme         string `json:"theme"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type UserProfileResponse struct {
	User        UserResponse        `json:"user"`
	Profile     ProfileResponse     `json:"profile"`
	Preferences PreferencesResponse `json:"preferences"`
}

type ClaimsResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Type      string `json:"type"`
	IssuedAt  string `json:"issued_at,omitempty"`
	ExpiresAt string `json:"expires_at"`
}

type ValidateResponse struct {
	Valid  bool           `json:"valid"`
	Claims ClaimsResponse `json:"claims"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func userToResponse(a *domain.Account) UserResponse {
	return UserResponse{
		ID:        a.ID,
		Email:     a.Email,
		Username:  a.Username,
		Active:    a.Active,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func profileToResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:     p.AccountID,
		AvatarURL:  p.AvatarURL,
		Level:      p.Level,
		Experience: p.Experience,
		Wins:       p.Wins,
		Losses:     p.Losses,
		CreatedAt:  formatTime(p.CreatedAt),
		UpdatedAt:  formatTime(p.UpdatedAt),
	}
}

func preferencesToResponse(p *domain.Preferences) PreferencesResponse {
	return PreferencesResponse{
		UserID:        p.AccountID,
		Notifications: p.Notifications,
		Language:      p.Language,
		Theme:         p.Theme,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

func claimsToResponse(c *auth.Claims) ClaimsResponse {
	resp := ClaimsResponse{
		UserID:   c.UserID(),
		Email:    c.Email,
		Username: c.Username,
		Type:     string(c.Kind),
	}
	if c.IssuedAt != nil {
		resp.IssuedAt = formatTime(c.IssuedAt.Time)
	}
	if c.ExpiresAt != nil {
		resp.ExpiresAt = formatTime(c.ExpiresAt.Time)
	}
	return resp
}
