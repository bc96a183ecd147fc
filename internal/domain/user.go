package domain

import "time"

// Profile defaults applied at registration.
const (
	DefaultLevel    = 1
	DefaultLanguage = "en"
	DefaultTheme    = "light"
)

// Account represents a registered identity.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sanitized returns a copy of the account without its password hash.
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		ID:        a.ID,
		Email:     a.Email,
		Username:  a.Username,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Profile holds the game-facing statistics of an account.
type Profile struct {
	AccountID  string
	AvatarURL  string
	Level      int
	Experience int64
	Wins       int
	Losses     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewProfile returns a profile populated with registration defaults.
func NewProfile(accountID string, now time.Time) *Profile {
	return &Profile{
		AccountID: accountID,
		Level:     DefaultLevel,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Preferences holds per-account client settings.
type Preferences struct {
	AccountID     string
	Notifications bool
	Language      string
	Theme         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPreferences(accountID string, now time.Time) *Preferences {
	return &Preferences{
		AccountID:     accountID,
		Notifications: true,
		Language:      DefaultLanguage,
		Theme:         DefaultTheme,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ProfileUpdate carries the profile fields present in a partial update. Nil
// fields are left untouched.
type ProfileUpdate struct {
	AvatarURL  *string
	Level      *int
	Experience *int64
	Wins       *int
	Losses     *int
}

// PreferencesUpdate carries the preference fields present in a partial update.
type PreferencesUpdate struct {
	Notifications *bool
	Language      *string
	Theme         *string
}
