package service

import (
	"context"
	"errors"
	"io"
	"math"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"identity-service/internal/domain"
	"identity-service/internal/repository"
	"identity-service/internal/storage"
)

// Bounds on free-form preference values.
const (
	MaxLanguageLength = 16
	MaxThemeLength    = 32
)

// MaxCounter bounds level, wins and losses, which are stored as 32-bit integers.
const MaxCounter = math.MaxInt32

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UserProfile aggregates an account with its profile and preferences.
type UserProfile struct {
	Account     *domain.Account
	Profile     *domain.Profile
	Preferences *domain.Preferences
}

// AvatarUpload is an avatar image received from a client.
type AvatarUpload struct {
	ContentType string
	Body        io.Reader
}

// UserService describes profile and preference operations.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error)
	UpdatePreferences(ctx context.Context, userID string, upd domain.PreferencesUpdate) (*domain.Preferences, error)
	UploadAvatar(ctx context.Context, userID string, upload AvatarUpload) (*domain.Profile, error)
}

type userService struct {
	store        repository.Store
	avatars      storage.AvatarStore
	avatarPrefix string
	opts         options
}

// NewUserService builds the profile service. A nil avatars store disables uploads.
func NewUserService(store repository.Store, avatars storage.AvatarStore, avatarPrefix string, opts ...Option) UserService {
	if avatars == nil {
		avatars = storage.Disabled{}
	}
	return &userService{
		store:        store,
		avatars:      avatars,
		avatarPrefix: strings.Trim(avatarPrefix, "/"),
		opts:         buildOptions(opts),
	}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.Profiles().GetByAccount(ctx, userID)
	if err != nil {
		return nil, storeError(err, domain.ErrUserNotFound.WithMessage("profile not found"))
	}
	prefs, err := s.store.Preferences().GetByAccount(ctx, userID)
	if err != nil {
		return nil, storeError(err, domain.ErrUserNotFound.WithMessage("preferences not found"))
	}
	return &UserProfile{Account: account, Profile: profile, Preferences: prefs}, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if err := validateProfileUpdate(upd); err != nil {
		return nil, err
	}
	if _, err := s.account(ctx, userID); err != nil {
		return nil, err
	}
	profile, err := s.store.Profiles().Update(ctx, userID, upd, s.opts.now().UTC())
	if err != nil {
		return nil, storeError(err, domain.ErrUserNotFound.WithMessage("profile not found"))
	}
	return profile, nil
}

func (s *userService) UpdatePreferences(ctx context.Context, userID string, upd domain.PreferencesUpdate) (*domain.Preferences, error) {
	if upd.Language != nil {
		lang := strings.TrimSpace(*upd.Language)
		if lang == "" || len(lang) > MaxLanguageLength {
			return nil, domain.ErrInvalidRequest.WithMessage("invalid language code")
		}
		upd.Language = &lang
	}
	if upd.Theme != nil {
		theme := strings.TrimSpace(*upd.Theme)
		if theme == "" || len(theme) > MaxThemeLength {
			return nil, domain.ErrInvalidRequest.WithMessage("invalid theme")
		}
		upd.Theme = &theme
	}
	if _, err := s.account(ctx, userID); err != nil {
		return nil, err
	}
	prefs, err := s.store.Preferences().Update(ctx, userID, upd, s.opts.now().UTC())
	if err != nil {
		return nil, storeError(err, domain.ErrUserNotFound.WithMessage("preferences not found"))
	}
	return prefs, nil
}

// UploadAvatar stores the image and points the profile's avatar reference at it.
func (s *userService) UploadAvatar(ctx context.Context, userID string, upload AvatarUpload) (*domain.Profile, error) {
	ext, ok := avatarExtensions[strings.ToLower(upload.ContentType)]
	if !ok {
		return nil, domain.ErrInvalidRequest.WithMessage("avatar must be a png, jpeg, gif or webp image")
	}
	if _, err := s.account(ctx, userID); err != nil {
		return nil, err
	}

	key := path.Join(s.avatarPrefix, userID, uuid.NewString()+ext)
	ref, err := s.avatars.Put(ctx, key, upload.ContentType, upload.Body)
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			return nil, domain.ErrStorageUnavailable
		}
		return nil, domain.ErrInternal.Wrap(err)
	}

	profile, err := s.store.Profiles().Update(ctx, userID, domain.ProfileUpdate{AvatarURL: &ref}, s.opts.now().UTC())
	if err != nil {
		if delErr := s.avatars.Delete(ctx, key); delErr != nil {
			s.opts.logger.WithFields(logrus.Fields{
				"key":   key,
				"error": delErr,
			}).Warn("remove orphaned avatar")
		}
		return nil, storeError(err, domain.ErrUserNotFound.WithMessage("profile not found"))
	}
	return profile, nil
}

func (s *userService) account(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := s.store.Accounts().GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, domain.ErrUserNotFound)
	}
	return account.Sanitized(), nil
}

func validateProfileUpdate(upd domain.ProfileUpdate) error {
	switch {
	case upd.Level != nil && *upd.Level < 1:
		return domain.ErrInvalidRequest.WithMessage("level must be at least 1")
	case upd.Experience != nil && *upd.Experience < 0:
		return domain.ErrInvalidRequest.WithMessage("experience cannot be negative")
	case upd.Wins != nil && *upd.Wins < 0:
		return domain.ErrInvalidRequest.WithMessage("wins cannot be negative")
	case upd.Losses != nil && *upd.Losses < 0:
		return domain.ErrInvalidRequest.WithMessage("losses cannot be negative")
	case upd.Level != nil && *upd.Level > MaxCounter,
		upd.Wins != nil && *upd.Wins > MaxCounter,
		upd.Losses != nil && *upd.Losses > MaxCounter:
		return domain.ErrInvalidRequest.WithMessage("level, wins and losses must fit in 32 bits")
	}
	return nil
}
