package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"identity-service/internal/auth"
	"identity-service/internal/domain"
	"identity-service/internal/repository"
)

// MaxUsernameLength bounds usernames accepted at registration.
const MaxUsernameLength = 50

// AuthResult is returned by successful registrations and logins.
type AuthResult struct {
	Account *domain.Account
	Tokens  auth.TokenPair
}

// AuthService implements registration, login and token exchange.
type AuthService interface {
	Register(ctx context.Context, email, password, username string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Validate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type authService struct {
	store  repository.Store
	hasher auth.PasswordHasher
	tokens *auth.TokenCodec
	opts   options

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(store repository.Store, hasher auth.PasswordHasher, tokens *auth.TokenCodec, opts ...Option) AuthService {
	return &authService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		opts:   buildOptions(opts),
	}
}

func (s *authService) Register(ctx context.Context, email, password, username string) (res *AuthResult, err error) {
	defer func() { s.opts.events.RecordAuthEvent(EventRegister, err) }()

	username = strings.TrimSpace(username)
	if err := auth.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	if username == "" {
		return nil, domain.ErrInvalidRequest.WithMessage("username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, domain.ErrInvalidRequest.WithMessage("username is too long")
	}

	accounts := s.store.Accounts()
	if _, err := accounts.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err, nil)
	}
	if _, err := accounts.GetByUsername(ctx, username); err == nil {
		return nil, domain.ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err, nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}

	now := s.opts.now().UTC()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// the store's unique constraints settle races the lookups above cannot
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Accounts().Create(ctx, account); err != nil {
			return err
		}
		if err := tx.Profiles().Create(ctx, domain.NewProfile(account.ID, now)); err != nil {
			return err
		}
		return tx.Preferences().Create(ctx, domain.NewPreferences(account.ID, now))
	})
	if err != nil {
		return nil, storeError(err, nil)
	}

	return s.issue(account)
}

func (s *authService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer func() { s.opts.events.RecordAuthEvent(EventLogin, err) }()

	if err := auth.ValidateEmail(email); err != nil {
		return nil, err
	}

	account, err := s.store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// compare anyway so unknown emails cost as much as wrong passwords
			s.hasher.Matches(password, s.dummyPasswordHash())
			return nil, domain.ErrInvalidCredentials
		}
		return nil, storeError(err, nil)
	}

	if !s.hasher.Matches(password, account.PasswordHash) || !account.Active {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(account)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (access string, err error) {
	defer func() { s.opts.events.RecordAuthEvent(EventRefresh, err) }()

	claims, err := s.tokens.VerifyKind(refreshToken, auth.KindRefresh)
	if err != nil {
		return "", domain.ErrInvalidToken.WithMessage("invalid refresh token").Wrap(err)
	}

	account, err := s.store.Accounts().GetByID(ctx, claims.UserID())
	if err != nil {
		return "", storeError(err, domain.ErrUserNotFound)
	}

	access, err = s.tokens.Issue(auth.IdentityOf(account), auth.KindAccess, s.tokens.TTL(auth.KindAccess))
	if err != nil {
		return "", domain.ErrInternal.Wrap(err)
	}
	return access, nil
}

func (s *authService) Validate(_ context.Context, accessToken string) (claims *auth.Claims, err error) {
	defer func() { s.opts.events.RecordAuthEvent(EventValidate, err) }()

	return s.tokens.VerifyKind(accessToken, auth.KindAccess)
}

func (s *authService) issue(account *domain.Account) (*AuthResult, error) {
	tokens, err := s.tokens.IssuePair(auth.IdentityOf(account))
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	return &AuthResult{Account: account.Sanitized(), Tokens: tokens}, nil
}

func (s *authService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
