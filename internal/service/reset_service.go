package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"identity-service/internal/auth"
	"identity-service/internal/domain"
	"identity-service/internal/notify"
	"identity-service/internal/repository"
)

// Messages returned by the reset flow regardless of the account's existence.
const (
	ResetRequestedMessage = "If the email exists, a password reset link has been sent"
	ResetCompletedMessage = "Password has been reset successfully"
)

// ResetService implements the password reset protocol.
type ResetService interface {
	RequestReset(ctx context.Context, email string) (string, error)
	ConfirmReset(ctx context.Context, token, newPassword string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type resetService struct {
	store  repository.Store
	hasher auth.PasswordHasher
	sender notify.ResetSender
	ttl    time.Duration
	opts   options
}

// NewResetService builds the reset flow. Tickets live for ttl; a
// non-positive ttl selects auth.DefaultResetTTL.
func NewResetService(store repository.Store, hasher auth.PasswordHasher, sender notify.ResetSender, ttl time.Duration, opts ...Option) ResetService {
	if ttl <= 0 {
		ttl = auth.DefaultResetTTL
	}
	return &resetService{
		store:  store,
		hasher: hasher,
		sender: sender,
		ttl:    ttl,
		opts:   buildOptions(opts),
	}
}

// RequestReset issues a ticket when email belongs to an account. The returned
// message never reveals whether it does.
func (s *resetService) RequestReset(ctx context.Context, email string) (msg string, err error) {
	defer func() { s.opts.events.RecordAuthEvent(EventResetRequest, err) }()

	if auth.ValidateEmail(email) != nil {
		return ResetRequestedMessage, nil
	}

	account, err := s.store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ResetRequestedMessage, nil
		}
		return "", storeError(err, nil)
	}

	secret, err := auth.GenerateResetSecret()
	if err != nil {
		return "", domain.ErrInternal.Wrap(err)
	}
	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return "", domain.ErrInternal.Wrap(err)
	}

	now := s.opts.now().UTC()
	ticket := &domain.ResetTicket{
		ID:         uuid.NewString(),
		AccountID:  account.ID,
		SecretHash: secretHash,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.store.ResetTickets().Create(ctx, ticket); err != nil {
		return "", storeError(err, nil)
	}

	if err := s.sender.SendResetToken(ctx, account, auth.ResetToken(ticket.ID, secret), ticket.ExpiresAt); err != nil {
		s.opts.logger.WithFields(logrus.Fields{
			"account_id": account.ID,
			"error":      err,
		}).Warn("deliver reset token")
	}

	return ResetRequestedMessage, nil
}

// ConfirmReset consumes the live ticket named by token and sets the account
// password. A ticket can be consumed once; concurrent losers get
// domain.ErrInvalidResetToken.
func (s *resetService) ConfirmReset(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.opts.events.RecordAuthEvent(EventResetConfirm, err) }()

	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	ticketID, secret, ok := auth.SplitResetToken(token)
	if !ok {
		return domain.ErrInvalidResetToken
	}

	ticket, err := s.store.ResetTickets().GetActive(ctx, ticketID, s.opts.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInvalidResetToken
		}
		return storeError(err, nil)
	}
	if !s.hasher.Matches(secret, ticket.SecretHash) {
		return domain.ErrInvalidResetToken
	}

	// the lookup already filtered expired rows; re-check against a fresh clock
	now := s.opts.now().UTC()
	if ticket.ExpiredAt(now) {
		return domain.ErrResetTokenExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.ErrInternal.Wrap(err)
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		consumed, err := tx.ResetTickets().Consume(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return domain.ErrInvalidResetToken
		}
		return tx.Accounts().UpdatePassword(ctx, ticket.AccountID, hash, now)
	})
	if err != nil {
		return storeError(err, domain.ErrUserNotFound)
	}
	return nil
}

// PurgeExpired deletes every ticket whose expiry has passed.
func (s *resetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.ResetTickets().DeleteExpired(ctx, s.opts.now().UTC())
	if err != nil {
		return 0, storeError(err, nil)
	}
	return n, nil
}
