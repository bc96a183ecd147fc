// Package notify delivers password reset tokens to account owners.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"identity-service/internal/domain"
)

// ResetSender delivers a plaintext reset token out of band.
type ResetSender interface {
	SendResetToken(ctx context.Context, account *domain.Account, token string, expiresAt time.Time) error
}

// LogSender writes reset tokens to the log. It stands in for an email or SMS
// gateway in development deployments.
type LogSender struct {
	logger logrus.FieldLogger
}

func NewLogSender(logger logrus.FieldLogger) *LogSender {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendResetToken(_ context.Context, account *domain.Account, token string, expiresAt time.Time) error {
	s.logger.WithFields(logrus.Fields{
		"account_id":  account.ID,
		"email":       account.Email,
		"reset_token": token,
		"expires_at":  expiresAt.Format(time.RFC3339),
	}).Info("password reset token issued")
	return nil
}

var _ ResetSender = (*LogSender)(nil)
