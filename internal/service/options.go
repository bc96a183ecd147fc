package service

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"identity-service/internal/domain"
	"identity-service/internal/repository"
)

// Event names reported to the EventRecorder.
const (
	EventRegister     = "register"
	EventLogin        = "login"
	EventRefresh      = "refresh"
	EventValidate     = "validate"
	EventResetRequest = "reset_request"
	EventResetConfirm = "reset_confirm"
)

// EventRecorder observes the outcome of authentication operations.
type EventRecorder interface {
	RecordAuthEvent(event string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthEvent(string, error) {}

// Option customises a service.
type Option func(*options)

type options struct {
	now    func() time.Time
	events EventRecorder
	logger logrus.FieldLogger
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithEventRecorder(r EventRecorder) Option {
	return func(o *options) {
		if r != nil {
			o.events = r
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		events: nopRecorder{},
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// storeError converts a repository failure into a domain error. Not-found
// lookups become notFound; anything unexpected is a database error.
func storeError(err error, notFound *domain.Error) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return de
	case errors.Is(err, repository.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, repository.ErrDuplicateEmail):
		return domain.ErrEmailTaken
	case errors.Is(err, repository.ErrDuplicateUsername):
		return domain.ErrUsernameTaken
	default:
		return domain.ErrDatabase.Wrap(err)
	}
}
