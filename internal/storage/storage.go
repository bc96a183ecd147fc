package storage

import (
	"context"
	"errors"
	"io"
)

// ErrDisabled is returned by Disabled for every operation.
var ErrDisabled = errors.New("avatar storage is not configured")

// AvatarStore keeps avatar images in remote object storage.
type AvatarStore interface {
	// Put uploads body under key and returns the reference saved on the profile.
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// Disabled is the AvatarStore used when no bucket is configured.
type Disabled struct{}

func (Disabled) Put(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }

var _ AvatarStore = Disabled{}
