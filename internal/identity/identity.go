// Package identity owns the device token and device id of an Engine.
//
// Every keychain failure degrades instead of failing the caller: a token that
// cannot be read is treated as absent, a token that cannot be written is
// logged and dropped, and a device id that cannot be persisted lives in memory
// for the rest of the process.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/MrEthical07/goClerk/keychain"
	"github.com/google/uuid"
)

const (
	TokenKey    = "clerkDeviceToken"
	DeviceIDKey = "clerkDeviceID"
)

// Hooks are invoked after identity events. Nil fields are skipped.
type Hooks struct {
	TokenSaved      func(ctx context.Context)
	TokenReadFailed func(ctx context.Context, err error)
	TokenSaveFailed func(ctx context.Context, err error)
}

// Store is the device identity store. The token is read from the keychain
// on every call so processes sharing an access group see each other's
// rotations.
type Store struct {
	keychain keychain.Keychain
	logger   *slog.Logger
	hooks    Hooks

	mu       sync.Mutex
	deviceID string
}

// New wraps kc. A nil logger discards.
func New(kc keychain.Keychain, logger *slog.Logger, hooks Hooks) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		keychain: kc,
		logger:   logger.With(slog.String("component", "identity")),
		hooks:    hooks,
	}
}

// Token returns the persisted device token, or "" when none is stored or the
// keychain cannot be read.
func (s *Store) Token(ctx context.Context) string {
	tok, err := s.keychain.String(ctx, TokenKey)
	if err == nil {
		return tok
	}
	if !errors.Is(err, keychain.ErrNotFound) {
		s.logger.WarnContext(ctx, "device token read failed", slog.Any("error", err))
		if s.hooks.TokenReadFailed != nil {
			s.hooks.TokenReadFailed(ctx, err)
		}
	}
	return ""
}

// SaveToken persists token. It never fails the caller; errors are logged.
func (s *Store) SaveToken(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.keychain.Set(ctx, TokenKey, token); err != nil {
		s.logger.WarnContext(ctx, "device token save failed", slog.Any("error", err))
		if s.hooks.TokenSaveFailed != nil {
			s.hooks.TokenSaveFailed(ctx, err)
		}
		return
	}
	s.logger.DebugContext(ctx, "device token saved")
	if s.hooks.TokenSaved != nil {
		s.hooks.TokenSaved(ctx)
	}
}

// Clear removes the device token. The device id is kept.
func (s *Store) Clear(ctx context.Context) {
	if err := s.keychain.Delete(ctx, TokenKey); err != nil {
		s.logger.WarnContext(ctx, "device token delete failed", slog.Any("error", err))
	}
}

// DeviceID returns the per-install device id, creating and persisting it on
// first use. A persisted id is never overwritten: when the keychain cannot be
// read, a fresh id is used for this process only.
func (s *Store) DeviceID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deviceID != "" {
		return s.deviceID
	}

	id, err := s.keychain.String(ctx, DeviceIDKey)
	switch {
	case err == nil && id != "":
		s.deviceID = id
		return id
	case err == nil, errors.Is(err, keychain.ErrNotFound):
		id = uuid.NewString()
		if err := s.keychain.Set(ctx, DeviceIDKey, id); err != nil {
			s.logger.WarnContext(ctx, "device id save failed, using in-memory id", slog.Any("error", err))
		}
	default:
		s.logger.WarnContext(ctx, "device id read failed, using in-memory id", slog.Any("error", err))
		id = uuid.NewString()
	}
	s.deviceID = id
	return id
}
