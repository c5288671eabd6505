package keychain

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no value is stored under a key.
var ErrNotFound = errors.New("keychain item not found")

// ErrUnavailable wraps backend failures (store locked, permission denied,
// connection refused).
var ErrUnavailable = errors.New("keychain unavailable")

// Keychain is a namespaced secure string store. Implementations must be safe
// for concurrent use; Set is last-write-wins and idempotent.
type Keychain interface {
	String(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Namespace scopes keys to a service and an optional access group.
type Namespace struct {
	Service     string
	AccessGroup string
}

func (n Namespace) account(key string) string {
	if n.AccessGroup == "" {
		return key
	}
	return n.AccessGroup + "/" + key
}

func (n Namespace) redisKey(key string) string {
	var b strings.Builder
	b.Grow(len(n.Service) + len(n.AccessGroup) + len(key) + 2)
	b.WriteString(n.Service)
	b.WriteByte(':')
	b.WriteString(n.AccessGroup)
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}
