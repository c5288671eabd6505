package keychain

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// OS stores items in the operating system credential store. The service
// name maps to the credential service and "accessGroup/key" to the account.
//
// The underlying calls are synchronous and ignore ctx cancellation.
type OS struct {
	ns Namespace
}

// NewOS creates a keychain backed by the OS credential store.
func NewOS(service, accessGroup string) *OS {
	return &OS{ns: Namespace{Service: service, AccessGroup: accessGroup}}
}

func (o *OS) String(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(o.ns.Service, o.ns.account(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, nil
}

func (o *OS) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(o.ns.Service, o.ns.account(key), value); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (o *OS) Delete(_ context.Context, key string) error {
	err := keyring.Delete(o.ns.Service, o.ns.account(key))
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
