package keychain

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/zalando/go-keyring"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func backends(t *testing.T) map[string]Keychain {
	t.Helper()

	keyring.MockInit()
	_, rdb := newTestRedis(t)

	return map[string]Keychain{
		"memory": NewMemory(),
		"redis":  NewRedis(rdb, "com.example.app", "group.shared"),
		"os":     NewOS("com.example.app", "group.shared"),
	}
}

func TestKeychainRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kc.String(ctx, "clerkDeviceToken"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound before set, got %v", err)
			}
			if err := kc.Set(ctx, "clerkDeviceToken", "tok-1"); err != nil {
				t.Fatalf("set failed: %v", err)
			}
			got, err := kc.String(ctx, "clerkDeviceToken")
			if err != nil || got != "tok-1" {
				t.Fatalf("expected tok-1, got %q err=%v", got, err)
			}
			if err := kc.Delete(ctx, "clerkDeviceToken"); err != nil {
				t.Fatalf("delete failed: %v", err)
			}
			if _, err := kc.String(ctx, "clerkDeviceToken"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if err := kc.Delete(ctx, "clerkDeviceToken"); err != nil {
				t.Fatalf("deleting a missing item should succeed, got %v", err)
			}
		})
	}
}

func TestKeychainSetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, kc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := kc.Set(ctx, "k", "same"); err != nil {
				t.Fatalf("first set failed: %v", err)
			}
			once, _ := kc.String(ctx, "k")
			if err := kc.Set(ctx, "k", "same"); err != nil {
				t.Fatalf("second set failed: %v", err)
			}
			twice, _ := kc.String(ctx, "k")
			if once != twice || twice != "same" {
				t.Fatalf("expected identical state, got %q then %q", once, twice)
			}

			if err := kc.Set(ctx, "k", "newer"); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			if got, _ := kc.String(ctx, "k"); got != "newer" {
				t.Fatalf("expected last write to win, got %q", got)
			}
		})
	}
}

func TestRedisNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)

	a := NewRedis(rdb, "svc", "group.a")
	sharedA := NewRedis(rdb, "svc", "group.a")
	b := NewRedis(rdb, "svc", "group.b")

	if err := a.Set(ctx, "clerkDeviceToken", "tok-a"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, err := sharedA.String(ctx, "clerkDeviceToken"); err != nil || got != "tok-a" {
		t.Fatalf("expected shared access group to see tok-a, got %q err=%v", got, err)
	}
	if _, err := b.String(ctx, "clerkDeviceToken"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other access group to be isolated, got %v", err)
	}
	if !mr.Exists("svc:group.a:clerkDeviceToken") {
		t.Fatal("expected namespaced redis key")
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	kc := NewRedis(rdb, "svc", "")
	mr.Close()

	if _, err := kc.String(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := kc.Set(context.Background(), "k", "v"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on set, got %v", err)
	}
}

func TestOSKeychainErrorMapping(t *testing.T) {
	boom := errors.New("keychain locked")
	keyring.MockInitWithError(boom)
	t.Cleanup(keyring.MockInit)

	kc := NewOS("svc", "group")
	_, err := kc.String(context.Background(), "k")
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrUnavailable wrapping cause, got %v", err)
	}
}
