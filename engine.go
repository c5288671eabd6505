package goClerk

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goClerk/internal/audit"
	"github.com/MrEthical07/goClerk/internal/clientstore"
	"github.com/MrEthical07/goClerk/internal/flows"
	"github.com/MrEthical07/goClerk/internal/identity"
	"github.com/MrEthical07/goClerk/internal/pipeline"
	"github.com/MrEthical07/goClerk/jwt"
	"github.com/MrEthical07/goClerk/resource"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

// Engine defines a public type used by goClerk APIs.
//
// An Engine owns one device identity and one Client snapshot. All methods
// are safe for concurrent use; concurrent flow calls are not serialized and
// the last response to arrive wins.
type Engine struct {
	config   Config
	logger   *slog.Logger
	identity *identity.Store
	pipeline *pipeline.Pipeline
	store    *clientstore.Store
	flows    flows.Deps
	validate *validator.Validate
	parser   *jwt.Parser
	audit    *audit.Dispatcher
	metrics  *Metrics

	envMu    sync.RWMutex
	env      *resource.Environment
	envGroup singleflight.Group

	tokenMu      sync.Mutex
	tokens       map[string]cachedToken
	tokenSession string
	tokenVersion uint64
	tokenGroup   singleflight.Group

	closed atomic.Bool
}

// Close stops the audit dispatcher and unsubscribes every listener. Flow
// calls made afterwards return ErrEngineClosed.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.store.Close()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Load fetches the Client for this device and stores it. Call it once at
// startup; every later response keeps the snapshot current.
func (e *Engine) Load(ctx context.Context) (*Client, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunLoadClient(ctx, e.flows.Session)
}

// Client returns a copy of the latest Client, or nil before the first
// response has been applied.
func (e *Engine) Client() *Client {
	return e.store.Current()
}

// Snapshot returns the latest Client together with its version.
func (e *Engine) Snapshot() Snapshot {
	return e.store.Snapshot()
}

// Subscribe delivers every later Client snapshot on the returned channel. A
// listener that falls more than buffer snapshots behind loses the oldest
// pending ones. Call the returned func to unsubscribe.
func (e *Engine) Subscribe(buffer int) (<-chan Snapshot, func()) {
	return e.store.Subscribe(buffer)
}

// DeviceID returns the per-install device id, creating it on first use.
func (e *Engine) DeviceID(ctx context.Context) string {
	return e.identity.DeviceID(ctx)
}

// SignOut ends every session on this device. The device token, the session
// token cache and the local Client are cleared even when the request fails;
// the request error is returned afterwards.
func (e *Engine) SignOut(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	err := flows.RunSignOut(ctx, e.flows.Session)
	e.dropTokens()
	if err != nil {
		e.logger.WarnContext(ctx, "sign out request failed; local state cleared", slog.String("error", err.Error()))
	}
	return err
}

// RemoveSession signs out a single session and applies the returned Client.
func (e *Engine) RemoveSession(ctx context.Context, sessionID string) (*Client, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunRemoveSession(ctx, sessionID, e.flows.Session)
}

// SignUp returns a handle for the sign-up flow of this Engine.
func (e *Engine) SignUp() *SignUpFlow {
	return &SignUpFlow{engine: e}
}

// SignIn returns a handle for the sign-in flow of this Engine.
func (e *Engine) SignIn() *SignInFlow {
	return &SignInFlow{engine: e}
}

func (e *Engine) checkOpen() error {
	if e == nil || e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) send(ctx context.Context, req pipeline.Request, out any) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.pipeline.Send(ctx, req, out)
}

// apply stores c as the new snapshot. The session token cache follows the
// active session of the newest snapshot.
func (e *Engine) apply(_ context.Context, c *resource.Client) *resource.Client {
	snap := e.store.Replace(c)

	active := ""
	if s := snap.Client.ActiveSession(); s != nil {
		active = s.ID
	}

	e.tokenMu.Lock()
	if snap.Version > e.tokenVersion {
		e.tokenVersion = snap.Version
		if active != e.tokenSession {
			e.tokenSession = active
			clear(e.tokens)
		}
	}
	e.tokenMu.Unlock()

	return snap.Client
}
