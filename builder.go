package goClerk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/MrEthical07/goClerk/internal/audit"
	"github.com/MrEthical07/goClerk/internal/clientstore"
	"github.com/MrEthical07/goClerk/internal/flows"
	"github.com/MrEthical07/goClerk/internal/identity"
	"github.com/MrEthical07/goClerk/internal/pipeline"
	"github.com/MrEthical07/goClerk/jwt"
	"github.com/MrEthical07/goClerk/keychain"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// Builder defines a public type used by goClerk APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	keychain   keychain.Keychain
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     *slog.Logger
	auditSink  AuditSink
	tracer     trace.TracerProvider

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithPublishableKey sets Config.API.PublishableKey.
func (b *Builder) WithPublishableKey(key string) *Builder {
	b.config.API.PublishableKey = key
	return b
}

// WithKeychain sets the backend for the device token and device id. It wins
// over WithRedis.
func (b *Builder) WithKeychain(kc keychain.Keychain) *Builder {
	b.keychain = kc
	return b
}

// WithRedis stores the device identity in Redis, namespaced by
// Config.Keychain. Useful for processes that run several devices.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the structured logger. The default discards.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets where request spans go. Defaults to the global
// provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build returns an error wrapping ErrInvalidConfig when the configuration is
// rejected. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", ErrInvalidConfig)
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := cfg.API.resolveBaseURL()
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- KEYCHAIN --------
	kc := b.keychain
	switch {
	case kc != nil:
	case b.redis != nil:
		kc = keychain.NewRedis(b.redis, cfg.Keychain.Service, cfg.Keychain.AccessGroup)
	default:
		kc = keychain.NewOS(cfg.Keychain.Service, cfg.Keychain.AccessGroup)
	}

	engine := &Engine{
		config:   cfg,
		logger:   logger.With(slog.String("component", "engine")),
		store:    clientstore.New(),
		metrics:  NewMetrics(cfg.Metrics),
		validate: newValidator(),
		tokens:   make(map[string]cachedToken),
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, func() {
		logger.Warn("audit event dropped", slog.String("component", "audit"))
	})

	// -------- DEVICE IDENTITY --------
	engine.identity = identity.New(kc, logger, identity.Hooks{
		TokenSaved: func(ctx context.Context) {
			engine.metricInc(MetricDeviceTokenRotated)
			engine.emitAudit(ctx, auditEventDeviceTokenRotated, true, engine.store.ID(), "", nil, nil)
		},
		TokenReadFailed: func(ctx context.Context, err error) {
			engine.metricInc(MetricKeychainReadFailure)
			engine.emitAudit(ctx, auditEventKeychainFailure, false, engine.store.ID(), identity.TokenKey,
				fmt.Errorf("%w: %w", errKeychain, err), func() map[string]string {
					return map[string]string{"op": "read"}
				})
		},
		TokenSaveFailed: func(ctx context.Context, err error) {
			engine.metricInc(MetricKeychainWriteFailure)
			engine.emitAudit(ctx, auditEventKeychainFailure, false, engine.store.ID(), identity.TokenKey,
				fmt.Errorf("%w: %w", errKeychain, err), func() map[string]string {
					return map[string]string{"op": "write"}
				})
		},
	})

	// -------- SESSION TOKENS --------
	parser, err := jwt.NewParser(jwt.Config{
		PublicKeyPEM:      cloneBytes(cfg.SessionToken.PublicKeyPEM),
		Issuer:            cfg.SessionToken.Issuer,
		AuthorizedParties: cfg.SessionToken.AuthorizedParties,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	engine.parser = parser

	// -------- PIPELINE --------
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithHTTPClient(b.httpClient),
		pipeline.WithTracerProvider(b.tracer),
		pipeline.WithObserver(engine.observeExchange),
		pipeline.WithOutgoing(
			pipeline.NativeHeaders(cfg.API.UserAgent),
			pipeline.DeviceIDHeader(engine.identity.DeviceID),
			pipeline.AuthorizationHeader(engine.identity.Token),
			pipeline.DebugClientIDHeader(cfg.Debug, engine.store.ID),
		),
		pipeline.WithIncoming(
			pipeline.DeviceTokenSaving(engine.identity.SaveToken),
			pipeline.ErrorThrowing(),
		),
	}
	p, err := pipeline.New(pipeline.Config{
		BaseURL: baseURL,
		Timeout: cfg.API.Timeout,
		Breaker: pipeline.BreakerConfig{
			Enabled:      cfg.CircuitBreaker.Enabled,
			Name:         "frontend-api",
			MaxRequests:  cfg.CircuitBreaker.MaxRequests,
			Interval:     cfg.CircuitBreaker.Interval,
			Timeout:      cfg.CircuitBreaker.OpenTimeout,
			FailureRatio: cfg.CircuitBreaker.FailureRatio,
			MinRequests:  cfg.CircuitBreaker.MinRequests,
		},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	engine.pipeline = p

	engine.flows = engine.buildFlowDeps()

	b.built = true

	engine.logger.Debug("engine built",
		slog.String("base_url", baseURL),
		slog.Bool("breaker", cfg.CircuitBreaker.Enabled),
		slog.Bool("verify_session_tokens", parser.Verifies()),
	)
	return engine, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	client := flows.ClientDeps{
		Send:        e.send,
		Current:     e.store.Current,
		Apply:       e.apply,
		Environment: e.CachedEnvironment,
		Validate:    e.validateParams,
		Local: func(sentinel error, message string) error {
			e.metricInc(MetricPreconditionFailed)
			return newClientError(sentinel, message)
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Errors: flows.ClientErrors{
			SignUpNotStarted:   ErrSignUpNotStarted,
			SignInNotStarted:   ErrSignInNotStarted,
			NoActiveSession:    ErrNoActiveSession,
			InvalidParams:      ErrInvalidParams,
			StrategyNotEnabled: ErrStrategyNotEnabled,
		},
	}

	return flows.Deps{
		SignUp: flows.SignUpDeps{
			Client: client,
			Metrics: flows.SignUpMetrics{
				SignUpCreate:   int(MetricSignUpCreate),
				SignUpPrepare:  int(MetricSignUpPrepare),
				SignUpAttempt:  int(MetricSignUpAttempt),
				SignUpUpdate:   int(MetricSignUpUpdate),
				SignUpComplete: int(MetricSignUpComplete),
				SignUpFailure:  int(MetricSignUpFailure),
			},
			Events: flows.SignUpEvents{
				SignUpCreate:   auditEventSignUpCreate,
				SignUpPrepare:  auditEventSignUpPrepare,
				SignUpAttempt:  auditEventSignUpAttempt,
				SignUpUpdate:   auditEventSignUpUpdate,
				SignUpComplete: auditEventSignUpComplete,
			},
		},
		SignIn: flows.SignInDeps{
			Client: client,
			Metrics: flows.SignInMetrics{
				SignInCreate:   int(MetricSignInCreate),
				SignInPrepare:  int(MetricSignInPrepare),
				SignInAttempt:  int(MetricSignInAttempt),
				SignInComplete: int(MetricSignInComplete),
				SignInFailure:  int(MetricSignInFailure),
			},
			Events: flows.SignInEvents{
				SignInCreate:   auditEventSignInCreate,
				SignInPrepare:  auditEventSignInPrepare,
				SignInAttempt:  auditEventSignInAttempt,
				SignInComplete: auditEventSignInComplete,
			},
		},
		Session: flows.SessionDeps{
			Client:           client,
			ClearDeviceToken: e.identity.Clear,
			Metrics: flows.SessionMetrics{
				ClientLoad:        int(MetricClientLoad),
				SignOut:           int(MetricSignOut),
				SessionRemove:     int(MetricSessionRemove),
				SessionToken:      int(MetricSessionTokenFetch),
				SessionTokenError: int(MetricSessionTokenFailure),
			},
			Events: flows.SessionEvents{
				ClientLoad:    auditEventClientLoad,
				SignOut:       auditEventSignOut,
				SessionRemove: auditEventSessionRemove,
			},
		},
		Environment: flows.EnvironmentDeps{
			Send:      e.send,
			MetricInc: func(id int) { e.metricInc(MetricID(id)) },
			Metric:    int(MetricEnvironmentFetch),
		},
	}
}

// observeExchange feeds request outcomes into metrics and the debug log.
func (e *Engine) observeExchange(ctx context.Context, ex pipeline.Exchange) {
	e.metricInc(MetricRequest)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRequestLatency, ex.Duration)
	}
	if ex.Err == nil {
		return
	}
	e.metricInc(MetricRequestFailure)
	switch {
	case errors.Is(ex.Err, ErrTimeout):
		e.metricInc(MetricRequestTimeout)
	case errors.Is(ex.Err, ErrCircuitOpen):
		e.metricInc(MetricCircuitOpen)
	}
	e.logger.DebugContext(ctx, "frontend api request failed",
		slog.String("method", ex.Method),
		slog.String("path", ex.Path),
		slog.Int("status", ex.Status),
		slog.Duration("duration", ex.Duration),
		slog.String("error", ex.Err.Error()),
	)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (e *Engine) validateParams(params any) error {
	err := e.validate.Struct(params)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return fmt.Errorf("field %s failed %s validation", fe.Field(), fe.Tag())
}
