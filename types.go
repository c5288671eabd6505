package goClerk

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goClerk/internal/audit"
	"github.com/MrEthical07/goClerk/internal/clientstore"
	internalmetrics "github.com/MrEthical07/goClerk/internal/metrics"
	"github.com/MrEthical07/goClerk/resource"
)

// Client is the server-tracked record of this device. See [resource.Client].
type Client = resource.Client

// Environment is the instance configuration. See [resource.Environment].
type Environment = resource.Environment

// Snapshot pairs a Client with the version it was stored under. Versions
// increase by one per applied response.
type Snapshot = clientstore.Snapshot

// TokenOptions selects which session token SessionToken returns.
type TokenOptions struct {
	// Template names a JWT template configured on the instance.
	Template string
	// SkipCache forces a network fetch. The fresh token still replaces the
	// cached one.
	SkipCache bool
}

// AuditEvent defines a public type used by goClerk APIs.
//
// AuditEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink defines a public type used by goClerk APIs.
//
// ChannelSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// NewChannelSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies one counter or histogram exported by an Engine.
type MetricID = internalmetrics.MetricID

const (
	// MetricClientLoad counts LoadClient calls.
	MetricClientLoad = MetricID(internalmetrics.MetricClientLoad)
	// MetricSignUpCreate counts sign-up creations.
	MetricSignUpCreate = MetricID(internalmetrics.MetricSignUpCreate)
	// MetricSignUpPrepare counts sign-up verification dispatches.
	MetricSignUpPrepare = MetricID(internalmetrics.MetricSignUpPrepare)
	// MetricSignUpAttempt counts sign-up verification attempts.
	MetricSignUpAttempt = MetricID(internalmetrics.MetricSignUpAttempt)
	// MetricSignUpUpdate counts sign-up field updates.
	MetricSignUpUpdate = MetricID(internalmetrics.MetricSignUpUpdate)
	// MetricSignUpComplete counts sign-ups that reached complete.
	MetricSignUpComplete = MetricID(internalmetrics.MetricSignUpComplete)
	// MetricSignUpFailure counts sign-up steps that returned an error.
	MetricSignUpFailure = MetricID(internalmetrics.MetricSignUpFailure)
	// MetricSignInCreate counts sign-in creations.
	MetricSignInCreate = MetricID(internalmetrics.MetricSignInCreate)
	// MetricSignInPrepare counts factor dispatches.
	MetricSignInPrepare = MetricID(internalmetrics.MetricSignInPrepare)
	// MetricSignInAttempt counts factor attempts.
	MetricSignInAttempt = MetricID(internalmetrics.MetricSignInAttempt)
	// MetricSignInComplete counts sign-ins that reached complete.
	MetricSignInComplete = MetricID(internalmetrics.MetricSignInComplete)
	// MetricSignInFailure counts sign-in steps that returned an error.
	MetricSignInFailure = MetricID(internalmetrics.MetricSignInFailure)
	// MetricSignOut counts SignOut calls.
	MetricSignOut = MetricID(internalmetrics.MetricSignOut)
	// MetricSessionRemove counts RemoveSession calls.
	MetricSessionRemove = MetricID(internalmetrics.MetricSessionRemove)
	// MetricSessionTokenFetch counts session token network fetches.
	MetricSessionTokenFetch = MetricID(internalmetrics.MetricSessionTokenFetch)
	// MetricSessionTokenCacheHit counts session tokens served from cache.
	MetricSessionTokenCacheHit = MetricID(internalmetrics.MetricSessionTokenCacheHit)
	// MetricSessionTokenFailure counts failed session token fetches.
	MetricSessionTokenFailure = MetricID(internalmetrics.MetricSessionTokenFailure)
	// MetricEnvironmentFetch counts environment network fetches.
	MetricEnvironmentFetch = MetricID(internalmetrics.MetricEnvironmentFetch)
	// MetricEnvironmentCacheHit counts environments served from cache.
	MetricEnvironmentCacheHit = MetricID(internalmetrics.MetricEnvironmentCacheHit)
	// MetricPreconditionFailed counts calls rejected before any request.
	MetricPreconditionFailed = MetricID(internalmetrics.MetricPreconditionFailed)
	// MetricRequest counts Frontend API round trips.
	MetricRequest = MetricID(internalmetrics.MetricRequest)
	// MetricRequestFailure counts round trips that returned an error.
	MetricRequestFailure = MetricID(internalmetrics.MetricRequestFailure)
	// MetricRequestTimeout counts round trips that hit the timeout.
	MetricRequestTimeout = MetricID(internalmetrics.MetricRequestTimeout)
	// MetricCircuitOpen counts requests rejected by the circuit breaker.
	MetricCircuitOpen = MetricID(internalmetrics.MetricCircuitOpen)
	// MetricDeviceTokenRotated counts device tokens persisted from responses.
	MetricDeviceTokenRotated = MetricID(internalmetrics.MetricDeviceTokenRotated)
	// MetricKeychainReadFailure counts keychain reads that failed.
	MetricKeychainReadFailure = MetricID(internalmetrics.MetricKeychainReadFailure)
	// MetricKeychainWriteFailure counts keychain writes that failed.
	MetricKeychainWriteFailure = MetricID(internalmetrics.MetricKeychainWriteFailure)
	// MetricRequestLatency is the round trip latency histogram.
	MetricRequestLatency = MetricID(internalmetrics.MetricRequestLatency)
)

// Metrics defines a public type used by goClerk APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
