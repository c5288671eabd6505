package internaldefs

import (
	goClerk "github.com/MrEthical07/goClerk"
)

// CounterDef defines a public type used by goClerk APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goClerk.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goClerk APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goClerk.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "goclerk_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goClerk.MetricClientLoad, Name: "goclerk_client_load_total", Help: "Client loads."},
	{ID: goClerk.MetricSignUpCreate, Name: "goclerk_sign_up_create_total", Help: "Sign-up creations."},
	{ID: goClerk.MetricSignUpPrepare, Name: "goclerk_sign_up_prepare_total", Help: "Sign-up verification dispatches."},
	{ID: goClerk.MetricSignUpAttempt, Name: "goclerk_sign_up_attempt_total", Help: "Sign-up verification attempts."},
	{ID: goClerk.MetricSignUpUpdate, Name: "goclerk_sign_up_update_total", Help: "Sign-up field updates."},
	{ID: goClerk.MetricSignUpComplete, Name: "goclerk_sign_up_complete_total", Help: "Sign-ups that completed."},
	{ID: goClerk.MetricSignUpFailure, Name: "goclerk_sign_up_failure_total", Help: "Sign-up steps that failed."},
	{ID: goClerk.MetricSignInCreate, Name: "goclerk_sign_in_create_total", Help: "Sign-in creations."},
	{ID: goClerk.MetricSignInPrepare, Name: "goclerk_sign_in_prepare_total", Help: "Sign-in factor dispatches."},
	{ID: goClerk.MetricSignInAttempt, Name: "goclerk_sign_in_attempt_total", Help: "Sign-in factor attempts."},
	{ID: goClerk.MetricSignInComplete, Name: "goclerk_sign_in_complete_total", Help: "Sign-ins that completed."},
	{ID: goClerk.MetricSignInFailure, Name: "goclerk_sign_in_failure_total", Help: "Sign-in steps that failed."},
	{ID: goClerk.MetricSignOut, Name: "goclerk_sign_out_total", Help: "Sign-outs."},
	{ID: goClerk.MetricSessionRemove, Name: "goclerk_session_remove_total", Help: "Single session removals."},
	{ID: goClerk.MetricSessionTokenFetch, Name: "goclerk_session_token_fetch_total", Help: "Session token network fetches."},
	{ID: goClerk.MetricSessionTokenCacheHit, Name: "goclerk_session_token_cache_hit_total", Help: "Session tokens served from cache."},
	{ID: goClerk.MetricSessionTokenFailure, Name: "goclerk_session_token_failure_total", Help: "Failed session token fetches."},
	{ID: goClerk.MetricEnvironmentFetch, Name: "goclerk_environment_fetch_total", Help: "Environment network fetches."},
	{ID: goClerk.MetricEnvironmentCacheHit, Name: "goclerk_environment_cache_hit_total", Help: "Environments served from cache."},
	{ID: goClerk.MetricPreconditionFailed, Name: "goclerk_precondition_failed_total", Help: "Calls rejected locally before any request."},
	{ID: goClerk.MetricRequest, Name: "goclerk_request_total", Help: "Frontend API round trips."},
	{ID: goClerk.MetricRequestFailure, Name: "goclerk_request_failure_total", Help: "Frontend API round trips that returned an error."},
	{ID: goClerk.MetricRequestTimeout, Name: "goclerk_request_timeout_total", Help: "Frontend API round trips that timed out."},
	{ID: goClerk.MetricCircuitOpen, Name: "goclerk_circuit_open_total", Help: "Requests rejected by the circuit breaker."},
	{ID: goClerk.MetricDeviceTokenRotated, Name: "goclerk_device_token_rotated_total", Help: "Device tokens persisted from responses."},
	{ID: goClerk.MetricKeychainReadFailure, Name: "goclerk_keychain_read_failure_total", Help: "Keychain reads that failed."},
	{ID: goClerk.MetricKeychainWriteFailure, Name: "goclerk_keychain_write_failure_total", Help: "Keychain writes that failed."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goClerk.MetricRequestLatency, Name: "goclerk_request_latency_seconds", Help: "Frontend API round trip latency."},
}

// HistogramBounds are the finite upper bounds in seconds. The last snapshot
// bucket is +Inf.
var HistogramBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBucketCount is len(HistogramBounds) plus the +Inf bucket.
const HistogramBucketCount = 8

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [HistogramBucketCount]uint64 {
	var out [HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [HistogramBucketCount]uint64) [HistogramBucketCount]uint64 {
	var out [HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
