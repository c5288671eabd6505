package goClerk

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventClientLoad         = "client_load"
	auditEventSignUpCreate       = "sign_up_create"
	auditEventSignUpPrepare      = "sign_up_prepare_verification"
	auditEventSignUpAttempt      = "sign_up_attempt_verification"
	auditEventSignUpUpdate       = "sign_up_update"
	auditEventSignUpComplete     = "sign_up_complete"
	auditEventSignInCreate       = "sign_in_create"
	auditEventSignInPrepare      = "sign_in_prepare_factor"
	auditEventSignInAttempt      = "sign_in_attempt_factor"
	auditEventSignInComplete     = "sign_in_complete"
	auditEventSignOut            = "sign_out"
	auditEventSessionRemove      = "session_remove"
	auditEventDeviceTokenRotated = "device_token_rotated"
	auditEventKeychainFailure    = "keychain_failure"
)

// AuditErrorCode is the stable error classification written to
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrPrecondition   AuditErrorCode = "precondition_failed"
	auditErrTimeout        AuditErrorCode = "timeout"
	auditErrCircuitOpen    AuditErrorCode = "circuit_open"
	auditErrCanceled       AuditErrorCode = "canceled"
	auditErrAPI            AuditErrorCode = "api_error"
	auditErrStatus         AuditErrorCode = "unexpected_status"
	auditErrKeychain       AuditErrorCode = "keychain_error"
	auditErrTransport      AuditErrorCode = "transport_error"
	auditErrEngineClosed   AuditErrorCode = "engine_closed"
	auditErrUnauthorized   AuditErrorCode = "unauthorized"
	auditErrInvalidRequest AuditErrorCode = "invalid_request"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	clientID string,
	resourceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	metadata := cloneTags(auditTagsFromContext(ctx))
	if metadataBuilder != nil {
		for k, v := range metadataBuilder() {
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[k] = v
		}
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		ClientID:   clientID,
		ResourceID: resourceID,
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string)
		}
		event.Metadata["api_error_code"] = apiErr.Code
	}

	e.audit.Emit(ctx, event)
}

func cloneTags(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrPrecondition):
		return auditErrPrecondition
	case errors.Is(err, ErrEngineClosed):
		return auditErrEngineClosed
	case errors.Is(err, ErrTimeout):
		return auditErrTimeout
	case errors.Is(err, ErrCircuitOpen):
		return auditErrCircuitOpen
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.As(err, &apiErr):
		switch apiErr.Status {
		case 401, 403:
			return auditErrUnauthorized
		case 400, 404, 422:
			return auditErrInvalidRequest
		}
		return auditErrAPI
	case errors.As(err, &statusErr):
		return auditErrStatus
	case errors.Is(err, errKeychain):
		return auditErrKeychain
	default:
		return auditErrTransport
	}
}

// errKeychain marks keychain failures reported through audit.
var errKeychain = errors.New("keychain failure")
