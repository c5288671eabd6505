package pipeline

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/goClerk/resource"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderDeviceID      = "x-native-device-id"
	HeaderClientID      = "x-clerk-client-id"
)

// RequestMiddleware decorates an outgoing request.
type RequestMiddleware func(ctx context.Context, req *http.Request)

// ResponseMiddleware inspects a response whose body has been fully read.
// A non-nil error stops the chain and is returned to the caller.
type ResponseMiddleware func(ctx context.Context, resp *http.Response, body []byte) error

// AuthorizationHeader attaches the device token when one is available.
func AuthorizationHeader(token func(context.Context) string) RequestMiddleware {
	return func(ctx context.Context, req *http.Request) {
		if tok := token(ctx); tok != "" {
			req.Header.Set(HeaderAuthorization, tok)
		}
	}
}

// DebugClientIDHeader attaches the current client id when debug mode is on and
// a client is known.
func DebugClientIDHeader(debug bool, clientID func() string) RequestMiddleware {
	return func(_ context.Context, req *http.Request) {
		if !debug {
			return
		}
		if id := clientID(); id != "" {
			req.Header.Set(HeaderClientID, id)
		}
	}
}

// DeviceIDHeader attaches the per-install device id to every request.
func DeviceIDHeader(deviceID func(context.Context) string) RequestMiddleware {
	return func(ctx context.Context, req *http.Request) {
		req.Header.Set(HeaderDeviceID, deviceID(ctx))
	}
}

// NativeHeaders marks the request as coming from a native (non-browser)
// client.
func NativeHeaders(userAgent string) RequestMiddleware {
	return func(_ context.Context, req *http.Request) {
		req.Header.Set("Accept", "application/json")
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}
		q := req.URL.Query()
		q.Set("_is_native", "true")
		req.URL.RawQuery = q.Encode()
	}
}

// DeviceTokenSaving persists a device token carried in the response
// Authorization header. It runs for every status code and never fails the
// request; save is called with a context that ignores caller cancellation.
func DeviceTokenSaving(save func(context.Context, string)) ResponseMiddleware {
	return func(ctx context.Context, resp *http.Response, _ []byte) error {
		if tok := resp.Header.Get(HeaderAuthorization); tok != "" {
			save(context.WithoutCancel(ctx), tok)
		}
		return nil
	}
}

// ErrorThrowing turns non-2xx responses into *APIError or *StatusError.
func ErrorThrowing() ResponseMiddleware {
	return func(_ context.Context, resp *http.Response, body []byte) error {
		return classify(resp.StatusCode, body)
	}
}

func classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var envelope resource.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		return &APIError{
			Status:      status,
			Code:        first.Code,
			Message:     first.Message,
			LongMessage: first.LongMessage,
			Meta:        first.Meta,
			TraceID:     envelope.TraceID,
		}
	}

	return &StatusError{StatusCode: status}
}
