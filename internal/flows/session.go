package flows

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goClerk/internal/pipeline"
	"github.com/MrEthical07/goClerk/resource"
)

type SessionMetrics struct {
	ClientLoad        int
	SignOut           int
	SessionRemove     int
	SessionToken      int
	SessionTokenError int
}

type SessionEvents struct {
	ClientLoad    string
	SignOut       string
	SessionRemove string
}

// SessionDeps captures client lifecycle and session dependencies.
type SessionDeps struct {
	Client           ClientDeps
	ClearDeviceToken func(context.Context)
	Metrics          SessionMetrics
	Events           SessionEvents
}

// RunLoadClient fetches the current Client and applies it. The endpoint
// returns the client as the response body; the piggybacked field is used
// when the body is empty.
func RunLoadClient(ctx context.Context, deps SessionDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)
	deps.Client.MetricInc(deps.Metrics.ClientLoad)

	var env resource.ClientResponse[*resource.Client]
	if err := deps.Client.Send(ctx, pipeline.Request{Method: http.MethodGet, Path: "/v1/client"}, &env); err != nil {
		deps.Client.EmitAudit(ctx, deps.Events.ClientLoad, false, "", "", err, nil)
		return nil, err
	}
	loaded := env.Response
	if loaded == nil {
		loaded = env.ClientOrEmpty()
	}
	applied := deps.Client.Apply(ctx, loaded)
	deps.Client.EmitAudit(ctx, deps.Events.ClientLoad, true, clientID(applied), "", nil, nil)
	return applied, nil
}

// RunSignOut ends every session on this client. The device token and the
// local Client are cleared even when the request fails; the request error is
// still returned.
func RunSignOut(ctx context.Context, deps SessionDeps) error {
	normalizeClientDeps(&deps.Client)
	deps.Client.MetricInc(deps.Metrics.SignOut)
	previous := clientID(deps.Client.Current())

	err := deps.Client.Send(ctx, pipeline.Request{Method: http.MethodDelete, Path: "/v1/client"}, nil)

	if deps.ClearDeviceToken != nil {
		deps.ClearDeviceToken(context.WithoutCancel(ctx))
	}
	deps.Client.Apply(ctx, &resource.Client{})
	deps.Client.EmitAudit(ctx, deps.Events.SignOut, err == nil, previous, "", err, nil)
	return err
}

// RunRemoveSession signs out a single session.
func RunRemoveSession(ctx context.Context, sessionID string, deps SessionDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)
	if sessionID == "" {
		return nil, deps.Client.Local(deps.Client.Errors.InvalidParams, "session id is required")
	}
	deps.Client.MetricInc(deps.Metrics.SessionRemove)

	_, client, err := exchange[*resource.Session](ctx, deps.Client, pipeline.Request{
		Method: http.MethodPost,
		Path:   resourcePath("sessions", sessionID, "remove"),
	})
	if err != nil {
		deps.Client.EmitAudit(ctx, deps.Events.SessionRemove, false, clientID(deps.Client.Current()), sessionID, err, nil)
		return nil, err
	}
	deps.Client.EmitAudit(ctx, deps.Events.SessionRemove, true, clientID(client), sessionID, nil, nil)
	return client, nil
}

// RunFetchSessionToken mints a session JWT for the active session, optionally
// shaped by a JWT template. The token endpoint does not return a Client.
func RunFetchSessionToken(ctx context.Context, template string, deps SessionDeps) (sessionID, token string, err error) {
	normalizeClientDeps(&deps.Client)

	session := deps.Client.Current().ActiveSession()
	if session == nil {
		return "", "", deps.Client.Local(deps.Client.Errors.NoActiveSession, "no active session on this client")
	}

	path := resourcePath("sessions", session.ID, "tokens")
	if template != "" {
		path += "/" + url.PathEscape(template)
	}

	deps.Client.MetricInc(deps.Metrics.SessionToken)
	var out resource.TokenResponse
	if err := deps.Client.Send(ctx, pipeline.Request{Method: http.MethodPost, Path: path}, &out); err != nil {
		deps.Client.MetricInc(deps.Metrics.SessionTokenError)
		return session.ID, "", err
	}
	return session.ID, out.JWT, nil
}
