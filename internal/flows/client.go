package flows

import (
	"context"
	"fmt"
	"net/url"

	"github.com/MrEthical07/goClerk/internal/pipeline"
	"github.com/MrEthical07/goClerk/resource"
)

// ClientErrors carries the local precondition sentinels owned by the root
// package.
type ClientErrors struct {
	SignUpNotStarted   error
	SignInNotStarted   error
	NoActiveSession    error
	InvalidParams      error
	StrategyNotEnabled error
}

// ClientDeps is the dependency set shared by every flow that talks to the
// Frontend API and mutates the Client.
type ClientDeps struct {
	Send        func(context.Context, pipeline.Request, any) error
	Current     func() *resource.Client
	Apply       func(context.Context, *resource.Client) *resource.Client
	Environment func() *resource.Environment
	Validate    func(any) error
	Local       func(sentinel error, message string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, clientID, resourceID string, err error, metadata func() map[string]string)

	Errors ClientErrors
}

func normalizeClientDeps(deps *ClientDeps) {
	if deps.Current == nil {
		deps.Current = func() *resource.Client { return nil }
	}
	if deps.Apply == nil {
		deps.Apply = func(_ context.Context, c *resource.Client) *resource.Client { return c }
	}
	if deps.Environment == nil {
		deps.Environment = func() *resource.Environment { return nil }
	}
	if deps.Validate == nil {
		deps.Validate = func(any) error { return nil }
	}
	if deps.Local == nil {
		deps.Local = func(sentinel error, message string) error {
			return fmt.Errorf("%w: %s", sentinel, message)
		}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}

// exchange sends req, decodes the {response, client} envelope and applies the
// piggybacked client. Nothing is applied when the round trip fails.
func exchange[T any](ctx context.Context, deps ClientDeps, req pipeline.Request) (T, *resource.Client, error) {
	var env resource.ClientResponse[T]
	if err := deps.Send(ctx, req, &env); err != nil {
		var zero T
		return zero, nil, err
	}
	return env.Response, deps.Apply(ctx, env.ClientOrEmpty()), nil
}

func checkParams(deps ClientDeps, params any) error {
	if err := deps.Validate(params); err != nil {
		return deps.Local(deps.Errors.InvalidParams, err.Error())
	}
	return nil
}

func checkStrategy(deps ClientDeps, s resource.VerificationStrategy) error {
	if !s.Valid() {
		return deps.Local(deps.Errors.InvalidParams, "verification strategy is required")
	}
	if env := deps.Environment(); env != nil && !env.UserSettings.StrategyEnabled(s) {
		return deps.Local(deps.Errors.StrategyNotEnabled, fmt.Sprintf("strategy %s is not enabled for this instance", s))
	}
	return nil
}

// checkAttempt requires the secret the strategy submits.
func checkAttempt(deps ClientDeps, s resource.VerificationStrategy, secret string) error {
	if err := checkStrategy(deps, s); err != nil {
		return err
	}
	switch {
	case s.IsPassword() && secret == "":
		return deps.Local(deps.Errors.InvalidParams, "password is required")
	case s.NeedsCode() && secret == "":
		return deps.Local(deps.Errors.InvalidParams, "verification code is required")
	case !s.NeedsCode() && !s.IsPassword():
		return deps.Local(deps.Errors.InvalidParams, fmt.Sprintf("strategy %s cannot be attempted with a code", s))
	}
	return nil
}

func redirectFor(s resource.VerificationStrategy, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.RedirectURL()
}

func resourcePath(collection, id string, action ...string) string {
	p := "/v1/client/" + collection + "/" + url.PathEscape(id)
	for _, a := range action {
		p += "/" + a
	}
	return p
}

func clientID(c *resource.Client) string {
	if c == nil {
		return ""
	}
	return c.ID
}
