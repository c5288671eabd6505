package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goClerk/internal/pipeline"
	"github.com/MrEthical07/goClerk/resource"
)

type SignUpMetrics struct {
	SignUpCreate   int
	SignUpPrepare  int
	SignUpAttempt  int
	SignUpUpdate   int
	SignUpComplete int
	SignUpFailure  int
}

type SignUpEvents struct {
	SignUpCreate   string
	SignUpPrepare  string
	SignUpAttempt  string
	SignUpUpdate   string
	SignUpComplete string
}

// SignUpDeps captures sign-up flow dependencies.
type SignUpDeps struct {
	Client  ClientDeps
	Metrics SignUpMetrics
	Events  SignUpEvents
}

// RunSignUpCreate starts a new sign-up, superseding any draft in progress.
func RunSignUpCreate(ctx context.Context, params resource.SignUpCreateParams, deps SignUpDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)

	if err := checkParams(deps.Client, params); err != nil {
		return nil, err
	}
	if params.Strategy != nil {
		if err := checkStrategy(deps.Client, *params.Strategy); err != nil {
			return nil, err
		}
		params.RedirectURL = redirectFor(*params.Strategy, params.RedirectURL)
	}

	deps.Client.MetricInc(deps.Metrics.SignUpCreate)
	return runSignUp(ctx, deps, deps.Events.SignUpCreate, pipeline.Request{
		Method: http.MethodPost,
		Path:   "/v1/client/sign_ups",
		Body:   params,
	})
}

// RunSignUpUpdate supplies missing fields to the current sign-up.
func RunSignUpUpdate(ctx context.Context, params resource.SignUpUpdateParams, deps SignUpDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)

	id, err := currentSignUp(deps)
	if err != nil {
		return nil, err
	}
	if err := checkParams(deps.Client, params); err != nil {
		return nil, err
	}

	deps.Client.MetricInc(deps.Metrics.SignUpUpdate)
	return runSignUp(ctx, deps, deps.Events.SignUpUpdate, pipeline.Request{
		Method: http.MethodPatch,
		Path:   resourcePath("sign_ups", id),
		Body:   params,
	})
}

// RunSignUpPrepareVerification asks the backend to dispatch a challenge for
// the current sign-up.
func RunSignUpPrepareVerification(ctx context.Context, params resource.PrepareVerificationParams, deps SignUpDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)

	id, err := currentSignUp(deps)
	if err != nil {
		return nil, err
	}
	if err := checkStrategy(deps.Client, params.Strategy); err != nil {
		return nil, err
	}
	if err := checkParams(deps.Client, params); err != nil {
		return nil, err
	}
	params.RedirectURL = redirectFor(params.Strategy, params.RedirectURL)

	deps.Client.MetricInc(deps.Metrics.SignUpPrepare)
	return runSignUp(ctx, deps, deps.Events.SignUpPrepare, pipeline.Request{
		Method: http.MethodPost,
		Path:   resourcePath("sign_ups", id, "prepare_verification"),
		Body:   params,
	})
}

// RunSignUpAttemptVerification submits a challenge response for the current
// sign-up.
func RunSignUpAttemptVerification(ctx context.Context, params resource.AttemptVerificationParams, deps SignUpDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)

	id, err := currentSignUp(deps)
	if err != nil {
		return nil, err
	}
	secret := params.Code
	if params.Strategy.IsPassword() {
		secret = params.Password
	}
	if err := checkAttempt(deps.Client, params.Strategy, secret); err != nil {
		return nil, err
	}

	deps.Client.MetricInc(deps.Metrics.SignUpAttempt)
	return runSignUp(ctx, deps, deps.Events.SignUpAttempt, pipeline.Request{
		Method: http.MethodPost,
		Path:   resourcePath("sign_ups", id, "attempt_verification"),
		Body:   params,
	})
}

func currentSignUp(deps SignUpDeps) (string, error) {
	id := deps.Client.Current().SignUpID()
	if id == "" {
		return "", deps.Client.Local(deps.Client.Errors.SignUpNotStarted, "no sign-up in progress; call Create first")
	}
	return id, nil
}

func runSignUp(ctx context.Context, deps SignUpDeps, event string, req pipeline.Request) (*resource.Client, error) {
	signUp, client, err := exchange[*resource.SignUp](ctx, deps.Client, req)
	if err != nil {
		deps.Client.MetricInc(deps.Metrics.SignUpFailure)
		deps.Client.EmitAudit(ctx, event, false, clientID(deps.Client.Current()), "", err, nil)
		return nil, err
	}

	draft := client.SignUp
	if draft == nil {
		draft = signUp
	}
	resourceID := ""
	status := ""
	if draft != nil {
		resourceID = draft.ID
		status = string(draft.Status)
	}
	deps.Client.EmitAudit(ctx, event, true, clientID(client), resourceID, nil, func() map[string]string {
		return map[string]string{"status": status}
	})

	if draft != nil && draft.Status == resource.SignUpComplete {
		deps.Client.MetricInc(deps.Metrics.SignUpComplete)
		deps.Client.EmitAudit(ctx, deps.Events.SignUpComplete, true, clientID(client), resourceID, nil, func() map[string]string {
			return map[string]string{"session_id": draft.CreatedSessionID}
		})
	}
	return client, nil
}
