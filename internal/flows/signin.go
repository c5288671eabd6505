package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goClerk/internal/pipeline"
	"github.com/MrEthical07/goClerk/resource"
)

type SignInMetrics struct {
	SignInCreate   int
	SignInPrepare  int
	SignInAttempt  int
	SignInComplete int
	SignInFailure  int
}

type SignInEvents struct {
	SignInCreate   string
	SignInPrepare  string
	SignInAttempt  string
	SignInComplete string
}

// SignInDeps captures sign-in flow dependencies.
type SignInDeps struct {
	Client  ClientDeps
	Metrics SignInMetrics
	Events  SignInEvents
}

// FactorStep selects the first or second factor endpoints.
type FactorStep int

const (
	FirstFactor FactorStep = iota + 1
	SecondFactor
)

func (s FactorStep) String() string {
	if s == SecondFactor {
		return "second_factor"
	}
	return "first_factor"
}

// RunSignInCreate starts a new sign-in, superseding any draft in progress.
func RunSignInCreate(ctx context.Context, params resource.SignInCreateParams, deps SignInDeps) (*resource.Client, error) {
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
	if params.Strategy == nil && params.Identifier == "" {
		return nil, deps.Client.Local(deps.Client.Errors.InvalidParams, "identifier or strategy is required")
	}

	deps.Client.MetricInc(deps.Metrics.SignInCreate)
	return runSignIn(ctx, deps, deps.Events.SignInCreate, "", pipeline.Request{
		Method: http.MethodPost,
		Path:   "/v1/client/sign_ins",
		Body:   params,
	})
}

// RunSignInPrepareFactor asks the backend to dispatch a first or second
// factor challenge for the current sign-in.
func RunSignInPrepareFactor(ctx context.Context, step FactorStep, params resource.PrepareFactorParams, deps SignInDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)

	id, err := currentSignIn(deps)
	if err != nil {
		return nil, err
	}
	if err := checkStrategy(deps.Client, params.Strategy); err != nil {
		return nil, err
	}
	if err := checkParams(deps.Client, params); err != nil {
		return nil, err
	}
	if params.EmailAddressID == "" && params.PhoneNumberID == "" {
		fillIdentification(deps.Client.Current().SignIn, step, &params)
	}
	params.RedirectURL = redirectFor(params.Strategy, params.RedirectURL)

	deps.Client.MetricInc(deps.Metrics.SignInPrepare)
	return runSignIn(ctx, deps, deps.Events.SignInPrepare, step.String(), pipeline.Request{
		Method: http.MethodPost,
		Path:   resourcePath("sign_ins", id, "prepare_"+step.String()),
		Body:   params,
	})
}

// RunSignInAttemptFactor submits a first or second factor response for the
// current sign-in.
func RunSignInAttemptFactor(ctx context.Context, step FactorStep, params resource.AttemptFactorParams, deps SignInDeps) (*resource.Client, error) {
	normalizeClientDeps(&deps.Client)

	id, err := currentSignIn(deps)
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

	deps.Client.MetricInc(deps.Metrics.SignInAttempt)
	return runSignIn(ctx, deps, deps.Events.SignInAttempt, step.String(), pipeline.Request{
		Method: http.MethodPost,
		Path:   resourcePath("sign_ins", id, "attempt_"+step.String()),
		Body:   params,
	})
}

func currentSignIn(deps SignInDeps) (string, error) {
	id := deps.Client.Current().SignInID()
	if id == "" {
		return "", deps.Client.Local(deps.Client.Errors.SignInNotStarted, "no sign-in in progress; call Create first")
	}
	return id, nil
}

// fillIdentification picks the identification advertised for the strategy so
// callers need not look it up for the common single-address case.
func fillIdentification(signIn *resource.SignIn, step FactorStep, params *resource.PrepareFactorParams) {
	if signIn == nil {
		return
	}
	factors := signIn.SupportedFirstFactors
	if step == SecondFactor {
		factors = signIn.SupportedSecondFactors
	}
	tag := params.Strategy.String()
	for _, f := range factors {
		if f.Strategy != tag {
			continue
		}
		params.EmailAddressID = f.EmailAddressID
		params.PhoneNumberID = f.PhoneNumberID
		return
	}
}

func runSignIn(ctx context.Context, deps SignInDeps, event, step string, req pipeline.Request) (*resource.Client, error) {
	signIn, client, err := exchange[*resource.SignIn](ctx, deps.Client, req)
	if err != nil {
		deps.Client.MetricInc(deps.Metrics.SignInFailure)
		deps.Client.EmitAudit(ctx, event, false, clientID(deps.Client.Current()), "", err, func() map[string]string {
			return map[string]string{"step": step}
		})
		return nil, err
	}

	draft := client.SignIn
	if draft == nil {
		draft = signIn
	}
	resourceID := ""
	status := ""
	if draft != nil {
		resourceID = draft.ID
		status = string(draft.Status)
	}
	deps.Client.EmitAudit(ctx, event, true, clientID(client), resourceID, nil, func() map[string]string {
		return map[string]string{"status": status, "step": step}
	})

	if draft != nil && draft.Status == resource.SignInComplete {
		deps.Client.MetricInc(deps.Metrics.SignInComplete)
		deps.Client.EmitAudit(ctx, deps.Events.SignInComplete, true, clientID(client), resourceID, nil, func() map[string]string {
			return map[string]string{"session_id": draft.CreatedSessionID}
		})
	}
	return client, nil
}
