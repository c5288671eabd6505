package goClerk

import (
	"context"

	"github.com/MrEthical07/goClerk/internal/flows"
	"github.com/MrEthical07/goClerk/resource"
)

// SignInFlow drives the sign-in attached to the Engine's Client. Steps after
// Create fail with ErrSignInNotStarted, without any request, when no sign-in
// is in progress.
type SignInFlow struct {
	engine *Engine
}

// Current returns a copy of the in-progress sign-in, or nil.
func (f *SignInFlow) Current() *resource.SignIn {
	return f.engine.store.Current().SignInOrNil()
}

// Create starts a new sign-in. A password sign-in can complete in this single
// step.
func (f *SignInFlow) Create(ctx context.Context, params resource.SignInCreateParams) (*Client, error) {
	if err := f.engine.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunSignInCreate(ctx, params, f.engine.flows.SignIn)
}

// PrepareFirstFactor asks the backend to send a first factor challenge.
func (f *SignInFlow) PrepareFirstFactor(ctx context.Context, strategy resource.VerificationStrategy) (*Client, error) {
	return f.prepare(ctx, flows.FirstFactor, resource.PrepareFactorParams{Strategy: strategy})
}

// AttemptFirstFactor submits the first factor. For the password strategy
// secret is the password, otherwise the received code.
func (f *SignInFlow) AttemptFirstFactor(ctx context.Context, strategy resource.VerificationStrategy, secret string) (*Client, error) {
	return f.attempt(ctx, flows.FirstFactor, strategy, secret)
}

func (f *SignInFlow) PrepareSecondFactor(ctx context.Context, strategy resource.VerificationStrategy) (*Client, error) {
	return f.prepare(ctx, flows.SecondFactor, resource.PrepareFactorParams{Strategy: strategy})
}

func (f *SignInFlow) AttemptSecondFactor(ctx context.Context, strategy resource.VerificationStrategy, code string) (*Client, error) {
	return f.attempt(ctx, flows.SecondFactor, strategy, code)
}

// PrepareFactor is PrepareFirstFactor or PrepareSecondFactor with explicit
// parameters, for users with several email addresses or phone numbers.
func (f *SignInFlow) PrepareFactor(ctx context.Context, second bool, params resource.PrepareFactorParams) (*Client, error) {
	step := flows.FirstFactor
	if second {
		step = flows.SecondFactor
	}
	return f.prepare(ctx, step, params)
}

func (f *SignInFlow) prepare(ctx context.Context, step flows.FactorStep, params resource.PrepareFactorParams) (*Client, error) {
	if err := f.engine.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunSignInPrepareFactor(ctx, step, params, f.engine.flows.SignIn)
}

func (f *SignInFlow) attempt(ctx context.Context, step flows.FactorStep, strategy resource.VerificationStrategy, secret string) (*Client, error) {
	if err := f.engine.checkOpen(); err != nil {
		return nil, err
	}
	params := resource.AttemptFactorParams{Strategy: strategy}
	if strategy.IsPassword() {
		params.Password = secret
	} else {
		params.Code = secret
	}
	return flows.RunSignInAttemptFactor(ctx, step, params, f.engine.flows.SignIn)
}
