package goClerk

import (
	"context"

	"github.com/MrEthical07/goClerk/internal/flows"
	"github.com/MrEthical07/goClerk/resource"
)

// SignUpFlow drives the sign-up attached to the Engine's Client. Steps after
// Create require a sign-up in progress and fail with ErrSignUpNotStarted
// without any request otherwise. Every successful step returns the Client
// as stored after the response.
type SignUpFlow struct {
	engine *Engine
}

// Current returns a copy of the in-progress sign-up, or nil.
func (f *SignUpFlow) Current() *resource.SignUp {
	return f.engine.store.Current().SignUpOrNil()
}

// Create starts a new sign-up, replacing any sign-up in progress.
func (f *SignUpFlow) Create(ctx context.Context, params resource.SignUpCreateParams) (*Client, error) {
	if err := f.engine.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunSignUpCreate(ctx, params, f.engine.flows.SignUp)
}

// Update supplies missing fields to the current sign-up.
func (f *SignUpFlow) Update(ctx context.Context, params resource.SignUpUpdateParams) (*Client, error) {
	if err := f.engine.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunSignUpUpdate(ctx, params, f.engine.flows.SignUp)
}

// PrepareVerification asks the backend to send a challenge for strategy.
func (f *SignUpFlow) PrepareVerification(ctx context.Context, strategy resource.VerificationStrategy) (*Client, error) {
	if err := f.engine.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunSignUpPrepareVerification(ctx, resource.PrepareVerificationParams{
		Strategy: strategy,
	}, f.engine.flows.SignUp)
}

// AttemptVerification submits the code received for strategy.
func (f *SignUpFlow) AttemptVerification(ctx context.Context, strategy resource.VerificationStrategy, code string) (*Client, error) {
	if err := f.engine.checkOpen(); err != nil {
		return nil, err
	}
	return flows.RunSignUpAttemptVerification(ctx, resource.AttemptVerificationParams{
		Strategy: strategy,
		Code:     code,
	}, f.engine.flows.SignUp)
}
