package goClerk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goClerk/internal/fapitest"
	"github.com/MrEthical07/goClerk/internal/identity"
	"github.com/MrEthical07/goClerk/keychain"
	"github.com/MrEthical07/goClerk/resource"
)

const (
	tokensRoute   = "POST /v1/client/sessions/{id}/tokens"
	envRoute      = "GET /v1/environment"
	signUpsRoute  = "POST /v1/client/sign_ups"
	signOutRoute  = "DELETE /v1/client"
	testEmail     = "a@b.com"
	testPassword  = "correct-horse"
	existingEmail = "user@example.com"
)

func newTestKeychain() *keychain.Memory {
	return keychain.NewMemory()
}

type testEngine struct {
	*Engine
	server   *fapitest.Server
	keychain *keychain.Memory
}

func newTestEngine(t *testing.T, opts fapitest.Options, mutate ...func(*Config, *Builder)) *testEngine {
	t.Helper()
	srv := fapitest.New(opts)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	kc := newTestKeychain()
	b := New().WithKeychain(kc)
	for _, m := range mutate {
		m(&cfg, b)
	}
	e, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(e.Close)
	return &testEngine{Engine: e, server: srv, keychain: kc}
}

func (te *testEngine) deviceToken(t *testing.T) string {
	t.Helper()
	tok, err := te.keychain.String(context.Background(), identity.TokenKey)
	if errors.Is(err, keychain.ErrNotFound) {
		return ""
	}
	if err != nil {
		t.Fatalf("keychain read: %v", err)
	}
	return tok
}

func (te *testEngine) signUp(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	flow := te.SignUp()
	if _, err := flow.Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := flow.PrepareVerification(ctx, resource.EmailCode); err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	if _, err := flow.AttemptVerification(ctx, resource.EmailCode, fapitest.DefaultCode); err != nil {
		t.Fatalf("AttemptVerification: %v", err)
	}
}

func TestSignUpScenario(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	ctx := context.Background()
	flow := te.SignUp()

	client, err := flow.Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail, Password: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := client.SignUpID()
	if id == "" || client.SignUp.Status != resource.SignUpNeedsVerification {
		t.Fatalf("unexpected sign-up after create: %+v", client.SignUp)
	}
	if got := te.Client().SignUpID(); got != id {
		t.Fatalf("store sign-up id = %q, want %q", got, id)
	}

	client, err = flow.PrepareVerification(ctx, resource.EmailCode)
	if err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	if client.SignUpID() != id {
		t.Fatalf("sign-up id changed to %q", client.SignUpID())
	}

	client, err = flow.AttemptVerification(ctx, resource.EmailCode, fapitest.DefaultCode)
	if err != nil {
		t.Fatalf("AttemptVerification: %v", err)
	}
	if client.SignUp.Status != resource.SignUpComplete {
		t.Fatalf("status = %q, want complete", client.SignUp.Status)
	}

	stored := te.Client()
	if stored.SignUp.Status != resource.SignUpComplete {
		t.Fatalf("stored status = %q", stored.SignUp.Status)
	}
	active := stored.ActiveSession()
	if active == nil || active.ID == "" || active.ID != stored.SignUp.CreatedSessionID {
		t.Fatalf("expected active session %q, got %+v", stored.SignUp.CreatedSessionID, active)
	}
	if active.SubjectID() == "" {
		t.Fatal("active session has no user")
	}
	if !strings.HasPrefix(te.deviceToken(t), fapitest.TokenPrefix) {
		t.Fatalf("device token not persisted: %q", te.deviceToken(t))
	}
}

func TestPreconditionsMakeNoRequests(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	ctx := context.Background()

	_, err := te.SignUp().PrepareVerification(ctx, resource.EmailCode)
	if !errors.Is(err, ErrSignUpNotStarted) || !errors.Is(err, ErrPrecondition) {
		t.Fatalf("PrepareVerification: expected ErrSignUpNotStarted, got %v", err)
	}
	_, err = te.SignUp().AttemptVerification(ctx, resource.EmailCode, "424242")
	if !errors.Is(err, ErrSignUpNotStarted) {
		t.Fatalf("AttemptVerification: expected ErrSignUpNotStarted, got %v", err)
	}
	_, err = te.SignUp().Update(ctx, resource.SignUpUpdateParams{FirstName: "A"})
	if !errors.Is(err, ErrSignUpNotStarted) {
		t.Fatalf("Update: expected ErrSignUpNotStarted, got %v", err)
	}
	_, err = te.SignIn().PrepareFirstFactor(ctx, resource.EmailCode)
	if !errors.Is(err, ErrSignInNotStarted) {
		t.Fatalf("PrepareFirstFactor: expected ErrSignInNotStarted, got %v", err)
	}
	_, err = te.SignIn().AttemptSecondFactor(ctx, resource.TOTP, "424242")
	if !errors.Is(err, ErrSignInNotStarted) {
		t.Fatalf("AttemptSecondFactor: expected ErrSignInNotStarted, got %v", err)
	}
	_, err = te.SessionToken(ctx, TokenOptions{})
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("SessionToken: expected ErrNoActiveSession, got %v", err)
	}
	_, err = te.SignUp().Create(ctx, resource.SignUpCreateParams{EmailAddress: "not-an-email"})
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("Create: expected ErrInvalidParams, got %v", err)
	}

	var ce *ClientError
	if !errors.As(err, &ce) || ce.Message == "" {
		t.Fatalf("expected *ClientError with message, got %T", err)
	}
	if got := te.server.Requests(); got != 0 {
		t.Fatalf("expected zero requests, got %d", got)
	}
	if te.Client() != nil {
		t.Fatal("store must stay empty")
	}
}

func TestErrorResponseStillRotatesDeviceToken(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	ctx := context.Background()

	if _, err := te.SignUp().Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := te.deviceToken(t)
	snap := te.Snapshot()

	_, err := te.SignUp().AttemptVerification(ctx, resource.EmailCode, "000000")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Code != "verification_not_sent" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}

	after := te.deviceToken(t)
	if after == "" || after == before {
		t.Fatalf("device token not rotated on 422: before=%q after=%q", before, after)
	}
	if te.Snapshot().Version != snap.Version {
		t.Fatal("failed call must not replace the client")
	}

	if _, err := te.SignUp().PrepareVerification(ctx, resource.EmailCode); err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	_, err = te.SignUp().AttemptVerification(ctx, resource.EmailCode, "000000")
	if !IsAPIErrorCode(err, "form_code_incorrect") {
		t.Fatalf("expected form_code_incorrect, got %v", err)
	}
}

func TestRequestHeaders(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{}, func(c *Config, _ *Builder) {
		c.Debug = true
		c.API.UserAgent = "goclerk-test"
	})
	ctx := context.Background()

	if _, err := te.SignUp().Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := te.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	headers := te.server.Headers()
	if len(headers) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(headers))
	}
	deviceID := te.DeviceID(ctx)
	for i, h := range headers {
		if got := h.Get("x-native-device-id"); got != deviceID {
			t.Fatalf("request %d device id = %q, want %q", i, got, deviceID)
		}
		if got := h.Get("User-Agent"); got != "goclerk-test" {
			t.Fatalf("request %d user agent = %q", i, got)
		}
	}
	if headers[0].Get("Authorization") != "" || headers[0].Get("x-clerk-client-id") != "" {
		t.Fatalf("first request must carry no token or client id: %v", headers[0])
	}
	if !strings.HasPrefix(headers[1].Get("Authorization"), fapitest.TokenPrefix) {
		t.Fatalf("second request missing device token: %v", headers[1])
	}
	if id := te.Client().ID; id == "" || headers[1].Get("x-clerk-client-id") != id {
		t.Fatalf("second request client id = %q, want %q", headers[1].Get("x-clerk-client-id"), te.Client().ID)
	}
}

func TestSignInWithEmailCode(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.server.AddUser(existingEmail, testPassword, false)
	ctx := context.Background()
	flow := te.SignIn()

	client, err := flow.Create(ctx, resource.SignInCreateParams{Identifier: existingEmail})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if client.SignIn.Status != resource.SignInNeedsFirstFactor {
		t.Fatalf("status = %q", client.SignIn.Status)
	}
	if _, err := flow.PrepareFirstFactor(ctx, resource.EmailCode); err != nil {
		t.Fatalf("PrepareFirstFactor: %v", err)
	}
	if _, err := flow.AttemptFirstFactor(ctx, resource.EmailCode, "111111"); !IsAPIErrorCode(err, "form_code_incorrect") {
		t.Fatalf("expected form_code_incorrect, got %v", err)
	}
	client, err = flow.AttemptFirstFactor(ctx, resource.EmailCode, fapitest.DefaultCode)
	if err != nil {
		t.Fatalf("AttemptFirstFactor: %v", err)
	}
	if client.SignIn.Status != resource.SignInComplete || client.ActiveSession() == nil {
		t.Fatalf("expected completed sign-in with session, got %+v", client)
	}
	if flow.Current() == nil || flow.Current().ID != client.SignIn.ID {
		t.Fatal("Current must report the stored sign-in")
	}
}

func TestSignInPasswordWithSecondFactor(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.server.AddUser(existingEmail, testPassword, true)
	ctx := context.Background()
	flow := te.SignIn()

	client, err := flow.Create(ctx, resource.SignInCreateParams{Identifier: existingEmail, Password: testPassword})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if client.SignIn.Status != resource.SignInNeedsSecondFactor {
		t.Fatalf("status = %q, want needs_second_factor", client.SignIn.Status)
	}
	if client.ActiveSession() != nil {
		t.Fatal("no session before the second factor")
	}

	client, err = flow.AttemptSecondFactor(ctx, resource.TOTP, fapitest.DefaultCode)
	if err != nil {
		t.Fatalf("AttemptSecondFactor: %v", err)
	}
	if client.SignIn.Status != resource.SignInComplete || client.ActiveSession() == nil {
		t.Fatalf("expected completed sign-in, got %+v", client.SignIn)
	}
}

func TestSignInAttemptPasswordFirstFactor(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.server.AddUser(existingEmail, testPassword, false)
	ctx := context.Background()
	flow := te.SignIn()

	if _, err := flow.Create(ctx, resource.SignInCreateParams{Identifier: existingEmail}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := flow.AttemptFirstFactor(ctx, resource.Password, ""); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams for empty password, got %v", err)
	}
	client, err := flow.AttemptFirstFactor(ctx, resource.Password, testPassword)
	if err != nil {
		t.Fatalf("AttemptFirstFactor: %v", err)
	}
	if client.ActiveSession() == nil {
		t.Fatal("expected active session")
	}
}

func TestSessionTokenCache(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{TokenTTL: time.Minute})
	te.signUp(t)
	ctx := context.Background()

	first, err := te.SessionToken(ctx, TokenOptions{})
	if err != nil {
		t.Fatalf("SessionToken: %v", err)
	}
	second, err := te.SessionToken(ctx, TokenOptions{})
	if err != nil {
		t.Fatalf("SessionToken: %v", err)
	}
	if first != second {
		t.Fatal("expected the cached token")
	}
	if got := te.server.Calls(tokensRoute); got != 1 {
		t.Fatalf("token fetches = %d, want 1", got)
	}

	if _, err := te.SessionToken(ctx, TokenOptions{SkipCache: true}); err != nil {
		t.Fatalf("SessionToken skip cache: %v", err)
	}
	if got := te.server.Calls(tokensRoute); got != 2 {
		t.Fatalf("token fetches = %d, want 2", got)
	}

	_, claims, err := te.SessionClaims(ctx, TokenOptions{Template: "supabase"})
	if err != nil {
		t.Fatalf("SessionClaims template: %v", err)
	}
	if claims.SessionID != te.Client().ActiveSession().ID {
		t.Fatalf("sid = %q, want active session", claims.SessionID)
	}
	if got := te.server.Calls(tokensRoute + "/{template}"); got != 1 {
		t.Fatalf("template fetches = %d, want 1", got)
	}
}

func TestSessionTokenLeewayForcesRefetch(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{TokenTTL: 5 * time.Second}, func(c *Config, _ *Builder) {
		c.SessionToken.RefreshLeeway = 10 * time.Second
	})
	te.signUp(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := te.SessionToken(ctx, TokenOptions{}); err != nil {
			t.Fatalf("SessionToken: %v", err)
		}
	}
	if got := te.server.Calls(tokensRoute); got != 3 {
		t.Fatalf("token fetches = %d, want 3", got)
	}
}

func TestSessionTokenVerified(t *testing.T) {
	srv := fapitest.New(fapitest.Options{})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.SessionToken.PublicKeyPEM = srv.PublicKeyPEM()
	cfg.SessionToken.Issuer = srv.Issuer()
	e, err := New().WithConfig(cfg).WithKeychain(newTestKeychain()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()

	te := &testEngine{Engine: e, server: srv}
	te.signUp(t)

	_, claims, err := e.SessionClaims(context.Background(), TokenOptions{})
	if err != nil {
		t.Fatalf("SessionClaims: %v", err)
	}
	if claims.Issuer != srv.Issuer() || claims.Subject == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSessionTokenConcurrentCallersShareFetch(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.signUp(t)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = te.SessionToken(ctx, TokenOptions{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if tokens[i] == "" {
			t.Fatalf("caller %d got empty token", i)
		}
	}
	if got := te.server.Calls(tokensRoute); got >= callers {
		t.Fatalf("token fetches = %d, expected coalescing", got)
	}
}

func TestSignOutClearsLocalStateEvenOnFailure(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.signUp(t)
	ctx := context.Background()
	if _, err := te.SessionToken(ctx, TokenOptions{}); err != nil {
		t.Fatalf("SessionToken: %v", err)
	}

	te.server.Fail(signOutRoute, http.StatusInternalServerError, "")
	err := te.SignOut(ctx)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected *StatusError 500, got %v", err)
	}

	if tok := te.deviceToken(t); tok != "" {
		t.Fatalf("device token must be cleared, got %q", tok)
	}
	client := te.Client()
	if client == nil || client.ID != "" || client.ActiveSession() != nil {
		t.Fatalf("expected empty client, got %+v", client)
	}
	if _, err := te.SessionToken(ctx, TokenOptions{}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession after sign out, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.signUp(t)

	if err := te.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if te.Client().ActiveSession() != nil {
		t.Fatal("session survived sign out")
	}
	if got := te.server.Calls(signOutRoute); got != 1 {
		t.Fatalf("sign out calls = %d", got)
	}
}

func TestRemoveSession(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.signUp(t)
	ctx := context.Background()
	id := te.Client().ActiveSession().ID

	client, err := te.RemoveSession(ctx, id)
	if err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}
	if client.ActiveSession() != nil {
		t.Fatal("removed session still active")
	}
	if _, err := te.RemoveSession(ctx, ""); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if _, err := te.RemoveSession(ctx, "sess_missing"); !IsAPIErrorCode(err, "resource_not_found") {
		t.Fatalf("expected resource_not_found, got %v", err)
	}
}

func TestEnvironmentCached(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	ctx := context.Background()

	if te.CachedEnvironment() != nil {
		t.Fatal("environment cached before any fetch")
	}
	env, err := te.Environment(ctx)
	if err != nil {
		t.Fatalf("Environment: %v", err)
	}
	if env.DisplayConfig.ApplicationName != "fapitest" {
		t.Fatalf("unexpected environment %+v", env.DisplayConfig)
	}
	if _, err := te.Environment(ctx); err != nil {
		t.Fatalf("Environment: %v", err)
	}
	if got := te.server.Calls(envRoute); got != 1 {
		t.Fatalf("environment fetches = %d, want 1", got)
	}
	if _, err := te.RefreshEnvironment(ctx); err != nil {
		t.Fatalf("RefreshEnvironment: %v", err)
	}
	if got := te.server.Calls(envRoute); got != 2 {
		t.Fatalf("environment fetches = %d, want 2", got)
	}
	if te.Client() != nil {
		t.Fatal("environment fetch must not touch the client")
	}
}

func TestEnvironmentGatesStrategies(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	ctx := context.Background()

	if _, err := te.Environment(ctx); err != nil {
		t.Fatalf("Environment: %v", err)
	}
	if _, err := te.SignUp().Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := te.server.Requests()

	_, err := te.SignUp().PrepareVerification(ctx, resource.PhoneCode)
	if !errors.Is(err, ErrStrategyNotEnabled) {
		t.Fatalf("expected ErrStrategyNotEnabled, got %v", err)
	}
	if te.server.Requests() != before {
		t.Fatal("rejected strategy must not reach the server")
	}
}

func TestTimeoutAppliesNothing(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{Latency: 300 * time.Millisecond}, func(c *Config, _ *Builder) {
		c.API.Timeout = 50 * time.Millisecond
	})

	_, err := te.SignUp().Create(context.Background(), resource.SignUpCreateParams{EmailAddress: testEmail})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if te.Client() != nil {
		t.Fatal("timed out call must not apply a client")
	}
}

func TestCancelledCallAppliesNothing(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{Latency: 300 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := te.Load(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline error, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatal("caller cancellation must not be reported as ErrTimeout")
	}
	if te.Client() != nil {
		t.Fatal("cancelled call must not apply a client")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	ch, unsubscribe := te.Subscribe(4)
	defer unsubscribe()

	client, err := te.SignUp().Create(context.Background(), resource.SignUpCreateParams{EmailAddress: testEmail})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case snap := <-ch:
		if snap.Client.SignUpID() != client.SignUpID() || snap.Version != 1 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestClosedEngineRejectsCalls(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{})
	te.Close()

	if _, err := te.Load(context.Background()); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
	if _, err := te.Environment(context.Background()); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
	if te.server.Requests() != 0 {
		t.Fatal("closed engine reached the server")
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	te := newTestEngine(t, fapitest.Options{}, func(c *Config, _ *Builder) {
		c.CircuitBreaker.Enabled = true
		c.CircuitBreaker.MinRequests = 2
		c.CircuitBreaker.FailureRatio = 0.5
		c.CircuitBreaker.OpenTimeout = time.Minute
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		te.server.Fail(signUpsRoute, http.StatusBadGateway, "")
		if _, err := te.SignUp().Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail}); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	before := te.server.Requests()
	_, err := te.SignUp().Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if te.server.Requests() != before {
		t.Fatal("open breaker must not reach the server")
	}
}
