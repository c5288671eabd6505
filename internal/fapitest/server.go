// Package fapitest runs an in-memory Frontend API for tests and load runs.
//
// The fake covers the client, sign-up, sign-in, session and environment
// endpoints with deterministic codes. Every response carries a freshly
// rotated device token in the Authorization header, including error
// responses, and every request is counted per route so callers can assert
// that a call stayed local.
package fapitest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goClerk/resource"
	"github.com/go-chi/chi/v5"
)

const (
	// DefaultCode is accepted by every code-based verification.
	DefaultCode = "424242"
	// TokenPrefix starts every device token the fake issues.
	TokenPrefix = "dvb_"
)

// Options tweak the fake. The zero value is usable.
type Options struct {
	// Code overrides DefaultCode.
	Code string
	// Environment is served from GET /v1/environment. Defaults to an
	// instance with email code, password and TOTP enabled.
	Environment *resource.Environment
	// TokenTTL is the lifetime of minted session tokens. Defaults to 60s.
	TokenTTL time.Duration
	// Latency delays every response.
	Latency time.Duration
}

// Server is an httptest.Server speaking the Frontend API.
type Server struct {
	*httptest.Server

	opts Options
	key  *rsa.PrivateKey

	mu       sync.Mutex
	clients  map[string]*clientState // by device token
	users    map[string]*userState   // by email address
	seq      int
	failures []injectedFailure
	calls    map[string]int
	headers  []http.Header

	requests atomic.Int64
}

type clientState struct {
	client  resource.Client
	secrets map[string]string // sign-up password by sign-up id
}

type userState struct {
	user         resource.User
	email        string
	password     string
	secondFactor bool
}

type injectedFailure struct {
	route  string
	status int
	code   string
}

// New starts a fake server. Call Close when done.
func New(opts Options) *Server {
	if opts.Code == "" {
		opts.Code = DefaultCode
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Minute
	}
	if opts.Environment == nil {
		opts.Environment = DefaultEnvironment()
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("fapitest: generate key: %v", err))
	}

	s := &Server{
		opts:    opts,
		key:     key,
		clients: make(map[string]*clientState),
		users:   make(map[string]*userState),
		calls:   make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)
	r.Use(s.inject)

	r.Get("/v1/environment", s.environment)

	r.Route("/v1/client", func(r chi.Router) {
		r.Get("/", s.getClient)
		r.Delete("/", s.deleteClient)

		r.Post("/sign_ups", s.createSignUp)
		r.Patch("/sign_ups/{id}", s.updateSignUp)
		r.Post("/sign_ups/{id}/prepare_verification", s.prepareSignUp)
		r.Post("/sign_ups/{id}/attempt_verification", s.attemptSignUp)

		r.Post("/sign_ins", s.createSignIn)
		r.Post("/sign_ins/{id}/prepare_first_factor", s.prepareFactor(1))
		r.Post("/sign_ins/{id}/attempt_first_factor", s.attemptFactor(1))
		r.Post("/sign_ins/{id}/prepare_second_factor", s.prepareFactor(2))
		r.Post("/sign_ins/{id}/attempt_second_factor", s.attemptFactor(2))

		r.Post("/sessions/{id}/remove", s.removeSession)
		r.Post("/sessions/{id}/tokens", s.mintToken)
		r.Post("/sessions/{id}/tokens/{template}", s.mintToken)
	})
	return r
}

// DefaultEnvironment enables email codes, passwords and TOTP second factors.
func DefaultEnvironment() *resource.Environment {
	return &resource.Environment{
		AuthConfig: resource.AuthConfig{ID: "aac_test", SingleSessionMode: true},
		DisplayConfig: resource.DisplayConfig{
			ApplicationName: "fapitest",
			InstanceType:    "development",
		},
		UserSettings: resource.UserSettings{
			Attributes: map[string]resource.Attribute{
				"email_address": {
					Enabled:            true,
					Required:           true,
					UsedForFirstFactor: true,
					FirstFactors:       []string{"email_code"},
					VerifyAtSignUp:     true,
					Verifications:      []string{"email_code"},
				},
				"password": {Enabled: true, Required: false},
				"authenticator_app": {
					Enabled:             true,
					UsedForSecondFactor: true,
					SecondFactors:       []string{"totp"},
				},
			},
			SignUp: resource.SignUpSettings{Mode: "public"},
		},
	}
}

// PublicKeyPEM returns the PEM encoded key that verifies minted session
// tokens.
func (s *Server) PublicKeyPEM() []byte {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		panic(fmt.Sprintf("fapitest: marshal public key: %v", err))
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// Issuer is the iss claim of minted session tokens.
func (s *Server) Issuer() string {
	return s.URL
}

// AddUser registers an existing user that can sign in with email and
// password. With secondFactor the sign-in additionally requires a TOTP code.
func (s *Server) AddUser(email, password string, secondFactor bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUserLocked(email, password, secondFactor)
}

func (s *Server) addUserLocked(email, password string, secondFactor bool) *userState {
	id := s.nextID("user")
	u := &userState{
		email:        email,
		password:     password,
		secondFactor: secondFactor,
		user: resource.User{
			ID:                    id,
			PrimaryEmailAddressID: "idn_" + id,
			PasswordEnabled:       password != "",
			TwoFactorEnabled:      secondFactor,
			EmailAddresses: []resource.EmailAddress{{
				ID:           "idn_" + id,
				EmailAddress: email,
				Verification: &resource.Verification{Status: resource.VerificationVerified, Strategy: "email_code"},
			}},
			CreatedAt: time.Now().UnixMilli(),
		},
	}
	s.users[strings.ToLower(email)] = u
	return u
}

// Fail makes the next request to route answer with status and, when code is
// not empty, a structured error body. route is "METHOD /pattern", for
// example "POST /v1/client/sign_ups".
func (s *Server) Fail(route string, status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, injectedFailure{route: route, status: status, code: code})
}

// Requests returns how many requests reached the server.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Calls returns how many requests matched route ("METHOD /pattern").
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Headers returns a copy of the request headers received so far, in order.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	for i, h := range s.headers {
		out[i] = h.Clone()
	}
	return out
}

// IssuedTokens reports how many device tokens the fake has issued.
func (s *Server) IssuedTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()

		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)

		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			s.mu.Lock()
			s.calls[r.Method+" "+strings.TrimSuffix(rctx.RoutePattern(), "/")]++
			s.mu.Unlock()
		}
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + strings.TrimSuffix(r.URL.Path, "/")

		s.mu.Lock()
		var hit *injectedFailure
		for i, f := range s.failures {
			if routeMatches(f.route, route) {
				hit = &f
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				break
			}
		}
		var token string
		if hit != nil {
			_, token = s.sessionLocked(r)
		}
		s.mu.Unlock()

		if hit == nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Authorization", token)
		if hit.code == "" {
			w.WriteHeader(hit.status)
			return
		}
		writeError(w, hit.status, hit.code, "injected failure")
	})
}

// routeMatches compares a "METHOD /pattern" with {param} segments against a
// concrete "METHOD /path".
func routeMatches(pattern, route string) bool {
	ps := strings.Split(pattern, "/")
	rs := strings.Split(route, "/")
	if len(ps) != len(rs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], "{") && strings.HasSuffix(ps[i], "}") {
			continue
		}
		if ps[i] != rs[i] {
			return false
		}
	}
	return true
}

// sessionLocked resolves the client for the request's device token, creating
// one for unknown devices, and issues a new token. Earlier tokens stay valid
// so concurrent requests from one device resolve to the same client.
func (s *Server) sessionLocked(r *http.Request) (*clientState, string) {
	st, ok := s.clients[r.Header.Get("Authorization")]
	if !ok {
		st = &clientState{
			client:  resource.Client{ID: s.nextID("client"), Object: "client"},
			secrets: make(map[string]string),
		}
	}
	token := TokenPrefix + s.nextID("tok")
	s.clients[token] = st
	st.client.UpdatedAt = time.Now().UnixMilli()
	return st, token
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%04d", prefix, s.seq)
}

type envelope struct {
	Response any              `json:"response"`
	Client   *resource.Client `json:"client"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody(code, message))
}

func errorBody(code, message string) resource.ErrorResponse {
	return resource.ErrorResponse{
		Errors:  []resource.Error{{Code: code, Message: message, LongMessage: message}},
		TraceID: "trace_" + code,
	}
}
