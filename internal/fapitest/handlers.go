package fapitest

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goClerk/resource"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type result struct {
	status   int
	response any
	envelope bool
	code     string
	message  string
}

func ok(response any) result {
	return result{status: http.StatusOK, response: response, envelope: true}
}

func fail(status int, code, message string) result {
	return result{status: status, code: code, message: message}
}

// serve runs fn under the server lock with the request's client and writes
// the result with a rotated device token. The payload is encoded before the
// lock is released.
func (s *Server) serve(fn func(r *http.Request, st *clientState) result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		st, token := s.sessionLocked(r)
		res := fn(r, st)
		var payload any
		switch {
		case res.code != "":
			payload = errorBody(res.code, res.message)
		case res.envelope:
			env := envelope{Response: res.response}
			if st.client.ID != "" {
				env.Client = &st.client
			}
			payload = env
		default:
			payload = res.response
		}
		data, err := json.Marshal(payload)
		s.mu.Unlock()

		w.Header().Set("Authorization", token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.status)
		_, _ = w.Write(data)
	}
}

type body struct {
	EmailAddress   string `json:"email_address"`
	PhoneNumber    string `json:"phone_number"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Identifier     string `json:"identifier"`
	Strategy       string `json:"strategy"`
	Code           string `json:"code"`
	EmailAddressID string `json:"email_address_id"`
}

func decode(r *http.Request) (body, bool) {
	var b body
	if r.Body == nil || r.ContentLength == 0 {
		return b, true
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		return b, false
	}
	return b, true
}

func badBody() result {
	return fail(http.StatusBadRequest, "malformed_request_body", "request body is not valid JSON")
}

/*
====================================
ENVIRONMENT / CLIENT
====================================
*/

func (s *Server) environment(w http.ResponseWriter, r *http.Request) {
	s.serve(func(*http.Request, *clientState) result {
		return result{status: http.StatusOK, response: s.opts.Environment}
	})(w, r)
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	s.serve(func(_ *http.Request, st *clientState) result {
		return ok(st.client.Clone())
	})(w, r)
}

func (s *Server) deleteClient(w http.ResponseWriter, r *http.Request) {
	s.serve(func(_ *http.Request, st *clientState) result {
		for i := range st.client.Sessions {
			if st.client.Sessions[i].Status == resource.SessionActive {
				st.client.Sessions[i].Status = resource.SessionEnded
			}
		}
		ended := st.client.Clone()
		st.client = resource.Client{}
		return result{status: http.StatusOK, response: ended, envelope: true}
	})(w, r)
}

/*
====================================
SIGN UP
====================================
*/

func (s *Server) createSignUp(w http.ResponseWriter, r *http.Request) {
	s.serve(func(r *http.Request, st *clientState) result {
		b, valid := decode(r)
		if !valid {
			return badBody()
		}
		if _, exists := s.users[strings.ToLower(b.EmailAddress)]; exists && b.EmailAddress != "" {
			return fail(http.StatusUnprocessableEntity, "form_identifier_exists", "That email address is taken.")
		}
		s.ensureClient(st)

		su := &resource.SignUp{
			ID:             s.nextID("su"),
			RequiredFields: []string{"email_address"},
			OptionalFields: []string{"password", "first_name", "last_name"},
			AbandonAt:      time.Now().Add(24 * time.Hour).UnixMilli(),
		}
		applySignUpFields(su, b)
		st.secrets[su.ID] = b.Password
		st.client.SignUp = su
		return ok(su)
	})(w, r)
}

func (s *Server) updateSignUp(w http.ResponseWriter, r *http.Request) {
	s.serve(func(r *http.Request, st *clientState) result {
		su, res, found := s.signUp(r, st)
		if !found {
			return res
		}
		b, valid := decode(r)
		if !valid {
			return badBody()
		}
		applySignUpFields(su, b)
		if b.Password != "" {
			st.secrets[su.ID] = b.Password
		}
		return ok(su)
	})(w, r)
}

func (s *Server) prepareSignUp(w http.ResponseWriter, r *http.Request) {
	s.serve(func(r *http.Request, st *clientState) result {
		su, res, found := s.signUp(r, st)
		if !found {
			return res
		}
		b, valid := decode(r)
		if !valid {
			return badBody()
		}
		if b.Strategy != "email_code" {
			return fail(http.StatusUnprocessableEntity, "verification_strategy_not_valid", "Only email_code is supported.")
		}
		if su.EmailAddress == "" {
			return fail(http.StatusUnprocessableEntity, "form_param_missing", "email_address must be set first.")
		}
		su.Verifications["email_address"] = resource.Verification{
			Status:   resource.VerificationUnverified,
			Strategy: b.Strategy,
			ExpireAt: time.Now().Add(10 * time.Minute).UnixMilli(),
		}
		return ok(su)
	})(w, r)
}

func (s *Server) attemptSignUp(w http.ResponseWriter, r *http.Request) {
	s.serve(func(r *http.Request, st *clientState) result {
		su, res, found := s.signUp(r, st)
		if !found {
			return res
		}
		b, valid := decode(r)
		if !valid {
			return badBody()
		}
		v, prepared := su.Verifications["email_address"]
		if !prepared || v.Strategy == "" {
			return fail(http.StatusUnprocessableEntity, "verification_not_sent", "Prepare the verification first.")
		}
		v.Attempts++
		if b.Code != s.opts.Code {
			su.Verifications["email_address"] = v
			return fail(http.StatusUnprocessableEntity, "form_code_incorrect", "Incorrect code.")
		}
		v.Status = resource.VerificationVerified
		su.Verifications["email_address"] = v
		su.UnverifiedFields = nil
		su.Status = resource.SignUpComplete

		u := s.addUserLocked(su.EmailAddress, st.secrets[su.ID], false)
		u.user.FirstName, u.user.LastName = su.FirstName, su.LastName
		su.CreatedUserID = u.user.ID
		su.CreatedSessionID = s.startSession(st, u)
		return ok(su)
	})(w, r)
}

func (s *Server) signUp(r *http.Request, st *clientState) (*resource.SignUp, result, bool) {
	id := chi.URLParam(r, "id")
	if st.client.SignUp == nil || st.client.SignUp.ID != id {
		return nil, fail(http.StatusNotFound, "resource_not_found", "No sign up with id "+id+"."), false
	}
	if st.client.SignUp.Status == resource.SignUpComplete {
		return nil, fail(http.StatusUnprocessableEntity, "sign_up_already_complete", "This sign up is complete."), false
	}
	return st.client.SignUp, result{}, true
}

func applySignUpFields(su *resource.SignUp, b body) {
	if b.EmailAddress != "" {
		su.EmailAddress = b.EmailAddress
	}
	if b.FirstName != "" {
		su.FirstName = b.FirstName
	}
	if b.LastName != "" {
		su.LastName = b.LastName
	}
	if b.Username != "" {
		su.Username = b.Username
	}
	if b.Password != "" {
		su.PasswordEnabled = true
	}
	if su.Verifications == nil {
		su.Verifications = make(map[string]resource.Verification)
	}

	if su.EmailAddress == "" {
		su.Status = resource.SignUpMissingRequirements
		su.MissingFields = []string{"email_address"}
		return
	}
	su.MissingFields = nil
	if v, seen := su.Verifications["email_address"]; !seen || !v.Verified() {
		su.UnverifiedFields = []string{"email_address"}
		su.Status = resource.SignUpNeedsVerification
	}
}

/*
====================================
SIGN IN
====================================
*/

func (s *Server) createSignIn(w http.ResponseWriter, r *http.Request) {
	s.serve(func(r *http.Request, st *clientState) result {
		b, valid := decode(r)
		if !valid {
			return badBody()
		}
		u, known := s.users[strings.ToLower(b.Identifier)]
		if !known {
			return fail(http.StatusUnprocessableEntity, "form_identifier_not_found", "Couldn't find your account.")
		}
		s.ensureClient(st)

		si := &resource.SignIn{
			ID:                   s.nextID("sia"),
			Status:               resource.SignInNeedsFirstFactor,
			Identifier:           u.email,
			SupportedIdentifiers: []string{"email_address"},
			SupportedFirstFactors: []resource.Factor{{
				Strategy:       "email_code",
				SafeIdentifier: u.email,
				EmailAddressID: u.user.PrimaryEmailAddressID,
				Primary:        true,
			}},
			AbandonAt: time.Now().Add(24 * time.Hour).UnixMilli(),
		}
		if u.password != "" {
			si.SupportedFirstFactors = append(si.SupportedFirstFactors, resource.Factor{Strategy: "password"})
		}
		st.client.SignIn = si

		if b.Password != "" {
			if b.Password != u.password {
				return fail(http.StatusUnprocessableEntity, "form_password_incorrect", "Password is incorrect.")
			}
			si.FirstFactorVerification = &resource.Verification{Status: resource.VerificationVerified, Strategy: "password"}
			s.advanceSignIn(st, si, u)
		}
		return ok(si)
	})(w, r)
}

func (s *Server) prepareFactor(step int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serve(func(r *http.Request, st *clientState) result {
			si, u, res, found := s.signIn(r, st)
			if !found {
				return res
			}
			b, valid := decode(r)
			if !valid {
				return badBody()
			}
			v := &resource.Verification{
				Status:   resource.VerificationUnverified,
				Strategy: b.Strategy,
				ExpireAt: time.Now().Add(10 * time.Minute).UnixMilli(),
			}
			switch {
			case step == 1 && b.Strategy == "email_code":
				if b.EmailAddressID != "" && b.EmailAddressID != u.user.PrimaryEmailAddressID {
					return fail(http.StatusUnprocessableEntity, "form_param_invalid", "Unknown email_address_id.")
				}
				si.FirstFactorVerification = v
			case step == 2 && b.Strategy == "totp" && si.Status == resource.SignInNeedsSecondFactor:
				si.SecondFactorVerification = v
			default:
				return fail(http.StatusUnprocessableEntity, "strategy_for_user_invalid", "Strategy cannot be prepared.")
			}
			return ok(si)
		})(w, r)
	}
}

func (s *Server) attemptFactor(step int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serve(func(r *http.Request, st *clientState) result {
			si, u, res, found := s.signIn(r, st)
			if !found {
				return res
			}
			b, valid := decode(r)
			if !valid {
				return badBody()
			}

			if step == 1 {
				switch b.Strategy {
				case "password":
					if u.password == "" || b.Password != u.password {
						return fail(http.StatusUnprocessableEntity, "form_password_incorrect", "Password is incorrect.")
					}
					si.FirstFactorVerification = &resource.Verification{Status: resource.VerificationVerified, Strategy: "password"}
				case "email_code":
					v := si.FirstFactorVerification
					if v == nil || v.Strategy != "email_code" {
						return fail(http.StatusUnprocessableEntity, "verification_not_sent", "Prepare the first factor first.")
					}
					v.Attempts++
					if b.Code != s.opts.Code {
						return fail(http.StatusUnprocessableEntity, "form_code_incorrect", "Incorrect code.")
					}
					v.Status = resource.VerificationVerified
				default:
					return fail(http.StatusUnprocessableEntity, "strategy_for_user_invalid", "Strategy is not supported.")
				}
				s.advanceSignIn(st, si, u)
				return ok(si)
			}

			if si.Status != resource.SignInNeedsSecondFactor || b.Strategy != "totp" {
				return fail(http.StatusUnprocessableEntity, "strategy_for_user_invalid", "Second factor not expected.")
			}
			if b.Code != s.opts.Code {
				return fail(http.StatusUnprocessableEntity, "form_code_incorrect", "Incorrect code.")
			}
			si.SecondFactorVerification = &resource.Verification{Status: resource.VerificationVerified, Strategy: "totp"}
			si.Status = resource.SignInComplete
			si.CreatedSessionID = s.startSession(st, u)
			return ok(si)
		})(w, r)
	}
}

func (s *Server) signIn(r *http.Request, st *clientState) (*resource.SignIn, *userState, result, bool) {
	id := chi.URLParam(r, "id")
	si := st.client.SignIn
	if si == nil || si.ID != id {
		return nil, nil, fail(http.StatusNotFound, "resource_not_found", "No sign in with id "+id+"."), false
	}
	if si.Status == resource.SignInComplete {
		return nil, nil, fail(http.StatusUnprocessableEntity, "sign_in_already_complete", "This sign in is complete."), false
	}
	return si, s.users[strings.ToLower(si.Identifier)], result{}, true
}

func (s *Server) advanceSignIn(st *clientState, si *resource.SignIn, u *userState) {
	if u.secondFactor {
		si.Status = resource.SignInNeedsSecondFactor
		si.SupportedSecondFactors = []resource.Factor{{Strategy: "totp"}}
		return
	}
	si.Status = resource.SignInComplete
	si.CreatedSessionID = s.startSession(st, u)
}

/*
====================================
SESSIONS
====================================
*/

func (s *Server) startSession(st *clientState, u *userState) string {
	now := time.Now()
	user := u.user
	sess := resource.Session{
		ID:           s.nextID("sess"),
		Status:       resource.SessionActive,
		UserID:       user.ID,
		User:         &user,
		LastActiveAt: now.UnixMilli(),
		ExpireAt:     now.Add(7 * 24 * time.Hour).UnixMilli(),
		AbandonAt:    now.Add(30 * 24 * time.Hour).UnixMilli(),
		CreatedAt:    now.UnixMilli(),
		UpdatedAt:    now.UnixMilli(),
	}
	if s.opts.Environment.AuthConfig.SingleSessionMode {
		for i := range st.client.Sessions {
			if st.client.Sessions[i].Status == resource.SessionActive {
				st.client.Sessions[i].Status = resource.SessionEnded
			}
		}
	}
	st.client.Sessions = append(st.client.Sessions, sess)
	st.client.LastActiveSessionID = sess.ID
	return sess.ID
}

func (s *Server) removeSession(w http.ResponseWriter, r *http.Request) {
	s.serve(func(r *http.Request, st *clientState) result {
		id := chi.URLParam(r, "id")
		for i := range st.client.Sessions {
			sess := &st.client.Sessions[i]
			if sess.ID != id {
				continue
			}
			sess.Status = resource.SessionRemoved
			if st.client.LastActiveSessionID == id {
				st.client.LastActiveSessionID = ""
			}
			return ok(*sess)
		}
		return fail(http.StatusNotFound, "resource_not_found", "No session with id "+id+".")
	})(w, r)
}

func (s *Server) mintToken(w http.ResponseWriter, r *http.Request) {
	s.serve(func(r *http.Request, st *clientState) result {
		id := chi.URLParam(r, "id")
		for _, sess := range st.client.Sessions {
			if sess.ID != id {
				continue
			}
			if sess.Status != resource.SessionActive {
				return fail(http.StatusUnauthorized, "session_not_active", "Session is not active.")
			}
			now := time.Now()
			claims := jwt.MapClaims{
				"sid": sess.ID,
				"sub": sess.UserID,
				"iss": s.URL,
				"iat": now.Unix(),
				"nbf": now.Add(-5 * time.Second).Unix(),
				"exp": now.Add(s.opts.TokenTTL).Unix(),
			}
			if tpl := chi.URLParam(r, "template"); tpl != "" {
				claims["tpl"] = tpl
			}
			signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
			if err != nil {
				return fail(http.StatusInternalServerError, "internal_clerk_error", err.Error())
			}
			return result{status: http.StatusOK, response: resource.TokenResponse{Object: "token", JWT: signed}}
		}
		return fail(http.StatusNotFound, "resource_not_found", "No session with id "+id+".")
	})(w, r)
}

func (s *Server) ensureClient(st *clientState) {
	if st.client.ID == "" {
		st.client = resource.Client{ID: s.nextID("client"), Object: "client"}
	}
}
