package resource

// SignUpStatus is the backend-reported state of a sign-up.
type SignUpStatus string

const (
	// SignUpMissingRequirements means required fields are missing or unverified.
	SignUpMissingRequirements SignUpStatus = "missing_requirements"
	// SignUpNeedsVerification means all fields are supplied but some await verification.
	SignUpNeedsVerification SignUpStatus = "needs_verification"
	// SignUpComplete means a user and a session were created.
	SignUpComplete SignUpStatus = "complete"
	// SignUpAbandoned means the sign-up was inactive too long and must start over.
	SignUpAbandoned SignUpStatus = "abandoned"
)

// SignUp is the in-progress sign-up draft embedded in a Client.
type SignUp struct {
	ID               string                  `json:"id"`
	Status           SignUpStatus            `json:"status"`
	RequiredFields   []string                `json:"required_fields,omitempty"`
	OptionalFields   []string                `json:"optional_fields,omitempty"`
	MissingFields    []string                `json:"missing_fields,omitempty"`
	UnverifiedFields []string                `json:"unverified_fields,omitempty"`
	Verifications    map[string]Verification `json:"verifications,omitempty"`
	Username         string                  `json:"username,omitempty"`
	EmailAddress     string                  `json:"email_address,omitempty"`
	PhoneNumber      string                  `json:"phone_number,omitempty"`
	FirstName        string                  `json:"first_name,omitempty"`
	LastName         string                  `json:"last_name,omitempty"`
	PasswordEnabled  bool                    `json:"password_enabled"`
	CreatedSessionID string                  `json:"created_session_id,omitempty"`
	CreatedUserID    string                  `json:"created_user_id,omitempty"`
	AbandonAt        int64                   `json:"abandon_at,omitempty"`
}

// Terminal reports whether no further steps can change the sign-up.
func (s *SignUp) Terminal() bool {
	return s != nil && (s.Status == SignUpComplete || s.Status == SignUpAbandoned)
}

func (s *SignUp) clone() *SignUp {
	out := *s
	out.RequiredFields = cloneStrings(s.RequiredFields)
	out.OptionalFields = cloneStrings(s.OptionalFields)
	out.MissingFields = cloneStrings(s.MissingFields)
	out.UnverifiedFields = cloneStrings(s.UnverifiedFields)
	if s.Verifications != nil {
		out.Verifications = make(map[string]Verification, len(s.Verifications))
		for k, v := range s.Verifications {
			out.Verifications[k] = *v.clone()
		}
	}
	return &out
}

// SignUpCreateParams starts a new sign-up. Which fields are accepted depends on
// the instance settings; empty fields are omitted from the request.
type SignUpCreateParams struct {
	EmailAddress string                `json:"email_address,omitempty" validate:"omitempty,email"`
	PhoneNumber  string                `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Username     string                `json:"username,omitempty"`
	Password     string                `json:"password,omitempty"`
	FirstName    string                `json:"first_name,omitempty"`
	LastName     string                `json:"last_name,omitempty"`
	Strategy     *VerificationStrategy `json:"strategy,omitempty"`
	RedirectURL  string                `json:"redirect_url,omitempty"`
}

// SignUpUpdateParams supplies missing fields to an existing sign-up.
type SignUpUpdateParams struct {
	EmailAddress string `json:"email_address,omitempty" validate:"omitempty,email"`
	PhoneNumber  string `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
}

// PrepareVerificationParams asks the backend to dispatch a challenge.
type PrepareVerificationParams struct {
	Strategy    VerificationStrategy `json:"strategy"`
	RedirectURL string               `json:"redirect_url,omitempty"`
}

// AttemptVerificationParams submits a challenge response.
type AttemptVerificationParams struct {
	Strategy VerificationStrategy `json:"strategy"`
	Code     string               `json:"code,omitempty"`
	Password string               `json:"password,omitempty"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
