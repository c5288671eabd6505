package resource

// SignInStatus is the backend-reported state of a sign-in.
type SignInStatus string

const (
	SignInNeedsIdentifier   SignInStatus = "needs_identifier"
	SignInNeedsFirstFactor  SignInStatus = "needs_first_factor"
	SignInNeedsSecondFactor SignInStatus = "needs_second_factor"
	SignInNeedsNewPassword  SignInStatus = "needs_new_password"
	SignInComplete          SignInStatus = "complete"
	SignInAbandoned         SignInStatus = "abandoned"
)

// Factor describes one way the identified user can authenticate.
type Factor struct {
	Strategy         string `json:"strategy"`
	SafeIdentifier   string `json:"safe_identifier,omitempty"`
	EmailAddressID   string `json:"email_address_id,omitempty"`
	PhoneNumberID    string `json:"phone_number_id,omitempty"`
	Primary          bool   `json:"primary,omitempty"`
	IdentificationID string `json:"identification_id,omitempty"`
}

// SignIn is the in-progress sign-in draft embedded in a Client.
type SignIn struct {
	ID                       string        `json:"id"`
	Status                   SignInStatus  `json:"status"`
	Identifier               string        `json:"identifier,omitempty"`
	SupportedIdentifiers     []string      `json:"supported_identifiers,omitempty"`
	SupportedFirstFactors    []Factor      `json:"supported_first_factors,omitempty"`
	SupportedSecondFactors   []Factor      `json:"supported_second_factors,omitempty"`
	FirstFactorVerification  *Verification `json:"first_factor_verification,omitempty"`
	SecondFactorVerification *Verification `json:"second_factor_verification,omitempty"`
	CreatedSessionID         string        `json:"created_session_id,omitempty"`
	AbandonAt                int64         `json:"abandon_at,omitempty"`
}

// Terminal reports whether no further steps can change the sign-in.
func (s *SignIn) Terminal() bool {
	return s != nil && (s.Status == SignInComplete || s.Status == SignInAbandoned)
}

func (s *SignIn) clone() *SignIn {
	out := *s
	out.SupportedIdentifiers = cloneStrings(s.SupportedIdentifiers)
	if s.SupportedFirstFactors != nil {
		out.SupportedFirstFactors = append([]Factor(nil), s.SupportedFirstFactors...)
	}
	if s.SupportedSecondFactors != nil {
		out.SupportedSecondFactors = append([]Factor(nil), s.SupportedSecondFactors...)
	}
	out.FirstFactorVerification = s.FirstFactorVerification.clone()
	out.SecondFactorVerification = s.SecondFactorVerification.clone()
	return &out
}

// SignInCreateParams starts a new sign-in.
type SignInCreateParams struct {
	Identifier  string                `json:"identifier,omitempty"`
	Password    string                `json:"password,omitempty"`
	Strategy    *VerificationStrategy `json:"strategy,omitempty"`
	RedirectURL string                `json:"redirect_url,omitempty"`
}

// PrepareFactorParams asks the backend to dispatch a first or second factor
// challenge. EmailAddressID / PhoneNumberID select which identification
// receives it when the user has several.
type PrepareFactorParams struct {
	Strategy       VerificationStrategy `json:"strategy"`
	EmailAddressID string               `json:"email_address_id,omitempty"`
	PhoneNumberID  string               `json:"phone_number_id,omitempty"`
	RedirectURL    string               `json:"redirect_url,omitempty"`
}

// AttemptFactorParams submits a first or second factor response.
type AttemptFactorParams struct {
	Strategy VerificationStrategy `json:"strategy"`
	Code     string               `json:"code,omitempty"`
	Password string               `json:"password,omitempty"`
}
