package resource

// Environment is the instance configuration loaded once at startup.
type Environment struct {
	AuthConfig    AuthConfig    `json:"auth_config"`
	DisplayConfig DisplayConfig `json:"display_config"`
	UserSettings  UserSettings  `json:"user_settings"`
}

type AuthConfig struct {
	ID                    string `json:"id,omitempty"`
	SingleSessionMode     bool   `json:"single_session_mode"`
	ClaimedAt             int64  `json:"claimed_at,omitempty"`
	ReverificationEnabled bool   `json:"reverification,omitempty"`
}

type DisplayConfig struct {
	ApplicationName         string `json:"application_name,omitempty"`
	InstanceType            string `json:"instance_environment_type,omitempty"`
	LogoImageURL            string `json:"logo_image_url,omitempty"`
	HomeURL                 string `json:"home_url,omitempty"`
	SignInURL               string `json:"sign_in_url,omitempty"`
	SignUpURL               string `json:"sign_up_url,omitempty"`
	PreferredSignInStrategy string `json:"preferred_sign_in_strategy,omitempty"`
	PrivacyPolicyURL        string `json:"privacy_policy_url,omitempty"`
	TermsURL                string `json:"terms_url,omitempty"`
}

// Attribute is one configurable user attribute (email_address, phone_number,
// username, password, ...).
type Attribute struct {
	Enabled             bool     `json:"enabled"`
	Required            bool     `json:"required"`
	UsedForFirstFactor  bool     `json:"used_for_first_factor"`
	FirstFactors        []string `json:"first_factors,omitempty"`
	UsedForSecondFactor bool     `json:"used_for_second_factor"`
	SecondFactors       []string `json:"second_factors,omitempty"`
	VerifyAtSignUp      bool     `json:"verify_at_sign_up"`
	Verifications       []string `json:"verifications,omitempty"`
}

type SocialProvider struct {
	Enabled  bool   `json:"enabled"`
	Required bool   `json:"required"`
	Strategy string `json:"strategy"`
	Name     string `json:"name,omitempty"`
}

type UserSettings struct {
	Attributes map[string]Attribute      `json:"attributes"`
	Social     map[string]SocialProvider `json:"social,omitempty"`
	SignUp     SignUpSettings            `json:"sign_up"`
}

type SignUpSettings struct {
	Progressive bool   `json:"progressive"`
	Mode        string `json:"mode,omitempty"`
}

// PasswordEnabled reports whether password authentication is on.
func (u UserSettings) PasswordEnabled() bool {
	a, ok := u.Attributes["password"]
	return ok && a.Enabled
}

// EnabledStrategies returns every wire tag the instance accepts for first
// factors, second factors, attribute verification, or social sign-in.
func (u UserSettings) EnabledStrategies() map[string]struct{} {
	out := make(map[string]struct{})
	for _, a := range u.Attributes {
		if !a.Enabled {
			continue
		}
		for _, s := range a.FirstFactors {
			out[s] = struct{}{}
		}
		for _, s := range a.SecondFactors {
			out[s] = struct{}{}
		}
		for _, s := range a.Verifications {
			out[s] = struct{}{}
		}
	}
	if u.PasswordEnabled() {
		out["password"] = struct{}{}
	}
	for _, p := range u.Social {
		if p.Enabled && p.Strategy != "" {
			out[p.Strategy] = struct{}{}
		}
	}
	return out
}

// StrategyEnabled reports whether s is enabled. Empty settings (an
// environment that does not describe attributes) allow everything.
func (u UserSettings) StrategyEnabled(s VerificationStrategy) bool {
	if len(u.Attributes) == 0 && len(u.Social) == 0 {
		return true
	}
	_, ok := u.EnabledStrategies()[s.String()]
	return ok
}
