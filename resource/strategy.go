package resource

import (
	"errors"
	"strings"
)

// ErrUnknownStrategy is returned when a wire tag does not name a supported
// verification strategy.
var ErrUnknownStrategy = errors.New("unknown verification strategy")

type strategyKind uint8

const (
	strategyNone strategyKind = iota
	strategyEmailCode
	strategyPhoneCode
	strategyEmailLink
	strategyPassword
	strategyTOTP
	strategyBackupCode
	strategyOAuth
)

const oauthPrefix = "oauth_"

// VerificationStrategy identifies how a pending field is verified. It is a
// closed set of variants; each variant carries only the parameters it needs
// (OAuth a provider and redirect, EmailLink a redirect, the rest nothing).
//
// The zero value is invalid.
type VerificationStrategy struct {
	kind        strategyKind
	provider    string
	redirectURL string
}

var (
	EmailCode  = VerificationStrategy{kind: strategyEmailCode}
	PhoneCode  = VerificationStrategy{kind: strategyPhoneCode}
	Password   = VerificationStrategy{kind: strategyPassword}
	TOTP       = VerificationStrategy{kind: strategyTOTP}
	BackupCode = VerificationStrategy{kind: strategyBackupCode}
)

// EmailLink verifies an email address through a magic link that redirects to
// redirectURL.
func EmailLink(redirectURL string) VerificationStrategy {
	return VerificationStrategy{kind: strategyEmailLink, redirectURL: redirectURL}
}

// OAuth verifies through an external OAuth provider such as "google".
func OAuth(provider, redirectURL string) VerificationStrategy {
	return VerificationStrategy{
		kind:        strategyOAuth,
		provider:    strings.ToLower(strings.TrimSpace(provider)),
		redirectURL: redirectURL,
	}
}

// ParseVerificationStrategy maps a wire tag back to its variant.
func ParseVerificationStrategy(tag string) (VerificationStrategy, error) {
	switch tag {
	case "email_code":
		return EmailCode, nil
	case "phone_code":
		return PhoneCode, nil
	case "email_link":
		return EmailLink(""), nil
	case "password":
		return Password, nil
	case "totp":
		return TOTP, nil
	case "backup_code":
		return BackupCode, nil
	}
	if strings.HasPrefix(tag, oauthPrefix) && len(tag) > len(oauthPrefix) {
		return OAuth(tag[len(oauthPrefix):], ""), nil
	}
	return VerificationStrategy{}, ErrUnknownStrategy
}

// String returns the wire tag.
func (s VerificationStrategy) String() string {
	switch s.kind {
	case strategyEmailCode:
		return "email_code"
	case strategyPhoneCode:
		return "phone_code"
	case strategyEmailLink:
		return "email_link"
	case strategyPassword:
		return "password"
	case strategyTOTP:
		return "totp"
	case strategyBackupCode:
		return "backup_code"
	case strategyOAuth:
		return oauthPrefix + s.provider
	default:
		return ""
	}
}

// Valid reports whether s is a usable variant.
func (s VerificationStrategy) Valid() bool {
	if s.kind == strategyOAuth {
		return s.provider != ""
	}
	return s.kind != strategyNone
}

// RedirectURL is set for the EmailLink and OAuth variants.
func (s VerificationStrategy) RedirectURL() string {
	return s.redirectURL
}

// Provider is set for the OAuth variant.
func (s VerificationStrategy) Provider() string {
	return s.provider
}

// NeedsCode reports whether an attempt with this strategy submits a code
// (as opposed to a password or an out-of-band redirect).
func (s VerificationStrategy) NeedsCode() bool {
	switch s.kind {
	case strategyEmailCode, strategyPhoneCode, strategyTOTP, strategyBackupCode:
		return true
	default:
		return false
	}
}

// IsPassword reports whether attempts send a password field.
func (s VerificationStrategy) IsPassword() bool {
	return s.kind == strategyPassword
}

// MarshalText encodes the wire tag so strategies can be used directly in
// request bodies.
func (s VerificationStrategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrUnknownStrategy
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a wire tag. The redirect URL is not part of the tag.
func (s *VerificationStrategy) UnmarshalText(b []byte) error {
	parsed, err := ParseVerificationStrategy(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
