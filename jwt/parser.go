package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingExpiry is returned for tokens without an exp claim.
	ErrMissingExpiry = errors.New("session token has no expiry")
	// ErrUnauthorizedParty is returned when azp is not in the configured list.
	ErrUnauthorizedParty = errors.New("session token azp not authorized")
)

// Config controls how session tokens are read.
//
// PublicKeyPEM enables signature verification. Without it tokens are decoded
// without verification, which is enough for cache bookkeeping but must not be
// used for authorization decisions.
type Config struct {
	PublicKeyPEM      []byte
	Leeway            time.Duration
	Issuer            string
	AuthorizedParties []string
}

// SessionClaims are the claims of a session token.
type SessionClaims struct {
	SessionID       string `json:"sid"`
	AuthorizedParty string `json:"azp,omitempty"`
	OrgID           string `json:"org_id,omitempty"`
	OrgRole         string `json:"org_role,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim as time.
func (c *SessionClaims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type Parser struct {
	config Config
	key    *rsa.PublicKey
}

func NewParser(cfg Config) (*Parser, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	p := &Parser{config: cfg}
	if len(cfg.PublicKeyPEM) > 0 {
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("invalid session token public key: %w", err)
		}
		p.key = key
	}
	return p, nil
}

// Verifies reports whether Parse checks signatures.
func (p *Parser) Verifies() bool {
	return p.key != nil
}

// Parse decodes tokenStr. With a public key configured the signature,
// expiry and optional issuer are validated; otherwise only the structure is.
func (p *Parser) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	if p.key == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, err
		}
	} else {
		options := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
		}
		if p.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(p.config.Leeway))
		}
		if p.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(p.config.Issuer))
		}

		token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return p.key, nil
		})
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, jwt.ErrTokenInvalidClaims
		}
	}

	if claims.ExpiresAt == nil {
		return nil, ErrMissingExpiry
	}
	if len(p.config.AuthorizedParties) > 0 && claims.AuthorizedParty != "" &&
		!slices.Contains(p.config.AuthorizedParties, claims.AuthorizedParty) {
		return nil, ErrUnauthorizedParty
	}
	return claims, nil
}
