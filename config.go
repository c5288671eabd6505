package goClerk

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Version is reported in the default User-Agent.
const Version = "0.4.0"

// Config defines a public type used by goClerk APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API            APIConfig
	Keychain       KeychainConfig
	SessionToken   SessionTokenConfig
	CircuitBreaker CircuitBreakerConfig
	Audit          AuditConfig
	Metrics        MetricsConfig

	// Debug attaches the current client id to every request.
	Debug bool
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the Frontend API. BaseURL wins over PublishableKey when
// both are set.
type APIConfig struct {
	PublishableKey string
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
}

/*
====================================
KEYCHAIN CONFIG
====================================
*/

// KeychainConfig namespaces the persisted device token and device id. Engines
// that share Service and AccessGroup share a device identity.
type KeychainConfig struct {
	Service     string
	AccessGroup string
}

/*
====================================
SESSION TOKEN CONFIG
====================================
*/

// SessionTokenConfig controls session token caching and verification.
type SessionTokenConfig struct {
	// RefreshLeeway is how long before expiry a cached token stops being
	// served.
	RefreshLeeway time.Duration
	// PublicKeyPEM enables RS256 signature verification of fetched tokens.
	PublicKeyPEM      []byte
	Issuer            string
	AuthorizedParties []string
	CacheDisabled     bool
}

/*
====================================
CIRCUIT BREAKER CONFIG
====================================
*/

// CircuitBreakerConfig configures the optional breaker in front of the
// Frontend API. Only transport failures and 5xx responses count.
type CircuitBreakerConfig struct {
	Enabled      bool
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	FailureRatio float64
	MinRequests  uint32
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goClerk APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goClerk APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:   30 * time.Second,
			UserAgent: "goclerk/" + Version,
		},
		Keychain: KeychainConfig{
			Service: "goclerk",
		},
		SessionToken: SessionTokenConfig{
			RefreshLeeway: 10 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:      false,
			MaxRequests:  1,
			Interval:     time.Minute,
			OpenTimeout:  30 * time.Second,
			FailureRatio: 0.5,
			MinRequests:  5,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.SessionToken.PublicKeyPEM = cloneBytes(cfg.SessionToken.PublicKeyPEM)
	if cfg.SessionToken.AuthorizedParties != nil {
		out.SessionToken.AuthorizedParties = append([]string(nil), cfg.SessionToken.AuthorizedParties...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cfg and reports the first problem wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, err := c.API.resolveBaseURL(); err != nil {
		return err
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: API Timeout must be > 0", ErrInvalidConfig)
	}
	if c.API.Timeout > 5*time.Minute {
		return fmt.Errorf("%w: API Timeout must be <= 5m", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Keychain.Service) == "" {
		return fmt.Errorf("%w: Keychain Service must not be empty", ErrInvalidConfig)
	}

	if c.SessionToken.RefreshLeeway < 0 || c.SessionToken.RefreshLeeway > time.Minute {
		return fmt.Errorf("%w: SessionToken RefreshLeeway must be within [0, 1m]", ErrInvalidConfig)
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
			return fmt.Errorf("%w: CircuitBreaker FailureRatio must be within (0, 1]", ErrInvalidConfig)
		}
		if c.CircuitBreaker.OpenTimeout <= 0 {
			return fmt.Errorf("%w: CircuitBreaker OpenTimeout must be > 0", ErrInvalidConfig)
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit BufferSize must be > 0", ErrInvalidConfig)
	}
	return nil
}

func (a APIConfig) resolveBaseURL() (string, error) {
	raw := strings.TrimSpace(a.BaseURL)
	if raw == "" {
		if strings.TrimSpace(a.PublishableKey) == "" {
			return "", fmt.Errorf("%w: API BaseURL or PublishableKey is required", ErrInvalidConfig)
		}
		host, err := FrontendAPIFromPublishableKey(a.PublishableKey)
		if err != nil {
			return "", err
		}
		raw = "https://" + host
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", fmt.Errorf("%w: API BaseURL %q must be an absolute http(s) URL", ErrInvalidConfig, raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// FrontendAPIFromPublishableKey decodes the Frontend API host embedded in a
// publishable key of the form pk_test_<base64(host$)> or pk_live_<...>.
func FrontendAPIFromPublishableKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	var encoded string
	switch {
	case strings.HasPrefix(key, "pk_test_"):
		encoded = strings.TrimPrefix(key, "pk_test_")
	case strings.HasPrefix(key, "pk_live_"):
		encoded = strings.TrimPrefix(key, "pk_live_")
	default:
		return "", fmt.Errorf("%w: publishable key must start with pk_test_ or pk_live_", ErrInvalidConfig)
	}

	decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return "", fmt.Errorf("%w: publishable key is not valid base64: %w", ErrInvalidConfig, err)
	}
	host, ok := strings.CutSuffix(string(decoded), "$")
	if !ok || host == "" || strings.ContainsAny(host, "/ ") {
		return "", fmt.Errorf("%w: publishable key does not encode a frontend api host", ErrInvalidConfig)
	}
	return host, nil
}
