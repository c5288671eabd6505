package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	goClerk "github.com/MrEthical07/goClerk"
	"github.com/MrEthical07/goClerk/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	backendOS     = "os"
	backendRedis  = "redis"
	backendMemory = "memory"
)

// fileConfig is the on-disk YAML layout.
type fileConfig struct {
	PublishableKey string         `yaml:"publishable_key"`
	BaseURL        string         `yaml:"base_url"`
	Timeout        time.Duration  `yaml:"timeout"`
	Debug          bool           `yaml:"debug"`
	Keychain       keychainConfig `yaml:"keychain"`
	SessionToken   tokenConfig    `yaml:"session_token"`
	Logging        logging.Config `yaml:"logging"`
	AuditLog       bool           `yaml:"audit_log"`
}

type keychainConfig struct {
	Backend     string `yaml:"backend"`
	Service     string `yaml:"service"`
	AccessGroup string `yaml:"access_group"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
}

type tokenConfig struct {
	PublicKeyFile string        `yaml:"public_key_file"`
	Issuer        string        `yaml:"issuer"`
	RefreshLeeway time.Duration `yaml:"refresh_leeway"`
}

// loadFileConfig reads path. A missing file is not an error when the path
// was not given explicitly.
func loadFileConfig(path string, explicit bool) (fileConfig, error) {
	fc := fileConfig{
		Keychain: keychainConfig{Backend: backendOS},
		Logging:  logging.Config{Level: "warn", Format: "text", Output: "stderr"},
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return fc, nil
	default:
		return fc, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	switch fc.Keychain.Backend {
	case backendOS, backendRedis, backendMemory:
	case "":
		fc.Keychain.Backend = backendOS
	default:
		return fc, fmt.Errorf("unknown keychain backend %q", fc.Keychain.Backend)
	}
	if fc.Keychain.Backend == backendRedis && fc.Keychain.RedisAddr == "" {
		return fc, errors.New("keychain.redis_addr is required for the redis backend")
	}
	return fc, nil
}

// engineConfig maps the file onto the SDK config.
func (fc fileConfig) engineConfig() (goClerk.Config, error) {
	cfg := goClerk.DefaultConfig()
	cfg.API.PublishableKey = fc.PublishableKey
	cfg.API.BaseURL = fc.BaseURL
	cfg.API.UserAgent = "goclerk-cli/" + goClerk.Version
	if fc.Timeout > 0 {
		cfg.API.Timeout = fc.Timeout
	}
	cfg.Debug = fc.Debug

	if fc.Keychain.Service != "" {
		cfg.Keychain.Service = fc.Keychain.Service
	}
	cfg.Keychain.AccessGroup = fc.Keychain.AccessGroup

	if fc.SessionToken.PublicKeyFile != "" {
		pem, err := os.ReadFile(fc.SessionToken.PublicKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read session token public key: %w", err)
		}
		cfg.SessionToken.PublicKeyPEM = pem
	}
	cfg.SessionToken.Issuer = fc.SessionToken.Issuer
	if fc.SessionToken.RefreshLeeway > 0 {
		cfg.SessionToken.RefreshLeeway = fc.SessionToken.RefreshLeeway
	}

	cfg.Audit.Enabled = fc.AuditLog
	return cfg, cfg.Validate()
}
