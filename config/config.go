// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config reads the process configuration once at startup. A Config
// is never modified after Load returns it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

var (
	ErrMissingSetting = errors.New("missing setting")
	ErrInvalidSetting = errors.New("invalid setting")
)

// Session store kinds.
const (
	SessionStoreCookie = "cookie"
	SessionStoreRedis  = "redis"
)

// DefaultEnvFile is loaded by Load when it exists and no other file is named.
const DefaultEnvFile = ".env"

// Config is the process configuration.
type Config struct {
	// SecretKey protects the session and login cookies.
	SecretKey string `env:"APP_SECRET_KEY" validate:"required"`

	Domain       string `env:"AUTH0_DOMAIN" validate:"required"`
	ClientID     string `env:"AUTH0_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"AUTH0_CLIENT_SECRET" validate:"required"`

	Port    int    `env:"PORT" envDefault:"3000" validate:"min=1,max=65535"`
	Host    string `env:"HOST" envDefault:"0.0.0.0"`
	BaseURL string `env:"APP_BASE_URL" validate:"omitempty,url"`

	// IssuerOverride replaces the issuer derived from the domain.
	IssuerOverride string        `env:"OIDC_ISSUER" validate:"omitempty,url"`
	Scopes         []string      `env:"OIDC_SCOPES" envSeparator:" " envDefault:"openid profile email"`
	SigningAlgs    []string      `env:"OIDC_SIGNING_ALGS" envSeparator:"," envDefault:"RS256" validate:"min=1"`
	LogoutPath     string        `env:"OIDC_LOGOUT_PATH" envDefault:"/v2/logout" validate:"startswith=/"`
	ProviderCA     string        `env:"OIDC_PROVIDER_CA_FILE,file"`
	FetchUserInfo  bool          `env:"OIDC_FETCH_USERINFO" envDefault:"false"`
	LoginTimeout   time.Duration `env:"OIDC_LOGIN_TIMEOUT" envDefault:"5m" validate:"gt=0"`

	// MaxPendingLogins bounds the login attempts waiting for their callback.
	MaxPendingLogins int `env:"OIDC_MAX_PENDING_LOGINS" envDefault:"10000" validate:"min=1"`

	SessionStore        string        `env:"SESSION_STORE" envDefault:"cookie" validate:"oneof=cookie redis"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"capweb_session" validate:"required"`
	SessionMaxAge       time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h" validate:"gt=0"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	RedisAddr      string `env:"REDIS_ADDR" validate:"required_if=SessionStore redis,omitempty,hostname_port"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0" validate:"min=0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"capweb:session:"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogJSON        bool   `env:"LOG_JSON" envDefault:"false"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load reads the configuration from the environment, after loading the
// optional .env file, and validates it. Every problem found is reported in
// the returned error, which is a *multierror.Error.
//
// Supported options: WithEnvFile, WithEnvironment
func Load(opt ...Option) (*Config, error) {
	const op = "config.Load"
	opts := getOpts(opt...)

	if opts.withEnvironment == nil {
		if err := loadEnvFile(opts.withEnvFile); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var c Config
	var result *multierror.Error
	if err := env.ParseWithOptions(&c, env.Options{Environment: opts.withEnvironment}); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) {
			for _, e := range aggErr.Errors {
				result = multierror.Append(result, fmt.Errorf("%w: %w", ErrInvalidSetting, e))
			}
		} else {
			result = multierror.Append(result, fmt.Errorf("%w: %w", ErrInvalidSetting, err))
		}
	}
	if err := c.validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:" + strconv.Itoa(c.Port)
	}
	return &c, nil
}

// loadEnvFile loads file into the process environment without overriding
// variables that are already set. The default file may be missing.
func loadEnvFile(file string) error {
	const op = "config.loadEnvFile"
	if file == "" {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("%s: unable to load %s: %w", op, file, err)
	}
	return nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("env"), ",")
		return name
	})
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			switch fe.Tag() {
			case "required", "required_if":
				result = multierror.Append(result, fmt.Errorf("%s is required: %w", fe.Field(), ErrMissingSetting))
			default:
				result = multierror.Append(result, fmt.Errorf("%s fails %q validation: %w", fe.Field(), fe.Tag(), ErrInvalidSetting))
			}
		}
	}

	if strings.Contains(c.Domain, "/") || strings.Contains(c.Domain, "?") {
		result = multierror.Append(result, fmt.Errorf("AUTH0_DOMAIN must be a host name, not a URL: %w", ErrInvalidSetting))
	}
	for _, a := range c.SigningAlgs {
		if !oidc.Alg(a).Supported() {
			result = multierror.Append(result, fmt.Errorf("OIDC_SIGNING_ALGS has unsupported algorithm %q: %w", a, ErrInvalidSetting))
		}
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("APP_BASE_URL must be an absolute http(s) URL: %w", ErrInvalidSetting))
		}
	}
	return result.ErrorOrNil()
}

// Issuer returns the provider's issuer: OIDC_ISSUER when set, otherwise
// https://<AUTH0_DOMAIN>/.
func (c *Config) Issuer() string {
	if c.IssuerOverride != "" {
		return c.IssuerOverride
	}
	return "https://" + c.Domain + "/"
}

// DiscoveryURL returns the URL of the provider's discovery document.
func (c *Config) DiscoveryURL() string {
	return strings.TrimSuffix(c.Issuer(), "/") + "/.well-known/openid-configuration"
}

// LogoutURL returns the provider's logout endpoint.
func (c *Config) LogoutURL() string {
	return strings.TrimSuffix(c.Issuer(), "/") + c.LogoutPath
}

// CallbackURL returns the externally reachable /callback address.
func (c *Config) CallbackURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/callback"
}

// HomeURL returns the externally reachable home page, where the provider
// returns the browser after logout.
func (c *Config) HomeURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/"
}

// Addr returns the address the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SecureCookies returns true when cookies must only be sent over https,
// which is always the case for an https base URL.
func (c *Config) SecureCookies() bool {
	return c.SessionCookieSecure || strings.HasPrefix(c.BaseURL, "https://")
}

// Algs returns the supported id_token signing algorithms.
func (c *Config) Algs() []oidc.Alg {
	algs := make([]oidc.Alg, 0, len(c.SigningAlgs))
	for _, a := range c.SigningAlgs {
		algs = append(algs, oidc.Alg(a))
	}
	return algs
}

// LogLevels are the accepted values of LOG_LEVEL.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// SetLogLevel replaces the configured log level, which must be one of
// LogLevels.
func (c *Config) SetLogLevel(level string) error {
	const op = "Config.SetLogLevel"
	if !slices.Contains(LogLevels, level) {
		return fmt.Errorf("%s: log level %q is not one of %s: %w", op, level, strings.Join(LogLevels, ", "), ErrInvalidSetting)
	}
	c.LogLevel = level
	return nil
}

// Level returns the log level.
func (c *Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}
