package core

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

// Version is reported in the default User-Agent.
const Version = "0.3.0"

// Credentials holds API authentication credentials for BitMEX.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key" validate:"required"`
	// APISecret is the private key used for signing requests.
	APISecret string `json:"api_secret" validate:"required"`
}

// String masks the key and omits the secret so credentials are safe to log.
func (c *Credentials) String() string {
	return fmt.Sprintf("Credentials{APIKey:%s}", maskKey(c.APIKey))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Config contains all configuration options for a BitMEX client.
type Config struct {
	Network     Network      `json:"network" validate:"required,oneof=mainnet testnet"`
	// BaseURL overrides the network host. It must be scheme and host only:
	// signatures cover the path from /api/v1 onwards.
	BaseURL     string       `json:"base_url,omitempty" validate:"omitempty,url,origin"`
	Credentials *Credentials `json:"credentials,omitempty"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout time.Duration `json:"timeout" validate:"min=1ms"`
	// ExpiresGrace is added to the current time to form the api-expires header.
	ExpiresGrace time.Duration `json:"expires_grace" validate:"min=1s"`

	UserAgent string `json:"user_agent"`
	LogLevel  string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config initialized with defaults for the given network:
// 7s timeout, 5s expiry grace, info logging.
func DefaultConfig(network Network) *Config {
	return &Config{
		Network:      network,
		Timeout:      7 * time.Second,
		ExpiresGrace: 5 * time.Second,
		UserAgent:    "bitmexrest/" + Version,
		LogLevel:     "info",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("origin", isOrigin)
	return v
}

// isOrigin accepts URLs without a path beyond "/", query or fragment.
func isOrigin(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == ""
}

// Validate checks the configuration against its field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Endpoint returns the scheme and host requests are sent to.
func (c *Config) Endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return c.Network.BaseURL()
}

// HasCredentials reports whether a complete key pair is configured.
func (c *Config) HasCredentials() bool {
	return c.Credentials != nil && c.Credentials.APIKey != "" && c.Credentials.APISecret != ""
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithBaseURL overrides the network host and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithLogLevel sets the log level and returns the config for chaining.
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}
