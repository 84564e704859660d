package userforms

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Optional name that can be used as a prefix for all required vars
	AppName string

	// Absolute base URL used in mailed one-time login links
	BaseURL string

	// Key for one-time login link hashes
	HashSecret string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long is a session valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int

	// How long a one-time login link stays valid.  Defaults to 1 day
	OneTimeLoginTimeout time.Duration

	// Passwords older than this must be changed.  Zero disables expiry.
	PasswordMaxAge time.Duration

	MinPasswordLength int

	// BCP 47 tag of the language messages are shown in
	Language string
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func (c *Config) EnsureDefaults() *Config {
	if c.AppName == "" {
		c.AppName = envOr("USERFORMS_APP_NAME", "UserForms")
	}
	if c.BaseURL == "" {
		c.BaseURL = envOr("USERFORMS_BASE_URL", "http://localhost:8080")
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.HashSecret == "" {
		c.HashSecret = envOr("USERFORMS_HASH_SECRET", "MyTestHashSecret123456")
	}
	if c.JwtIssuer == "" {
		c.JwtIssuer = fmt.Sprintf("%s-Issuer", c.AppName)
	}
	if c.JWTSecretKey == "" {
		c.JWTSecretKey = envOr("USERFORMS_JWT_SECRET_KEY", "MyTestJWTSecretKey123456")
	}
	if c.SessionTimeoutInSeconds <= 0 {
		c.SessionTimeoutInSeconds = 86400
	}
	if c.OneTimeLoginTimeout <= 0 {
		c.OneTimeLoginTimeout = 24 * time.Hour
	}
	if c.PasswordMaxAge == 0 {
		if v := os.Getenv("USERFORMS_PASSWORD_MAX_AGE"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				log.Printf("Ignoring invalid USERFORMS_PASSWORD_MAX_AGE %q: %v", v, err)
			} else {
				c.PasswordMaxAge = d
			}
		}
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = 8
		if v := os.Getenv("USERFORMS_MIN_PASSWORD_LENGTH"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MinPasswordLength = n
			}
		}
	}
	if c.Language == "" {
		c.Language = envOr("USERFORMS_LANGUAGE", "en")
	}
	return c
}
