package config

import "fmt"

// JWTConfig holds the settings for verifying bearer tokens issued by the
// identity provider. An empty Secret disables verification.
type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	Issuer          string `mapstructure:"issuer"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

// Enabled reports whether tokens are verified.
func (c JWTConfig) Enabled() bool {
	return c.Secret != ""
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("config error: 'server.jwt.secret' must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("config error: 'server.jwt.expiration_hours' must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
