package config

import "fmt"

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address string `json:"address"`
	// ReadTimeoutSeconds bounds request header and body reads.
	ReadTimeoutSeconds int `json:"read_timeout_seconds"`
	// Token is the bearer token required on /api routes; empty disables auth.
	Token string `json:"token"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 10
	}
}

func (c ServerConfig) Validate() error {
	if c.ReadTimeoutSeconds < 0 {
		return fmt.Errorf("read_timeout_seconds must not be negative")
	}
	return nil
}
