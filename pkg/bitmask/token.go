package bitmask

import (
	"fmt"
	"os"
	"strings"
)

// LoadToken reads the API token written by the core at startup.
//
//	token, err := bitmask.LoadToken(os.ExpandEnv("$HOME/.config/leap/authtoken"))
func LoadToken(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("token path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("token file %q is empty", path)
	}
	return token, nil
}

// WithTokenFile is the functional-option form of LoadToken.
// A missing file is an error: the core always writes one before serving.
func WithTokenFile(path string) Option {
	return func(c *Client) error {
		token, err := LoadToken(path)
		if err != nil {
			return fmt.Errorf("load API token from %q: %w", path, err)
		}
		c.token = token
		return nil
	}
}
