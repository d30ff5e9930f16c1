package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultEnvVar is consulted when no explicit source is configured.
const DefaultEnvVar = "BING_U_COOKIE"

// ErrNoCredential is returned when no source yields a cookie value.
var ErrNoCredential = errors.New("no session cookie configured: set cookie, cookie_file, cookie_env or " + DefaultEnvVar)

// ResolverConfig holds configuration for credential resolution.
type ResolverConfig struct {
	// Cookie is an explicit cookie value.
	Cookie string

	// CookieFile is a file whose trimmed contents are the cookie value.
	CookieFile string

	// CookieEnv names an environment variable holding the cookie value.
	CookieEnv string

	// ConfigDir is the base directory for resolving a relative CookieFile.
	ConfigDir string
}

// Resolve resolves the session cookie according to the chain:
// 1. cookie (explicit value)
// 2. cookie_file (read from file)
// 3. cookie_env (read from environment variable)
// 4. BING_U_COOKIE
func Resolve(cfg ResolverConfig) (*CookieCredential, error) {
	value, err := findCookie(cfg)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, ErrNoCredential
	}
	return NewCookieCredential(value), nil
}

func findCookie(cfg ResolverConfig) (string, error) {
	if cfg.Cookie != "" {
		return cfg.Cookie, nil
	}

	if cfg.CookieFile != "" {
		value, err := readCookieFile(cfg.CookieFile, cfg.ConfigDir)
		if err != nil {
			return "", fmt.Errorf("failed to read cookie file: %w", err)
		}
		return value, nil
	}

	if cfg.CookieEnv != "" {
		value := os.Getenv(cfg.CookieEnv)
		if value == "" {
			return "", fmt.Errorf("environment variable %s is not set", cfg.CookieEnv)
		}
		return value, nil
	}

	return os.Getenv(DefaultEnvVar), nil
}

func readCookieFile(path, configDir string) (string, error) {
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}

	//nolint:gosec // G304: File path is from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
