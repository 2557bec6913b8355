package devserver

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/smartstock/internal/config"
)

const (
	// DefaultMaxBodyBytes limits upload payloads to 4 MB.
	DefaultMaxBodyBytes int64 = 4 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultTokenTTL is the lifetime of issued login tokens.
	DefaultTokenTTL = 12 * time.Hour
	// DefaultSecret signs login tokens when no secret is configured.
	DefaultSecret = "smartstock-dev-secret"
)

// Settings captures runtime configuration for the development backend.
type Settings struct {
	Host         string
	Port         int
	Fixtures     string
	Secret       string
	TokenTTL     time.Duration
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from config.yaml and environment overrides.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Host:         config.DefaultDevServerHost,
		Port:         config.DefaultDevServerPort,
		Secret:       DefaultSecret,
		TokenTTL:     DefaultTokenTTL,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil {
		host, port := cfg.DevServerAddress()
		if host != "" {
			settings.Host = host
		}
		if isValidPort(port) {
			settings.Port = port
		}
		settings.Fixtures = cfg.DevServerFixtures()
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if host := strings.TrimSpace(os.Getenv("SMARTSTOCK_DEVSERVER_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("SMARTSTOCK_DEVSERVER_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
	if secret := strings.TrimSpace(os.Getenv("SMARTSTOCK_DEVSERVER_SECRET")); secret != "" {
		s.Secret = secret
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = config.DefaultDevServerHost
	}
	// Port 0 asks the kernel for a free port.
	if s.Port < 0 || s.Port > 65535 {
		s.Port = config.DefaultDevServerPort
	}
	if s.Secret == "" {
		s.Secret = DefaultSecret
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = DefaultTokenTTL
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
