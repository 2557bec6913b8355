// internal/config/config.go
//
// This package handles configuration and the SmartStock state directory.
// The state directory holds config.yaml, the session file and the logs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/smartstock/internal/view"
)

const (
	// HomeEnv overrides the state directory location.
	HomeEnv = "SMARTSTOCK_HOME"
	// DirName is the state directory created under the user's home.
	DirName = ".smartstock"
	// DefaultBaseURL is the hosted SmartStock backend.
	DefaultBaseURL = "https://smartstock-o5e6.onrender.com"

	// DefaultDevServerHost is the loopback interface for the development backend.
	DefaultDevServerHost = "127.0.0.1"
	// DefaultDevServerPort is the default TCP port for the development backend.
	DefaultDevServerPort = 8766
)

const defaultConfigYAML = `# smartstock dashboard configuration
version: 1

api:
  # Backend address; endpoints live under /api on this host.
  base_url: https://smartstock-o5e6.onrender.com
  # "0" waits forever, like the browser client.
  request_timeout: "0"
  # Send the stored session token as a bearer header.
  attach_token: false

dashboard:
  initial_view: inventory
  # Drop responses that arrive after a newer request for the same data.
  discard_stale_responses: false

devserver:
  host: 127.0.0.1
  port: 8766
  # Optional YAML fixtures; built-in sample data is used when empty.
  fixtures: ""
`

// APIConfig holds backend transport settings.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout string `yaml:"request_timeout"`
	AttachToken    bool   `yaml:"attach_token"`
}

// DashboardConfig holds orchestration preferences.
type DashboardConfig struct {
	InitialView           string `yaml:"initial_view"`
	DiscardStaleResponses bool   `yaml:"discard_stale_responses"`
}

// DevServerConfig configures the local development backend.
type DevServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Fixtures string `yaml:"fixtures"`
}

// FileConfig models config.yaml.
type FileConfig struct {
	Version   int             `yaml:"version"`
	API       APIConfig       `yaml:"api"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// Config holds the runtime configuration.
type Config struct {
	// HomeDir is the state directory (config, session, logs).
	HomeDir string

	File FileConfig

	requestTimeout time.Duration
	initialView    view.View
}

// ResolveHome returns $SMARTSTOCK_HOME or ~/.smartstock.
func ResolveHome() (string, error) {
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return filepath.Abs(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home: %w", err)
	}
	return filepath.Join(userHome, DirName), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are ignored; variables that
// are already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	return nil
}

// Init creates the state directory layout and a default config.yaml.
//
// Structure created:
// <home>/
// ├── config.yaml
// └── logs/
func Init(homeDir string) error {
	if err := os.MkdirAll(filepath.Join(homeDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureConfigFile(filepath.Join(homeDir, "config.yaml"))
}

// Load reads config.yaml from homeDir and applies environment overrides.
func Load(homeDir string) (*Config, error) {
	cfg := &Config{HomeDir: homeDir, File: defaultFileConfig()}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.File.applyEnvOverrides()
	cfg.File.normalize()
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ConfigPath returns the on-disk location of config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.HomeDir, "config.yaml")
}

// LogsDir returns the directory holding log files.
func (c *Config) LogsDir() string {
	return filepath.Join(c.HomeDir, "logs")
}

// SessionPath returns the session token file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.HomeDir, "session.json")
}

// BaseURL returns the backend address without a trailing slash.
func (c *Config) BaseURL() string {
	return c.File.API.BaseURL
}

// RequestTimeout returns the per-request timeout; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	return c.requestTimeout
}

// AttachToken reports whether requests carry the session token.
func (c *Config) AttachToken() bool {
	return c.File.API.AttachToken
}

// InitialView returns the view shown after login.
func (c *Config) InitialView() view.View {
	return c.initialView
}

// DiscardStaleResponses reports whether out-of-order responses are dropped.
func (c *Config) DiscardStaleResponses() bool {
	return c.File.Dashboard.DiscardStaleResponses
}

// DevServerAddress returns host:port for the development backend.
func (c *Config) DevServerAddress() (string, int) {
	return c.File.DevServer.Host, c.File.DevServer.Port
}

// DevServerFixtures returns the fixture file path, resolved against HomeDir.
func (c *Config) DevServerFixtures() string {
	return resolvePath(c.HomeDir, c.File.DevServer.Fixtures)
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	c.File = parsed
	return nil
}

func (c *Config) finalize() error {
	fc := &c.File
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	u, err := url.Parse(fc.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", fc.API.BaseURL)
	}
	timeout, err := parseTimeout(fc.API.RequestTimeout)
	if err != nil {
		return fmt.Errorf("api.request_timeout: %w", err)
	}
	initial, err := view.Parse(fc.Dashboard.InitialView)
	if err != nil {
		return fmt.Errorf("dashboard.initial_view: %w", err)
	}
	if fc.DevServer.Port < 0 || fc.DevServer.Port > 65535 {
		return fmt.Errorf("devserver.port out of range: %d", fc.DevServer.Port)
	}
	c.requestTimeout = timeout
	c.initialView = initial
	return nil
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version: 1,
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			RequestTimeout: "0",
		},
		Dashboard: DashboardConfig{InitialView: view.Inventory.String()},
		DevServer: DevServerConfig{Host: DefaultDevServerHost, Port: DefaultDevServerPort},
	}
}

func (fc *FileConfig) applyDefaults() {
	defaults := defaultFileConfig()
	if fc.Version == 0 {
		fc.Version = defaults.Version
	}
	if strings.TrimSpace(fc.API.BaseURL) == "" {
		fc.API.BaseURL = defaults.API.BaseURL
	}
	if strings.TrimSpace(fc.Dashboard.InitialView) == "" {
		fc.Dashboard.InitialView = defaults.Dashboard.InitialView
	}
	if strings.TrimSpace(fc.DevServer.Host) == "" {
		fc.DevServer.Host = defaults.DevServer.Host
	}
	if fc.DevServer.Port == 0 {
		fc.DevServer.Port = defaults.DevServer.Port
	}
}

func (fc *FileConfig) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("SMARTSTOCK_API_URL")); value != "" {
		fc.API.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("SMARTSTOCK_ATTACH_TOKEN")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			fc.API.AttachToken = enabled
		}
	}
	if value := strings.TrimSpace(os.Getenv("SMARTSTOCK_REQUEST_TIMEOUT")); value != "" {
		fc.API.RequestTimeout = value
	}
	if value := strings.TrimSpace(os.Getenv("SMARTSTOCK_DEVSERVER_PORT")); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			fc.DevServer.Port = port
		}
	}
}

func (fc *FileConfig) normalize() {
	fc.API.BaseURL = strings.TrimRight(strings.TrimSpace(fc.API.BaseURL), "/")
	fc.API.RequestTimeout = strings.TrimSpace(fc.API.RequestTimeout)
	fc.Dashboard.InitialView = strings.ToLower(strings.TrimSpace(fc.Dashboard.InitialView))
	fc.DevServer.Host = strings.TrimSpace(fc.DevServer.Host)
	fc.DevServer.Fixtures = strings.TrimSpace(fc.DevServer.Fixtures)
}

func parseTimeout(value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
