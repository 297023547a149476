// Package config handles the XDG configuration directory, file paths and settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// AppName is the application directory name.
	AppName = "tasksync"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// SettingsFile is the optional TOML settings filename.
	SettingsFile = "config.toml"

	// EnvFile is the optional dotenv override filename.
	EnvFile = ".env"

	// DatabaseFile is the local task database filename.
	DatabaseFile = "tasks.db"

	// SyncStateFile holds the identity mappings and the last sync time.
	SyncStateFile = "sync_state.yaml"

	// SyncLockFile guards against overlapping sync passes.
	SyncLockFile = "sync.lock"
)

// Backend names.
const (
	BackendMicrosoftToDo = "mstodo"
	BackendGoogleTasks   = "googletasks"
)

var (
	// ErrNoOAuthClient is returned when oauth_client.json is missing.
	ErrNoOAuthClient = errors.New("oauth_client.json not found")

	// ErrNotLoggedIn is returned when no token has been stored yet.
	ErrNotLoggedIn = errors.New("not logged in (run: tasksync login)")
)

// Settings are the user-tunable options read from config.toml and the environment.
type Settings struct {
	Backend         string `toml:"backend"`
	DefaultListName string `toml:"default_list_name"`
	LocalList       string `toml:"local_list"`
	Timezone        string `toml:"timezone"`
	PageSize        int    `toml:"page_size"`
	APITimeout      string `toml:"api_timeout"`
	Tenant          string `toml:"tenant"`
	MetricsFile     string `toml:"metrics_file"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Backend:         BackendMicrosoftToDo,
		DefaultListName: "Tasks",
		LocalList:       "inbox",
		Timezone:        "Local",
		PageSize:        100,
		APITimeout:      "10s",
		Tenant:          "common",
	}
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are loaded by Load; New leaves the defaults in place.
	Settings Settings
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/tasksync or $HOME/.config/tasksync.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{Dir: dir, Settings: DefaultSettings()}, nil
}

// Load creates a Config and reads config.toml, .env and TASKSYNC_* variables, in that order.
func Load(configDir string) (*Config, error) {
	cfg, err := New(configDir)
	if err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(cfg.SettingsPath(), &cfg.Settings); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("invalid %s: %w", SettingsFile, err)
	}

	env, err := godotenv.Read(cfg.EnvPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("invalid %s: %w", EnvFile, err)
	}
	if env == nil {
		env = make(map[string]string)
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "TASKSYNC_") {
			env[k] = v
		}
	}
	if err := cfg.Settings.applyEnv(env); err != nil {
		return nil, err
	}

	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Settings) applyEnv(env map[string]string) error {
	strs := map[string]*string{
		"TASKSYNC_BACKEND":           &s.Backend,
		"TASKSYNC_DEFAULT_LIST_NAME": &s.DefaultListName,
		"TASKSYNC_LOCAL_LIST":        &s.LocalList,
		"TASKSYNC_TIMEZONE":          &s.Timezone,
		"TASKSYNC_API_TIMEOUT":       &s.APITimeout,
		"TASKSYNC_TENANT":            &s.Tenant,
		"TASKSYNC_METRICS_FILE":      &s.MetricsFile,
	}
	for key, dst := range strs {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	if v := env["TASKSYNC_PAGE_SIZE"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TASKSYNC_PAGE_SIZE: %s", v)
		}
		s.PageSize = n
	}
	return nil
}

// Validate checks settings that would otherwise fail deep inside a sync pass.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendMicrosoftToDo, BackendGoogleTasks:
	default:
		return fmt.Errorf("unknown backend: %s", s.Backend)
	}
	if s.PageSize < 1 {
		return fmt.Errorf("invalid page_size: %d", s.PageSize)
	}
	if strings.TrimSpace(s.DefaultListName) == "" {
		return errors.New("default_list_name must not be empty")
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	if _, err := s.Timeout(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (s Settings) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return systemLocation(), nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %s", s.Timezone)
	}
	return loc, nil
}

// systemLocation returns the host zone under its IANA name, which remote services accept
// where the name "Local" is rejected. It falls back to UTC when the name cannot be found.
func systemLocation() *time.Location {
	if tz := os.Getenv("TZ"); tz != "" {
		if loc, err := time.LoadLocation(strings.TrimPrefix(tz, ":")); err == nil {
			return loc
		}
	}
	if target, err := filepath.EvalSymlinks("/etc/localtime"); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			if loc, err := time.LoadLocation(target[i+len("zoneinfo/"):]); err == nil {
				return loc
			}
		}
	}
	return time.UTC
}

// Timeout parses the per-call API timeout.
func (s Settings) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(s.APITimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid api_timeout: %s", s.APITimeout)
	}
	return d, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// SettingsPath returns the path to config.toml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// EnvPath returns the path to the dotenv override file.
func (c *Config) EnvPath() string {
	return filepath.Join(c.Dir, EnvFile)
}

// DatabasePath returns the path to the local task database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Dir, DatabaseFile)
}

// SyncStatePath returns the path to the mapping store file.
func (c *Config) SyncStatePath() string {
	return filepath.Join(c.Dir, SyncStateFile)
}

// SyncLockPath returns the path to the sync lock file.
func (c *Config) SyncLockPath() string {
	return filepath.Join(c.Dir, SyncLockFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// CheckAuthFiles reports which credential file is missing, if any.
func (c *Config) CheckAuthFiles() error {
	if !c.HasOAuthClient() {
		return fmt.Errorf("%w in %s", ErrNoOAuthClient, c.Dir)
	}
	if !c.HasToken() {
		return ErrNotLoggedIn
	}
	return nil
}
