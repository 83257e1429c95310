// Package config provides configuration management for repcut.
// Configuration is loaded from an optional .env file and environment
// variables, with the backend token falling back to the OS keyring.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

const (
	// Default values
	DefaultPort       = 8788
	DefaultLogLevel   = "info"
	DefaultDataDir    = ".repcut"
	DefaultBackendURL = "http://localhost:5000"
	DefaultSavePoll   = 2 // seconds

	// Scene detector defaults and ranges
	DefaultDetectThreshold   = 27.0
	MinDetectThreshold       = 8.0
	MaxDetectThreshold       = 50.0
	DefaultDetectMinSceneLen = 0.6
	MinDetectMinSceneLen     = 0.3
	MaxDetectMinSceneLen     = 3.0

	// Environment variable names
	EnvPort              = "REPCUT_PORT"
	EnvLogLevel          = "REPCUT_LOG_LEVEL"
	EnvLogFile           = "REPCUT_LOG_FILE"
	EnvDataDir           = "REPCUT_DATA_DIR"
	EnvMediaDir          = "REPCUT_MEDIA_DIR"
	EnvBackendURL        = "REPCUT_BACKEND_URL"
	EnvBackendToken      = "REPCUT_BACKEND_TOKEN"
	EnvAllowedOrigins    = "REPCUT_ALLOWED_ORIGINS"
	EnvHeadless          = "REPCUT_HEADLESS"
	EnvSavePollSeconds   = "REPCUT_SAVE_POLL_SECONDS"
	EnvDetectThreshold   = "REPCUT_DETECT_THRESHOLD"
	EnvDetectMinSceneLen = "REPCUT_DETECT_MIN_SCENE_LEN"

	// Database filename
	DBFilename = "repcut.db"

	// KeyringService is the keyring service name holding the backend token.
	KeyringService = "repcut"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFile() string
	DataDir() string
	DBPath() string
	MediaDir() string
	ExportDir() string
	BackendURL() string
	BackendToken() string
	AllowedOrigins() []string
	Headless() bool
	SavePollInterval() time.Duration
	DetectThreshold() float64
	DetectMinSceneLen() float64
}

// SecretStore holds secrets per user.
type SecretStore interface {
	Get(user string) (string, error)
	Set(user, secret string) error
}

// KeyringStore is a SecretStore backed by the OS keyring.
type KeyringStore struct {
	Service string
}

func (k KeyringStore) service() string {
	if k.Service == "" {
		return KeyringService
	}
	return k.Service
}

// Get returns the stored secret, or "" when none is stored.
func (k KeyringStore) Get(user string) (string, error) {
	secret, err := keyring.Get(k.service(), user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return secret, err
}

// Set stores a secret.
func (k KeyringStore) Set(user, secret string) error {
	return keyring.Set(k.service(), user, secret)
}

// KeyringUser returns the account name secrets are stored under.
func KeyringUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "default"
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port              int
	logLevel          string
	logFile           string
	dataDir           string
	mediaDir          string
	backendURL        string
	backendToken      string
	allowedOrigins    []string
	headless          bool
	savePoll          time.Duration
	detectThreshold   float64
	detectMinSceneLen float64
}

// New loads .env from the working directory, then reads the environment.
// The backend token falls back to the OS keyring.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Load(KeyringStore{})
}

// Load reads the environment, using secrets for the token fallback. A nil
// secrets store disables the fallback.
func Load(secrets SecretStore) (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		backendURL:        DefaultBackendURL,
		savePoll:          DefaultSavePoll * time.Second,
		detectThreshold:   DefaultDetectThreshold,
		detectMinSceneLen: DefaultDetectMinSceneLen,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	cfg.logFile = os.Getenv(EnvLogFile)

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	cfg.mediaDir = os.Getenv(EnvMediaDir)

	if u := os.Getenv(EnvBackendURL); u != "" {
		cfg.backendURL = strings.TrimRight(u, "/")
	}

	if origins := os.Getenv(EnvAllowedOrigins); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.allowedOrigins = append(cfg.allowedOrigins, o)
			}
		}
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if s := os.Getenv(EnvSavePollSeconds); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvSavePollSeconds)
		}
		cfg.savePoll = time.Duration(secs) * time.Second
	}

	var err error
	if cfg.detectThreshold, err = rangedFloat(EnvDetectThreshold, DefaultDetectThreshold, MinDetectThreshold, MaxDetectThreshold); err != nil {
		return nil, err
	}
	if cfg.detectMinSceneLen, err = rangedFloat(EnvDetectMinSceneLen, DefaultDetectMinSceneLen, MinDetectMinSceneLen, MaxDetectMinSceneLen); err != nil {
		return nil, err
	}

	cfg.backendToken = os.Getenv(EnvBackendToken)
	if cfg.backendToken == "" && secrets != nil {
		// A missing or locked keyring is not fatal; the backend may not need a token.
		if token, err := secrets.Get(KeyringUser()); err == nil {
			cfg.backendToken = token
		}
	}

	return cfg, nil
}

func rangedFloat(env string, def, lo, hi float64) (float64, error) {
	raw := os.Getenv(env)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s: must be between %g and %g", env, lo, hi)
	}
	return v, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFile returns the rotating log file path, or "" for stdout only.
func (c *EnvConfig) LogFile() string {
	return c.logFile
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// MediaDir returns the directory local videos are served from.
func (c *EnvConfig) MediaDir() string {
	if c.mediaDir != "" {
		return c.mediaDir
	}
	return filepath.Join(c.dataDir, "media")
}

// ExportDir returns the directory EDL exports are written to.
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

func (c *EnvConfig) BackendURL() string {
	return c.backendURL
}

func (c *EnvConfig) BackendToken() string {
	return c.backendToken
}

// AllowedOrigins returns extra CORS origins beyond localhost.
func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

// Headless reports whether the tray UI is disabled.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) SavePollInterval() time.Duration {
	return c.savePoll
}

func (c *EnvConfig) DetectThreshold() float64 {
	return c.detectThreshold
}

func (c *EnvConfig) DetectMinSceneLen() float64 {
	return c.detectMinSceneLen
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
