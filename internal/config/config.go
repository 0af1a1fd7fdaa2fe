// Package config loads spl settings from defaults, an optional YAML file and
// SPL_* environment variables, in that order. Command-line flags are applied
// on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported backends.
const (
	BackendSonos = "sonos"
	BackendMPD   = "mpd"
)

const (
	defaultOutputDir        = "."
	defaultDiscoveryTimeout = 5 * time.Second
	defaultMPDHost          = "localhost"
	defaultMPDPort          = 6600
	defaultMPDName          = "MPD"
	defaultCrossfadeSeconds = 5
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MPD holds the MPD backend settings.
type MPD struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Password         string `yaml:"password"`
	Name             string `yaml:"name"`
	CrossfadeSeconds int    `yaml:"crossfadeSeconds"`
}

// Config is the resolved configuration.
type Config struct {
	Backend          string        `yaml:"backend"`
	Speaker          string        `yaml:"speaker"`
	Interface        string        `yaml:"interface"`
	OutputDir        string        `yaml:"outputDir"`
	DiscoveryTimeout time.Duration `yaml:"discoveryTimeout"`
	Debug            bool          `yaml:"debug"`
	MPD              MPD           `yaml:"mpd"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Backend:          BackendSonos,
		OutputDir:        defaultOutputDir,
		DiscoveryTimeout: defaultDiscoveryTimeout,
		MPD: MPD{
			Host:             defaultMPDHost,
			Port:             defaultMPDPort,
			Name:             defaultMPDName,
			CrossfadeSeconds: defaultCrossfadeSeconds,
		},
	}
}

// DefaultPath returns ~/.config/spl/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "spl", "config.yaml")
}

// Load resolves the configuration. path, or SPL_CONFIG when path is empty,
// names a file that must exist; without either the default path is read
// only if present.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SPL_CONFIG"))
	}
	if path == "" {
		path = DefaultPath()
		explicit = false
	}

	if path != "" {
		if err := cfg.loadFile(ExpandHome(path), explicit); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.OutputDir = ExpandHome(cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if value := strings.TrimSpace(os.Getenv("SPL_BACKEND")); value != "" {
		c.Backend = value
	}
	if value := strings.TrimSpace(os.Getenv("SPL_SPEAKER")); value != "" {
		c.Speaker = value
	}
	if value := strings.TrimSpace(os.Getenv("SPL_INTERFACE")); value != "" {
		c.Interface = value
	}
	if value := strings.TrimSpace(os.Getenv("SPL_OUTPUT_DIR")); value != "" {
		c.OutputDir = value
	}
	if value := strings.TrimSpace(os.Getenv("SPL_MPD_HOST")); value != "" {
		c.MPD.Host = value
	}
	if value := os.Getenv("SPL_MPD_PASSWORD"); value != "" {
		c.MPD.Password = value
	}

	if value := strings.TrimSpace(os.Getenv("SPL_MPD_PORT")); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: SPL_MPD_PORT %q is not a number", ErrInvalid, value)
		}
		c.MPD.Port = port
	}
	if value := strings.TrimSpace(os.Getenv("SPL_DISCOVERY_TIMEOUT")); value != "" {
		d, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: SPL_DISCOVERY_TIMEOUT %q: %v", ErrInvalid, value, err)
		}
		c.DiscoveryTimeout = d
	}
	if value := strings.TrimSpace(os.Getenv("SPL_DEBUG")); value != "" {
		debug, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: SPL_DEBUG %q is not a boolean", ErrInvalid, value)
		}
		c.Debug = debug
	}
	return nil
}

// parseDuration accepts Go durations ("3s") and bare seconds ("3").
func parseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSonos, BackendMPD:
	default:
		return fmt.Errorf("%w: unknown backend %q (want %s or %s)", ErrInvalid, c.Backend, BackendSonos, BackendMPD)
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("%w: discoveryTimeout must be positive", ErrInvalid)
	}
	if c.MPD.Port <= 0 || c.MPD.Port > 65535 {
		return fmt.Errorf("%w: mpd port %d out of range", ErrInvalid, c.MPD.Port)
	}
	if c.MPD.CrossfadeSeconds <= 0 {
		return fmt.Errorf("%w: mpd crossfadeSeconds must be positive", ErrInvalid)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
