// Package config loads the CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/types"
	"go.streamcat.tech/core/wallet"
	"gopkg.in/yaml.v3"
)

// Networks.
const (
	Mainnet   = "mainnet"
	Testnet11 = "testnet11"
)

type (
	// Coinset configures the ledger client.
	Coinset struct {
		URL               string  `yaml:"url,omitempty"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	}

	// Sage configures the wallet client.
	Sage struct {
		URL      string `yaml:"url"`
		CertPath string `yaml:"cert_path"`
	}

	// Templates are paths to files holding hex-encoded puzzle reveals that
	// are not bundled with the binary.
	Templates struct {
		Token    string `yaml:"token,omitempty"`
		StreamV2 string `yaml:"stream_v2,omitempty"`
	}

	// Log configures logging.
	Log struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir,omitempty"`
	}

	// Config is the CLI configuration.
	Config struct {
		Network      string        `yaml:"network"`
		Fee          string        `yaml:"fee"`
		PollInterval time.Duration `yaml:"poll_interval"`
		Coinset      Coinset       `yaml:"coinset"`
		Sage         Sage          `yaml:"sage"`
		Templates    Templates     `yaml:"templates"`
		Log          Log           `yaml:"log"`
	}
)

// DefaultPath returns the default location of the config file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".streaming", "config.yaml")
	}
	return filepath.Join(home, ".streaming", "config.yaml")
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Network:      Testnet11,
		Fee:          "0.00005",
		PollInterval: 5 * time.Second,
		Coinset: Coinset{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Sage: Sage{
			URL:      wallet.DefaultSageURL,
			CertPath: "~/.local/share/com.rigidnetwork.sage/ssl",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the config file at path over the defaults. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
	} else if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating its directory if necessary.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Network {
	case Mainnet, Testnet11:
	default:
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if c.Coinset.RequestsPerSecond <= 0 || c.Coinset.Burst <= 0 {
		return errors.New("coinset request rate must be positive")
	} else if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// Mainnet reports whether the config targets mainnet.
func (c Config) Mainnet() bool {
	return c.Network == Mainnet
}

// CoinsetURL returns the coinset API URL for the configured network.
func (c Config) CoinsetURL() string {
	if c.Coinset.URL != "" {
		return c.Coinset.URL
	} else if c.Mainnet() {
		return ledger.MainnetURL
	}
	return ledger.Testnet11URL
}

// ExpandPath replaces a leading ~ in path with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

func readReveal(name string, version types.StreamVersion, path string, expected types.Hash256) (puzzles.Template, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return puzzles.Template{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return puzzles.Template{}, fmt.Errorf("failed to read %s reveal: %w", name, err)
	}
	return puzzles.LoadTemplate(name, version, strings.TrimSpace(string(data)), expected)
}

// LoadTemplates returns the token layer template and the registry of stream
// templates, with any reveals named in the config attached.
func (c Config) LoadTemplates() (token puzzles.Template, r puzzles.Registry, err error) {
	token, r = puzzles.CATTemplate, puzzles.DefaultRegistry()
	if c.Templates.Token != "" {
		token, err = readReveal(puzzles.CATTemplate.Name, 0, c.Templates.Token, puzzles.CATModHash)
		if err != nil {
			return
		}
	}
	if c.Templates.StreamV2 != "" {
		var t puzzles.Template
		t, err = readReveal("stream_v2", types.StreamV2, c.Templates.StreamV2, types.Hash256{})
		if err != nil {
			return
		}
		r, err = r.With(t)
	}
	return
}
