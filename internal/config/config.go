package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	APIURL         string        `toml:"api_url"`
	Token          string        `toml:"-"`
	PollInterval   time.Duration `toml:"poll_interval"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	DBPath         string        `toml:"db_path"`
	DownloadDir    string        `toml:"download_dir"`
	PageSize       int           `toml:"page_size"`
	Player         PlayerConfig  `toml:"player"`
	Stub           StubConfig    `toml:"stub"`
}

// PlayerConfig is the command used to open downloaded videos. Args may
// contain a {path} placeholder.
type PlayerConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// StubConfig configures `reel stub-server`.
type StubConfig struct {
	Addr         string `toml:"addr"`
	RenderPolls  int    `toml:"render_polls"`
	AssetBaseURL string `toml:"asset_base_url"`
}

// DefaultConfigPath returns the config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "reel", "config.toml")
}

// DefaultDBPath returns the default database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "reel", "reel.db")
}

// DefaultDownloadDir returns the default video download directory.
func DefaultDownloadDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Videos")
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:         "http://localhost:5000",
		PollInterval:   5 * time.Second,
		RequestTimeout: 15 * time.Second,
		DBPath:         DefaultDBPath(),
		DownloadDir:    DefaultDownloadDir(),
		PageSize:       10,
		Stub: StubConfig{
			Addr:        ":5000",
			RenderPolls: 3,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (or
// DefaultConfigPath when empty), a .env file in the working directory and
// REEL_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}
	cfg.applyEnv()

	cfg.DBPath = ExpandPath(cfg.DBPath)
	cfg.DownloadDir = ExpandPath(cfg.DownloadDir)
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config %s: %w", path, err)
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Printf("config: unknown key %q in %s", key.String(), path)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REEL_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("REEL_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("REEL_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := os.Getenv("REEL_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("REEL_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("REEL_DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("REEL_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PageSize = n
		}
	}
	if v := os.Getenv("REEL_PLAYER"); v != "" {
		c.Player.Command = v
	}
}

// BindFlags registers the global flags on fs, defaulting to the current
// values so that parsed flags override everything loaded before.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.APIURL, "api-url", c.APIURL, "Backend base URL")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Status poll interval")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Per-request timeout for status queries")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.DownloadDir, "download-dir", c.DownloadDir, "Video download directory")
}

// Validate checks the values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url %q must be an http(s) URL", c.APIURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", c.PageSize)
	}
	return nil
}
