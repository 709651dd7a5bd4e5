package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Modes of operation. Demo keeps every write in memory and never contacts
// the hosted repository; use it to try the form without credentials.
const (
	ModeLive = "live"
	ModeDemo = "demo"
)

// Config is the full configuration for the timeline service. Values come
// from an optional TOML file with environment overrides on top; components
// receive the resulting struct and never read ambient environment state
// themselves.
type Config struct {
	Listen string `toml:"listen"`
	Mode   string `toml:"mode"`

	GitHub GitHubConfig `toml:"github"`
	Store  StoreConfig  `toml:"store"`
	Images ImagesConfig `toml:"images"`
	Auth   AuthConfig   `toml:"auth"`
	Data   DataConfig   `toml:"data"`
	Log    LogConfig    `toml:"log"`
}

// GitHubConfig identifies the hosted repository and branch. APIBase and
// RawBase are overridable for tests and GitHub Enterprise hosts.
type GitHubConfig struct {
	Token   string `toml:"token"`
	Owner   string `toml:"owner"`
	Repo    string `toml:"repo"`
	Branch  string `toml:"branch"`
	APIBase string `toml:"api_base,omitempty"`
	RawBase string `toml:"raw_base,omitempty"`
}

// StoreConfig selects the tabular-file backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "github", "filesystem", or "memory"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root       string `toml:"root,omitempty"`
	PublicBase string `toml:"public_base,omitempty"`
}

// ImagesConfig selects the image blob backend and the storage format.
type ImagesConfig struct {
	// Backend is "store" (same backend as the tabular file) or "s3".
	Backend string `toml:"backend"`

	// Format is "webp" (transcode via the external encoder) or
	// "original" (store uploads as-is).
	Format  string `toml:"format"`
	Quality int    `toml:"quality"`

	// FallbackOriginal stores the untranscoded upload when the encoder
	// fails instead of failing the submission.
	FallbackOriginal bool `toml:"fallback_original"`

	// S3-specific fields (only used when Backend == "s3")
	S3Bucket     string `toml:"s3_bucket,omitempty"`
	S3Prefix     string `toml:"s3_prefix,omitempty"`
	S3Region     string `toml:"s3_region,omitempty"`
	S3AccessKey  string `toml:"s3_access_key,omitempty"`
	S3SecretKey  string `toml:"s3_secret_key,omitempty"`
	S3PublicBase string `toml:"s3_public_base,omitempty"`
}

// AuthConfig is the shared-secret Basic credential pair. OpenPaths lists
// routes served without a credential.
type AuthConfig struct {
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	OpenPaths []string `toml:"open_paths"`
}

// DataConfig names the stored layout inside the repository.
type DataConfig struct {
	CSVPath   string `toml:"csv_path"`
	ImagesDir string `toml:"images_dir"`
}

// LogConfig controls where the structured log goes besides stderr.
type LogConfig struct {
	Dir string `toml:"dir,omitempty"`
}

// NewConfig returns a Config with the stock defaults.
func NewConfig() *Config {
	return &Config{
		Listen: ":8080",
		Mode:   ModeLive,
		GitHub: GitHubConfig{Branch: "main"},
		Store:  StoreConfig{Type: "github"},
		Images: ImagesConfig{
			Backend:          "store",
			Format:           "webp",
			Quality:          80,
			FallbackOriginal: true,
		},
		Auth: AuthConfig{OpenPaths: []string{"/healthz"}},
		Data: DataConfig{
			CSVPath:   "timeline-data.csv",
			ImagesDir: "images",
		},
	}
}

// Read decodes a Config from the provided reader on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := NewConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then the file at path
// if it exists, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			var readErr error
			cfg, readErr = ReadFromFile(path)
			if readErr != nil {
				return nil, readErr
			}
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overlays environment-provided values. getenv is injectable for
// tests; empty values never override.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "TIMELINE_LISTEN")
	set(&c.Mode, "TIMELINE_MODE")
	set(&c.GitHub.Token, "GITHUB_TOKEN")
	set(&c.GitHub.Owner, "GITHUB_USERNAME")
	set(&c.GitHub.Repo, "GITHUB_REPO")
	set(&c.GitHub.Branch, "GITHUB_BRANCH")
	set(&c.Auth.Username, "AUTH_USERNAME")
	set(&c.Auth.Password, "AUTH_PASSWORD")
}

// Validate rejects configurations that cannot run. Live mode has no
// fallback credential of any kind: a missing auth pair or hosting token is
// a startup error, not a degraded mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLive:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			return fmt.Errorf("live mode requires auth.username and auth.password")
		}
		if c.Store.Type == "github" {
			if c.GitHub.Token == "" {
				return fmt.Errorf("live mode with the github backend requires github.token")
			}
			if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
				return fmt.Errorf("github backend requires github.owner and github.repo")
			}
		}
	case ModeDemo:
		// Demo runs without credentials against the memory backend.
	default:
		return fmt.Errorf("unknown mode: %s", c.Mode)
	}

	switch c.Store.Type {
	case "github", "memory":
	case "filesystem":
		if c.Store.Root == "" {
			return fmt.Errorf("filesystem backend requires store.root")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}

	switch c.Images.Backend {
	case "store", "":
	case "s3":
		if c.Images.S3Bucket == "" {
			return fmt.Errorf("s3 image backend requires images.s3_bucket")
		}
	default:
		return fmt.Errorf("unknown image backend: %s", c.Images.Backend)
	}

	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config at %s: %w", path, err)
	}
	return nil
}
