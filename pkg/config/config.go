package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/pydex/pydex/pkg/index"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultIndexURL = "https://pypi.org/simple/"
	DefaultPageSize = 30
)

type Config struct {
	IndexURL   string `toml:"index_url"`
	StorageDir string `toml:"storage_dir"`
	ListenAddr string `toml:"listen_addr"`
	PageSize   int    `toml:"page_size"`

	// ReindexFrequency is how often the crawler resyncs against the
	// upstream project list; RequestDelay paces individual upstream
	// requests during a crawl.
	ReindexFrequency Duration `toml:"reindex_frequency"`
	RequestDelay     Duration `toml:"request_delay"`

	CrawlPopularProjects bool   `toml:"crawl_popular_projects"`
	PopularProjectsURL   string `toml:"popular_projects_url"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	return &Config{
		IndexURL:           DefaultIndexURL,
		StorageDir:         storageDir,
		ListenAddr:         ":8090",
		PageSize:           DefaultPageSize,
		ReindexFrequency:   Duration{24 * time.Hour},
		RequestDelay:       Duration{10 * time.Millisecond},
		PopularProjectsURL: index.DefaultPopularProjectsURL,
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.IndexURL == "" {
		config.IndexURL = DefaultIndexURL
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8090"
	}

	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}

	if config.ReindexFrequency.Duration == 0 {
		config.ReindexFrequency = Duration{24 * time.Hour}
	}

	if config.RequestDelay.Duration == 0 {
		config.RequestDelay = Duration{10 * time.Millisecond}
	}

	if config.PopularProjectsURL == "" {
		config.PopularProjectsURL = index.DefaultPopularProjectsURL
	}

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	// Replace the placeholder storage_dir with the actual path
	template := strings.Replace(configTemplate, "/home/user/.local/share/pydex", storageDir, 1)
	return template, nil
}

// DBPath returns the project index database path inside the storage dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "projects.db")
}

// CacheDir returns the package metadata cache directory inside the
// storage dir.
func (c *Config) CacheDir() string {
	return filepath.Join(c.StorageDir, "cache")
}

// GetDefaultStorageDir returns the default storage directory for the
// database and metadata cache
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	pydexDir := filepath.Join(dataDir, "pydex")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(pydexDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", pydexDir, err)
	}

	return pydexDir, nil
}

// GetConfigDir returns the configuration directory for pydex
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	pydexConfigDir := filepath.Join(configDir, "pydex")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(pydexConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", pydexConfigDir, err)
	}

	return pydexConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
