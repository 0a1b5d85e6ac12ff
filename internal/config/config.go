package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	BUSCO         BUSCOConfig         `toml:"busco"`
	Diamond       DiamondConfig       `toml:"diamond"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	WorkDir      string        `toml:"work_dir"`
	DatabasePath string        `toml:"database_path"`
	Threads      int           `toml:"threads"`
	ToolTimeout  time.Duration `toml:"tool_timeout"`
}

// BUSCOConfig holds completeness-assessment settings
type BUSCOConfig struct {
	Lineage       string `toml:"lineage"`
	LineageDir    string `toml:"lineage_dir"`
	AutoDownload  bool   `toml:"auto_download"`
	ReferenceFile string `toml:"reference_faa"`
}

// DiamondConfig holds alignment settings
type DiamondConfig struct {
	EValue string `toml:"evalue"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			WorkDir:      ".",
			DatabasePath: filepath.Join(home, ".genomeqc", "runs.db"),
			Threads:      4,
			ToolTimeout:  0, // no timeout unless configured
		},
		BUSCO: BUSCOConfig{
			Lineage:      "hymenoptera_odb10",
			LineageDir:   ".",
			AutoDownload: true,
		},
		Diamond: DiamondConfig{
			EValue: "1e-5",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.WorkDir = ExpandPath(cfg.General.WorkDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.BUSCO.LineageDir = ExpandPath(cfg.BUSCO.LineageDir)
	cfg.BUSCO.ReferenceFile = ExpandPath(cfg.BUSCO.ReferenceFile)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "genomeqc", "config.toml")
}
