package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Nowon11/Infinity-Cubes/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Game      GameConfig      `yaml:"game"`
	Messaging MessagingConfig `yaml:"messaging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
	StaticDir  string `yaml:"static_dir"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// GameConfig holds world coordinator settings
type GameConfig struct {
	Zones         []domain.Zone `yaml:"zones"`
	ZoneDuration  int           `yaml:"zone_duration"`  // seconds between forced rotations
	AdminUsername string        `yaml:"admin_username"` // the single privileged account
	SnapshotDir   string        `yaml:"snapshot_dir"`   // world state documents live here
}

// MessagingConfig holds embedded NATS settings
type MessagingConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for callers
// that run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 3000
	}
	// Note: StaticDir intentionally has no default - empty means don't serve static files

	if cfg.Database.Path == "" {
		cfg.Database.Path = "cubes.db"
	}

	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}

	if len(cfg.Game.Zones) == 0 {
		cfg.Game.Zones = domain.DefaultZones()
	}
	if cfg.Game.ZoneDuration == 0 {
		cfg.Game.ZoneDuration = 300
	}
	if cfg.Game.AdminUsername == "" {
		cfg.Game.AdminUsername = "Admin"
	}
	if cfg.Game.SnapshotDir == "" {
		cfg.Game.SnapshotDir = "data"
	}

	if cfg.Messaging.Host == "" {
		cfg.Messaging.Host = "127.0.0.1"
	}
	// Messaging.Port 0 means pick a random free port
}

// Save writes configuration to a YAML file
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
