package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

type Config struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`

	Auth struct {
		RedisURL           string `toml:"redis_url"`
		SessionKeyTemplate string `toml:"session_key_template"`
		TokenHeader        string `toml:"token_header"`
		SessionTTLHours    int    `toml:"session_ttl_hours"`
	} `toml:"auth"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Storage struct {
		Backend       string `toml:"backend"` // "fs" or "b2"
		Root          string `toml:"root"`
		Bucket        string `toml:"bucket"`
		PublicBaseURL string `toml:"public_base_url"`
		B2AccountID   string `toml:"b2_account_id"`
		B2AppKey      string `toml:"b2_app_key"`
	} `toml:"storage"`

	Notify struct {
		RedisURL        string `toml:"redis_url"`
		ChannelTemplate string `toml:"channel_template"`
	} `toml:"notify"`

	Reaper struct {
		Schedule     string `toml:"schedule"`
		GraceMinutes int    `toml:"grace_minutes"`
	} `toml:"reaper"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :8080")
	}
	if config.Auth.SessionKeyTemplate == "" {
		config.Auth.SessionKeyTemplate = "session:{token}"
	}
	if config.Auth.SessionTTLHours <= 0 {
		config.Auth.SessionTTLHours = 12
	}
	if config.Notify.ChannelTemplate == "" {
		config.Notify.ChannelTemplate = "changes:{table}"
	}
	if config.Reaper.GraceMinutes <= 0 {
		config.Reaper.GraceMinutes = 60
	}

	logger.Debug.Printf("Loaded storage config: backend=%s bucket=%s", config.Storage.Backend, config.Storage.Bucket)

	return &config, nil
}
