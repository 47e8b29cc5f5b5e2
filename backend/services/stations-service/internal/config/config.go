package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "vego/backend/libs/config"
)

// Config defines stations service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"STATIONS_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN          string `yaml:"dsn" env:"STATIONS_POSTGRES_DSN"`
		MaxOpenConns int    `yaml:"maxOpenConns" env:"STATIONS_POSTGRES_MAX_OPEN_CONNS"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"STATIONS_REDIS_ADDR"`
		Password string `yaml:"password" env:"STATIONS_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"STATIONS_REDIS_DB"`
		Channel  string `yaml:"channel" env:"STATIONS_REDIS_CHANNEL"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret" env:"STATIONS_JWT_SECRET"`
	} `yaml:"auth"`
	CheckIn struct {
		ProximityKm float64 `yaml:"proximityKm" env:"STATIONS_CHECKIN_PROXIMITY_KM"`
	} `yaml:"checkin"`
	Expiry struct {
		SweepInterval time.Duration `yaml:"sweepInterval" env:"STATIONS_EXPIRY_SWEEP_INTERVAL"`
		GraceMinutes  int           `yaml:"graceMinutes" env:"STATIONS_EXPIRY_GRACE_MINUTES"`
	} `yaml:"expiry"`
	FCM struct {
		CredentialsFile string `yaml:"credentialsFile" env:"STATIONS_FCM_CREDENTIALS_FILE"`
	} `yaml:"fcm"`
	Seed bool `yaml:"seed" env:"STATIONS_SEED"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8085"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Channel = "stations:updates"
	cfg.CheckIn.ProximityKm = 0.3
	cfg.Expiry.SweepInterval = 60 * time.Second
	cfg.Expiry.GraceMinutes = 3
	cfg.Seed = true

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	if cfg.Expiry.SweepInterval <= 0 {
		return nil, errors.New("config: sweep interval must be positive")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
