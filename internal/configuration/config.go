package configuration

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.yaml"

type MongoConfig struct {
	// Uri left empty keeps messages and conversations in memory
	Uri      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ServerConfig struct {
	Port           int             `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type StorageConfig struct {
	// LocationsPath is the Pebble directory for conversation locations; empty disables persistence
	LocationsPath string `yaml:"locations_path"`
}

type EscalationConfig struct {
	UnansweredThreshold int    `yaml:"unanswered_threshold"`
	DigestCron          string `yaml:"digest_cron"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Escalation EscalationConfig `yaml:"escalation"`
	Features   map[string]any   `yaml:"features"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:4200"},
			RateLimit:      RateLimitConfig{RPS: 20, Burst: 40},
		},
		Mongo:      MongoConfig{Database: "flort"},
		Log:        LogConfig{Level: "info"},
		Storage:    StorageConfig{LocationsPath: "data/locations"},
		Escalation: EscalationConfig{UnansweredThreshold: 3, DigestCron: "*/15 * * * *"},
	}
}

// LoadConfig reads .env, then the YAML file at path (FLORT_CONFIG or config.yaml when empty),
// then environment overrides. A missing file means defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if path == "" {
		path = getEnv("FLORT_CONFIG", defaultConfigPath)
	}

	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("FLORT_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLORT_PORT: %w", err)
		}
		c.Server.Port = port
	}
	c.Mongo.Uri = getEnv("FLORT_MONGO_URI", c.Mongo.Uri)
	c.Log.Level = getEnv("FLORT_LOG_LEVEL", c.Log.Level)
	c.Storage.LocationsPath = getEnv("FLORT_LOCATIONS_PATH", c.Storage.LocationsPath)
	if origins := getEnv("FLORT_ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	return nil
}

// Validate reports every invalid value at once
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit.RPS < 0 || c.Server.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit values must not be negative"))
	}
	if c.Escalation.UnansweredThreshold < 0 {
		errs = append(errs, fmt.Errorf("escalation.unanswered_threshold %d must not be negative", c.Escalation.UnansweredThreshold))
	}
	if !gronx.IsValid(c.Escalation.DigestCron) {
		errs = append(errs, fmt.Errorf("escalation.digest_cron %q is not a valid cron expression", c.Escalation.DigestCron))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Mongo.Uri != "" && c.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.database is required when mongo.uri is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
