package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // facility time zones on hosts without zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Facility FacilityConfig `yaml:"facility"`
	Board    BoardConfig    `yaml:"board"`
	Admin    AdminConfig    `yaml:"admin"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"dbname"`
	SSLMode     string `yaml:"sslmode"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// AWSConfig holds S3-compatible blob store configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	// PublicURL is the base URL objects are served from; defaults to the bucket's virtual-host URL
	PublicURL string `yaml:"public_url"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// FacilityConfig holds reservation rules
type FacilityConfig struct {
	Timezone     string `yaml:"timezone"`
	MaxGroupSize int    `yaml:"max_group_size"`
}

// BoardConfig holds bulletin board limits
type BoardConfig struct {
	MaxImageSide   int   `yaml:"max_image_side"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// AdminConfig holds the shared key for administrative routes
type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads configuration from a YAML file, then applies .env and environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Database.Host, "DB_HOST")
	overrideString(&c.Database.User, "DB_USER")
	overrideString(&c.Database.Password, "DB_PASSWORD")
	overrideString(&c.Database.DBName, "DB_NAME")
	overrideString(&c.JWT.Secret, "JWT_SECRET")
	overrideString(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	overrideString(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	overrideString(&c.AWS.Region, "AWS_REGION")
	overrideString(&c.AWS.S3Bucket, "S3_BUCKET")
	overrideString(&c.Admin.APIKey, "ADMIN_API_KEY")
	overrideString(&c.Log.Level, "LOG_LEVEL")

	if port, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil {
		c.Server.Port = port
	}
	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		c.Database.Port = port
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Facility.Timezone == "" {
		c.Facility.Timezone = "Asia/Seoul"
	}
	if c.Facility.MaxGroupSize == 0 {
		c.Facility.MaxGroupSize = 4
	}
	if c.Board.MaxImageSide == 0 {
		c.Board.MaxImageSide = 1920
	}
	if c.Board.MaxUploadBytes == 0 {
		c.Board.MaxUploadBytes = 32 << 20
	}
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt secret is required")
	}
	if _, err := c.Facility.Location(); err != nil {
		return err
	}
	if c.Facility.MaxGroupSize < 1 {
		return fmt.Errorf("facility max_group_size must be positive, got %d", c.Facility.MaxGroupSize)
	}
	return nil
}

// Location returns the time zone reservation days are counted in
func (c FacilityConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid facility timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func overrideString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
