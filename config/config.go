package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the full runtime configuration.
type Settings struct {
	DB       DatabaseConfig `mapstructure:"db"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Drafts   DraftConfig    `mapstructure:"drafts"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type AnalysisConfig struct {
	Provider string        `mapstructure:"provider"` // gemini | offline
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DraftConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// AdminConfig seeds a first administrator when both fields are set.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderGemini  = "gemini"
	ProviderOffline = "offline"
)

// SetDefaults registers every key so environment overrides are picked up
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", "construction.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("analysis.provider", ProviderGemini)
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.model", "gemini-2.5-flash-lite")
	v.SetDefault("analysis.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("analysis.timeout", 90*time.Second)
	v.SetDefault("drafts.ttl", 2*time.Hour)
	v.SetDefault("upload.max_bytes", 50<<20)
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
}

// NewViper returns a viper instance with defaults and environment binding.
// Keys map to upper snake case: db.dsn -> DB_DSN.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("analysis.api_key", "ANALYSIS_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	return v
}

// Load reads .env (if present), then the optional config file, then the
// environment.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	// .env is optional; system environment variables are used otherwise
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the service cannot start with.
func (s *Settings) Validate() error {
	var errs []error
	switch s.DB.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("db.driver: unsupported driver %q", s.DB.Driver))
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		errs = append(errs, errors.New("db.dsn: is required"))
	}
	switch s.Analysis.Provider {
	case ProviderGemini, ProviderOffline:
	default:
		errs = append(errs, fmt.Errorf("analysis.provider: unsupported provider %q", s.Analysis.Provider))
	}
	if s.Analysis.Timeout <= 0 {
		errs = append(errs, errors.New("analysis.timeout: must be positive"))
	}
	if s.Drafts.TTL <= 0 {
		errs = append(errs, errors.New("drafts.ttl: must be positive"))
	}
	if s.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes: must be positive"))
	}
	return errors.Join(errs...)
}
