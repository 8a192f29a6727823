package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// PROPERTYHUB_DATABASE_PATH for database.path.
const EnvPrefix = "PROPERTYHUB"

// Config represents the complete configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Keyring  KeyringConfig  `mapstructure:"keyring"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// DatabaseConfig selects and tunes the relational store.
type DatabaseConfig struct {
	// Driver is "sqlite" (desktop mode, file backed) or "postgres" (server mode).
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
	// SoftDelete flips the state column on delete instead of removing rows.
	SoftDelete bool `mapstructure:"soft_delete"`
	// PassphraseKey names the secret store entry holding the SQLCipher passphrase.
	PassphraseKey string `mapstructure:"passphrase_key"`
}

// BackupConfig controls local backups and the optional off-site copy.
type BackupConfig struct {
	Dir                string        `mapstructure:"dir"`
	Retention          int           `mapstructure:"retention"`
	CopyAttempts       int           `mapstructure:"copy_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	HandleReleaseDelay time.Duration `mapstructure:"handle_release_delay"`
	Offsite            OffsiteConfig `mapstructure:"offsite"`
}

// OffsiteConfig points at a MinIO/S3 bucket. An empty endpoint disables it.
type OffsiteConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// AuthConfig configures bearer token validation. JWKSURL wins over Secret.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWKSURL   string `mapstructure:"jwks_url"`
}

// RedisConfig backs the session cache. An empty address disables it.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// KeyringConfig selects the platform secret store.
type KeyringConfig struct {
	ServiceName string `mapstructure:"service_name"`
	FileDir     string `mapstructure:"file_dir"`
}

// JobsConfig holds background job intervals. Zero disables a job.
type JobsConfig struct {
	BackupInterval       time.Duration `mapstructure:"backup_interval"`
	OverdueSweepInterval time.Duration `mapstructure:"overdue_sweep_interval"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join("data", "propertyhub.db"))
	v.SetDefault("database.url", "")
	v.SetDefault("database.soft_delete", true)
	v.SetDefault("database.passphrase_key", "database-passphrase")

	v.SetDefault("backup.dir", "")
	v.SetDefault("backup.retention", 10)
	v.SetDefault("backup.copy_attempts", 3)
	v.SetDefault("backup.retry_delay", 500*time.Millisecond)
	v.SetDefault("backup.handle_release_delay", 100*time.Millisecond)
	v.SetDefault("backup.offsite.endpoint", "")
	v.SetDefault("backup.offsite.access_key", "")
	v.SetDefault("backup.offsite.secret_key", "")
	v.SetDefault("backup.offsite.bucket", "propertyhub-backups")
	v.SetDefault("backup.offsite.use_ssl", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwks_url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.session_ttl", 30*time.Minute)

	v.SetDefault("log.level", "info")

	v.SetDefault("keyring.service_name", "propertyhub")
	v.SetDefault("keyring.file_dir", "")

	v.SetDefault("jobs.backup_interval", 24*time.Hour)
	v.SetDefault("jobs.overdue_sweep_interval", time.Hour)
}

// Load reads an optional .env file, an optional config file and the
// environment, in increasing order of precedence.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Backup.Retention < 1 {
		return fmt.Errorf("backup.retention must be at least 1")
	}
	if c.Backup.CopyAttempts < 1 {
		return fmt.Errorf("backup.copy_attempts must be at least 1")
	}
	return nil
}

// BackupDir is the configured backup directory or "Backups" beside the store file.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(filepath.Dir(c.Database.Path), "Backups")
}

// DesktopMode reports whether the store is a local sqlite file.
func (c *Config) DesktopMode() bool {
	return c.Database.Driver == "sqlite"
}
