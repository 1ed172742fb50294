package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	NotificationModeDirect   = "direct"
	NotificationModeWorkflow = "workflow"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known variables when the file left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Session.JWTSecret == "" {
		cfg.Session.JWTSecret = os.Getenv("ONBOARDING_JWT_SECRET")
	}
	if cfg.Notifications.SMTP.Password == "" {
		cfg.Notifications.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "crew-onboarding"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8081"
	}
	if cfg.HTTP.OpsAddress == "" {
		cfg.HTTP.OpsAddress = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15000
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30000
	}
	if cfg.HTTP.MaxUploadBytes == 0 {
		cfg.HTTP.MaxUploadBytes = 25 << 20
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}
	if cfg.Camunda.MessageTTL == 0 {
		cfg.Camunda.MessageTTL = 3600000
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.ConnLifetime == 0 {
		cfg.Database.Postgres.ConnLifetime = 300000
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "onboarding-submissions"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.Wizard.SaveTimeout == 0 {
		cfg.Wizard.SaveTimeout = 10000
	}
	if cfg.Wizard.SubmitTimeout == 0 {
		cfg.Wizard.SubmitTimeout = 30000
	}
	if cfg.Wizard.TransitionLockTTL == 0 {
		cfg.Wizard.TransitionLockTTL = 30000
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageS3
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.BadgeBucket == "" {
		cfg.Storage.BadgeBucket = "badge-photos"
	}
	if cfg.Storage.DocumentsBucket == "" {
		cfg.Storage.DocumentsBucket = "onboarding-documents"
	}
	if cfg.Storage.VoiceBucket == "" {
		cfg.Storage.VoiceBucket = "voice-pitches"
	}
	if cfg.Storage.SignedURLTTLSecs == 0 {
		cfg.Storage.SignedURLTTLSecs = 900
	}

	if cfg.Credentials.CompanyDomain == "" {
		cfg.Credentials.CompanyDomain = "example-roofing.com"
	}
	if cfg.Credentials.BcryptCost == 0 {
		cfg.Credentials.BcryptCost = 12
	}
	if cfg.Credentials.PasswordLength == 0 {
		cfg.Credentials.PasswordLength = 16
	}
	if cfg.Credentials.PasswordDigits == 0 {
		cfg.Credentials.PasswordDigits = 3
	}
	if cfg.Credentials.PasswordSymbol == 0 {
		cfg.Credentials.PasswordSymbol = 2
	}

	if cfg.Session.Issuer == "" {
		cfg.Session.Issuer = "crew-onboarding"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 7 * 24 * 3600 * 1000
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "onboarding"
	}

	if cfg.Badge.MaxUploadBytes == 0 {
		cfg.Badge.MaxUploadBytes = 10 << 20
	}
	if cfg.Badge.MinWidth == 0 {
		cfg.Badge.MinWidth = 300
	}
	if cfg.Badge.MinHeight == 0 {
		cfg.Badge.MinHeight = 300
	}
	if cfg.Badge.DarkAverage == 0 {
		cfg.Badge.DarkAverage = 60
	}
	if cfg.Badge.BrightAverage == 0 {
		cfg.Badge.BrightAverage = 200
	}
	if cfg.Badge.DarkPixelLuma == 0 {
		cfg.Badge.DarkPixelLuma = 40
	}
	if cfg.Badge.DarkPixelMaxRatio == 0 {
		cfg.Badge.DarkPixelMaxRatio = 0.4
	}
	if cfg.Badge.JPEGQuality == 0 {
		cfg.Badge.JPEGQuality = 90
	}

	if cfg.Notifications.Mode == "" {
		cfg.Notifications.Mode = NotificationModeDirect
	}
	if cfg.Notifications.Timeout == 0 {
		cfg.Notifications.Timeout = 15000
	}
	if cfg.Notifications.Email.Provider == "" {
		cfg.Notifications.Email.Provider = "ses"
	}
	if cfg.Notifications.Webhooks.Timeout == 0 {
		cfg.Notifications.Webhooks.Timeout = 5000
	}
	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = cfg.Storage.Region
	}
	if cfg.Notifications.SMTP.Port == 0 {
		cfg.Notifications.SMTP.Port = 587
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.Database.Driver)
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Storage.Driver {
	case StorageS3, StorageMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StorageS3, StorageMemory, cfg.Storage.Driver)
	}

	if cfg.Database.Elasticsearch.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when enabled")
	}

	switch cfg.Notifications.Mode {
	case NotificationModeDirect:
	case NotificationModeWorkflow:
		if cfg.Camunda.BrokerAddress == "" {
			return fmt.Errorf("camunda.broker_address is required in workflow notification mode")
		}
	default:
		return fmt.Errorf("notifications.mode must be %q or %q", NotificationModeDirect, NotificationModeWorkflow)
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Session.JWTSecret == "" {
		return fmt.Errorf("session.jwt_secret is required")
	}
	if len(cfg.Session.JWTSecret) < 32 && cfg.App.Environment == "production" {
		return fmt.Errorf("session.jwt_secret must be at least 32 bytes in production")
	}

	if cfg.Credentials.BcryptCost < 10 || cfg.Credentials.BcryptCost > 14 {
		return fmt.Errorf("credentials.bcrypt_cost must be between 10 and 14, got %d", cfg.Credentials.BcryptCost)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}

// SignedURLTTL returns the configured lifetime of signed document URLs.
func (s StorageConfig) SignedURLTTL() time.Duration {
	return time.Duration(s.SignedURLTTLSecs) * time.Second
}
