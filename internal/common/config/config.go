package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Wizard        WizardConfig            `mapstructure:"wizard"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Credentials   CredentialsConfig       `mapstructure:"credentials"`
	Session       SessionConfig           `mapstructure:"session"`
	Badge         BadgeConfig             `mapstructure:"badge"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Address        string   `mapstructure:"address"`
	OpsAddress     string   `mapstructure:"ops_address"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	MessageTTL     int    `mapstructure:"message_ttl"`     // milliseconds
}

type DatabaseConfig struct {
	Driver        string              `mapstructure:"driver"` // "postgres" or "memory"
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	ConnLifetime   int    `mapstructure:"conn_lifetime"` // milliseconds
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Index      string   `mapstructure:"index"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every Zeebe worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Onboarding Sections ---

// WizardConfig bounds the wizard's backend calls.
type WizardConfig struct {
	SaveTimeout       int `mapstructure:"save_timeout"`        // milliseconds
	SubmitTimeout     int `mapstructure:"submit_timeout"`      // milliseconds
	TransitionLockTTL int `mapstructure:"transition_lock_ttl"` // milliseconds
}

// StorageConfig selects buckets and signed URL lifetimes for uploaded files.
type StorageConfig struct {
	Driver           string `mapstructure:"driver"` // "s3" or "memory"
	Region           string `mapstructure:"region"`
	Endpoint         string `mapstructure:"endpoint"`
	UsePathStyle     bool   `mapstructure:"use_path_style"`
	PublicBaseURL    string `mapstructure:"public_base_url"`
	BadgeBucket      string `mapstructure:"badge_bucket"`
	DocumentsBucket  string `mapstructure:"documents_bucket"`
	VoiceBucket      string `mapstructure:"voice_bucket"`
	SignedURLTTLSecs int    `mapstructure:"signed_url_ttl_secs"`
}

type CredentialsConfig struct {
	CompanyDomain  string `mapstructure:"company_domain"`
	BcryptCost     int    `mapstructure:"bcrypt_cost"`
	PasswordLength int    `mapstructure:"password_length"`
	PasswordDigits int    `mapstructure:"password_digits"`
	PasswordSymbol int    `mapstructure:"password_symbols"`
}

type SessionConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	TTL       int    `mapstructure:"ttl"` // milliseconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

// BadgeConfig holds the advisory quality thresholds of the badge photo editor.
type BadgeConfig struct {
	MaxUploadBytes    int64   `mapstructure:"max_upload_bytes"`
	MinWidth          int     `mapstructure:"min_width"`
	MinHeight         int     `mapstructure:"min_height"`
	DarkAverage       float64 `mapstructure:"dark_average"`
	BrightAverage     float64 `mapstructure:"bright_average"`
	DarkPixelLuma     float64 `mapstructure:"dark_pixel_luma"`
	DarkPixelMaxRatio float64 `mapstructure:"dark_pixel_max_ratio"`
	JPEGQuality       int     `mapstructure:"jpeg_quality"`
}

// NotificationConfig holds the fan-out channels for onboarding events.
type NotificationConfig struct {
	Mode        string   `mapstructure:"mode"` // "direct" or "workflow"
	AdminEmails []string `mapstructure:"admin_emails"`
	Timeout     int      `mapstructure:"timeout"` // milliseconds

	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		Provider  string `mapstructure:"provider"` // "ses" or "smtp"
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	Webhooks struct {
		Enabled bool `mapstructure:"enabled"`
		Timeout int  `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"webhooks"`
	Search struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"search"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SMTP SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
