// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Layout        LayoutConfig            `mapstructure:"layout"`
	Cerfa         CerfaConfig             `mapstructure:"cerfa"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- External APIs ---

// APIsConfig holds settings for the model and map providers.
type APIsConfig struct {
	Vision   VisionConfig   `mapstructure:"vision"`
	ImageGen ImageGenConfig `mapstructure:"image_gen"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	WMS      WMSConfig      `mapstructure:"wms"`
}

type VisionConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// Models maps the aliases accepted from callers (nemotron, qwen) to provider model names.
	Models       map[string]string `mapstructure:"models"`
	DefaultModel string            `mapstructure:"default_model"`
	Timeout      int               `mapstructure:"timeout"` // milliseconds
	MaxRetries   int               `mapstructure:"max_retries"`
}

type ImageGenConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type GeocoderConfig struct {
	URL       string `mapstructure:"url"`
	UserAgent string `mapstructure:"user_agent"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

type WMSConfig struct {
	URL      string `mapstructure:"url"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
	Timeout  int    `mapstructure:"timeout"`   // milliseconds, whole map set
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// --- Documents ---

type LayoutConfig struct {
	AssetRoot          string `mapstructure:"asset_root"`
	DefaultTheme       string `mapstructure:"default_theme"`
	DefaultOrientation string `mapstructure:"default_orientation"`
	DefaultVariant     string `mapstructure:"default_variant"`
	MaxImagePixels     int    `mapstructure:"max_image_pixels"`
	Compress           bool   `mapstructure:"compress"`
}

type CerfaConfig struct {
	TemplatePath string `mapstructure:"template_path"`
	CatalogPath  string `mapstructure:"catalog_path"`
}

type StorageConfig struct {
	PDFTTL int `mapstructure:"pdf_ttl"` // seconds
}

// NotificationConfig holds settings for the send-dossier-email worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
