package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the storefront's configuration values.
// Tags like `envconfig:"HTTP_SERVER_PORT"` name the environment variable,
// `default:""` supplies a value when it is unset.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Backend    BackendConfig
	Storage    StorageConfig
	PayPal     PayPalConfig
	Media      MediaConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"0s"` // 0 keeps the event stream open
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	CookieSecure bool          `envconfig:"CLIENT_COOKIE_SECURE" default:"false"`
}

// GrpcServerConfig holds the gRPC health server settings.
type GrpcServerConfig struct {
	Port          string        `envconfig:"GRPC_SERVER_PORT" default:"9090"`
	ProbeInterval time.Duration `envconfig:"GRPC_HEALTH_PROBE_INTERVAL" default:"30s"`
}

// BackendConfig points at the two upstream services.
type BackendConfig struct {
	ManagementURL string        `envconfig:"MANAGEMENT_API_URL" default:"http://localhost:5062"`
	SellerURL     string        `envconfig:"SELLER_API_URL" default:"http://localhost:4000"`
	Timeout       time.Duration `envconfig:"BACKEND_TIMEOUT" default:"15s"`
}

// StorageConfig selects where per-client storage lives.
type StorageConfig struct {
	Driver        string        `envconfig:"STORAGE_DRIVER" default:"memory"` // memory, postgres, mongo
	IdleTTL       time.Duration `envconfig:"STORAGE_IDLE_TTL" default:"720h"`
	PurgeSchedule string        `envconfig:"STORAGE_PURGE_SCHEDULE" default:"@hourly"`
	Postgres      PostgresConfig
	Mongo         MongoConfig
}

// PostgresConfig holds PostgreSQL connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME" default:"storefront"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName)
}

// MongoConfig holds MongoDB connection details.
type MongoConfig struct {
	URI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database string `envconfig:"MONGO_DATABASE" default:"storefront"`
}

// PayPalConfig holds the PayPal REST credentials. An empty ClientID
// disables the PayPal checkout path.
type PayPalConfig struct {
	ClientID  string `envconfig:"PAYPAL_CLIENT_ID"`
	Secret    string `envconfig:"PAYPAL_SECRET"`
	Mode      string `envconfig:"PAYPAL_MODE" default:"sandbox"` // sandbox, live
	Currency  string `envconfig:"PAYPAL_CURRENCY" default:"USD"`
	BrandName string `envconfig:"PAYPAL_BRAND_NAME" default:"Petit Shop"`
	ReturnURL string `envconfig:"PAYPAL_RETURN_URL"`
	CancelURL string `envconfig:"PAYPAL_CANCEL_URL"`
}

// Enabled reports whether PayPal credentials were supplied.
func (pc *PayPalConfig) Enabled() bool {
	return pc.ClientID != "" && pc.Secret != ""
}

// MediaConfig selects the image host for uploaded data URIs.
type MediaConfig struct {
	Driver        string `envconfig:"MEDIA_DRIVER" default:"none"` // none, cloudinary, gcs
	CloudinaryURL string `envconfig:"CLOUDINARY_URL"`
	GCSBucket     string `envconfig:"GCS_BUCKET"`
	Folder        string `envconfig:"MEDIA_FOLDER" default:"petit-shop"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	log.Println("Loading storefront configuration...")
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Printf("Configuration loaded successfully for APP_ENV: %s", cfg.AppEnv)
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres", "mongo":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %s", c.Storage.Driver)
	}
	switch c.Media.Driver {
	case "none":
	case "cloudinary":
		if c.Media.CloudinaryURL == "" {
			return fmt.Errorf("MEDIA_DRIVER=cloudinary requires CLOUDINARY_URL")
		}
	case "gcs":
		if c.Media.GCSBucket == "" {
			return fmt.Errorf("MEDIA_DRIVER=gcs requires GCS_BUCKET")
		}
	default:
		return fmt.Errorf("invalid MEDIA_DRIVER: %s", c.Media.Driver)
	}
	if c.PayPal.Mode != "sandbox" && c.PayPal.Mode != "live" {
		return fmt.Errorf("invalid PAYPAL_MODE: %s", c.PayPal.Mode)
	}
	return nil
}
