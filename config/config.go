package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dataplatform/models"
	"dataplatform/utils"
)

// Project settings. Change these per deployment.
const (
	BackendServiceName   = "backend-mvp"
	DashboardServiceName = "dashboard-mvp"
	DefaultDataset       = "test_auto_create"
	DefaultTable         = "processed_table"
	DefaultCredentials   = "keys.json"
)

// Credential modes reported by Config.CredentialsMode.
const (
	CredentialsFromFile    = "file"
	CredentialsFromDefault = "default"
)

// Config is the resolved process configuration. It is built once at startup
// and handed to the server and the dashboard commands.
type Config struct {
	ProjectID    string `json:"project_id" yaml:"project_id"`
	BackendURL   string `json:"backend_url" yaml:"backend_url"`
	Port         int    `json:"port" yaml:"port"`
	IsProduction bool   `json:"is_production" yaml:"is_production"`

	BackendService   string `json:"backend_service" yaml:"backend_service"`
	DashboardService string `json:"dashboard_service" yaml:"dashboard_service"`
	Dataset          string `json:"dataset" yaml:"dataset"`
	Table            string `json:"table" yaml:"table"`

	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	CredentialsMode string `json:"credentials_mode" yaml:"credentials_mode"`

	ItemStorePath string `json:"itemstore_path" yaml:"itemstore_path"`

	PostgresHost     string `json:"postgres_host" yaml:"postgres_host"`
	PostgresPort     string `json:"postgres_port" yaml:"postgres_port"`
	PostgresUser     string `json:"postgres_user" yaml:"postgres_user"`
	PostgresPassword string `json:"-" yaml:"-"`
	PostgresDB       string `json:"postgres_db" yaml:"postgres_db"`
	PostgresSSLMode  string `json:"postgres_sslmode" yaml:"postgres_sslmode"`
	WarehouseDSN     string `json:"-" yaml:"-"`
}

// Load reads the .env file, then resolves every value from the process
// environment (and the metadata server when needed).
func Load(logger *utils.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("[config] No .env file found, falling back to system env vars")
	}
	return FromResolver(NewResolver(logger))
}

// FromResolver builds a Config from r. Settings that are not part of the
// deployment identity are read through the same env lookup.
func FromResolver(r *Resolver) *Config {
	getEnv := func(key, fallback string) string {
		if val := r.env(key); val != "" {
			return val
		}
		return fallback
	}

	credFile := getEnv("CREDENTIALS_FILE", DefaultCredentials)

	return &Config{
		ProjectID:    r.ProjectID(),
		BackendURL:   r.BackendURL(),
		Port:         r.Port(),
		IsProduction: r.IsProduction(),

		BackendService:   BackendServiceName,
		DashboardService: DashboardServiceName,
		Dataset:          getEnv("ANALYTICS_DATASET", DefaultDataset),
		Table:            getEnv("ANALYTICS_TABLE", DefaultTable),

		CredentialsFile: credFile,
		CredentialsMode: credentialsMode(credFile),

		ItemStorePath: getEnv("ITEMSTORE_PATH", "./data/items.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "warehouse"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "warehouse"),
		PostgresDB:       getEnv("POSTGRES_DB", "warehouse"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		WarehouseDSN:     getEnv("WAREHOUSE_DSN", ""),
	}
}

func credentialsMode(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return CredentialsFromFile
	}
	return CredentialsFromDefault
}

// DSN returns the warehouse connection string. WAREHOUSE_DSN wins over the
// individual POSTGRES_* settings.
func (c *Config) DSN() string {
	if c.WarehouseDSN != "" {
		return c.WarehouseDSN
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// AnalyticsTable is the fixed ingestion target.
func (c *Config) AnalyticsTable() models.TableRef {
	return models.TableRef{Project: c.ProjectID, Dataset: c.Dataset, Table: c.Table}
}

// Environment is "production" or "local".
func (c *Config) Environment() string {
	if c.IsProduction {
		return "production"
	}
	return "local"
}

// Summary renders the configuration as YAML for the config command.
func (c *Config) Summary() ([]byte, error) {
	type summary struct {
		Environment string  `yaml:"environment"`
		Table       string  `yaml:"analytics_table"`
		Config      *Config `yaml:"config"`
	}
	return yaml.Marshal(summary{
		Environment: c.Environment(),
		Table:       c.AnalyticsTable().String(),
		Config:      c,
	})
}
