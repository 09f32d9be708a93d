package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	LLM        LLMConfig
	Vault      VaultConfig
	Processing ProcessingConfig
	Auth       AuthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LLMConfig selects between Azure OpenAI and standard OpenAI. Azure wins
// when both are configured, matching the upstream deployment.
type LLMConfig struct {
	APIKey          string
	Model           string
	BaseURL         string
	AzureAPIKey     string
	AzureBaseURL    string
	AzureDeployment string
	AzureAPIVersion string
	Temperature     float32
	MaxTokens       int
	Timeout         time.Duration
}

// UseAzure reports whether the Azure endpoint should be used.
func (c LLMConfig) UseAzure() bool { return c.AzureAPIKey != "" }

// VaultConfig holds document-vault connection settings.
type VaultConfig struct {
	Enabled       bool
	URL           string
	Username      string
	Password      string
	APIVersion    string
	Timeout       time.Duration
	SessionTTL    time.Duration // vault sessions expire after this window
	RefreshBuffer time.Duration // re-authenticate when this close to expiry
	RequestDelay  time.Duration // pause between consecutive downloads
	MaxRetries    int
}

// ProcessingConfig holds pipeline tunables.
type ProcessingConfig struct {
	PDFDirectory string
	PageLimit    int
	MaxTextChars int
	CacheEnabled bool
}

// AuthConfig holds bearer-token verification settings. Token issuance is an
// external concern; this service only verifies.
type AuthConfig struct {
	Disabled  bool
	SecretKey string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		LLM: LLMConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			Model:           getEnv("OPENAI_MODEL", "gpt-4o"),
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AzureAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
			AzureBaseURL:    getEnv("AZURE_OPENAI_BASE_URL", ""),
			AzureDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT_NAME", ""),
			AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2025-01-01-preview"),
			Temperature:     getEnvAsFloat32("OPENAI_TEMPERATURE", 0.05),
			MaxTokens:       getEnvAsInt("OPENAI_MAX_TOKENS", 2000),
			Timeout:         getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Vault: VaultConfig{
			Enabled:       getEnvAsBool("VAULT_ENABLED", false),
			URL:           getEnv("VAULT_URL", ""),
			Username:      getEnv("VAULT_USERNAME", ""),
			Password:      getEnv("VAULT_PASSWORD", ""),
			APIVersion:    getEnv("VAULT_API_VERSION", "v25.1"),
			Timeout:       getEnvAsDuration("VAULT_API_TIMEOUT", 30*time.Second),
			SessionTTL:    getEnvAsDuration("VAULT_SESSION_TTL", 20*time.Minute),
			RefreshBuffer: getEnvAsDuration("VAULT_REFRESH_BUFFER", 5*time.Minute),
			RequestDelay:  getEnvAsDuration("VAULT_REQUEST_DELAY", 500*time.Millisecond),
			MaxRetries:    getEnvAsInt("VAULT_MAX_RETRIES", 3),
		},
		Processing: ProcessingConfig{
			PDFDirectory: getEnv("PDF_DIRECTORY", "./uploads/pdfs"),
			PageLimit:    getEnvAsInt("PDF_PAGE_LIMIT", 10),
			MaxTextChars: getEnvAsInt("LLM_MAX_TEXT_CHARS", 8000),
			CacheEnabled: getEnvAsBool("ENABLE_CACHE", true),
		},
		Auth: AuthConfig{
			Disabled:  getEnvAsBool("AUTH_DISABLED", false),
			SecretKey: getEnv("AUTH_SECRET_KEY", ""),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" && c.LLM.AzureAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY or AZURE_OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.LLM.UseAzure() && (c.LLM.AzureBaseURL == "" || c.LLM.AzureDeployment == "") {
		return NewAppError("CONFIG_ERROR", "AZURE_OPENAI_BASE_URL and AZURE_OPENAI_DEPLOYMENT_NAME are required for Azure", ErrInvalidInput)
	}
	if c.Vault.Enabled && (c.Vault.URL == "" || c.Vault.Username == "" || c.Vault.Password == "") {
		return NewAppError("CONFIG_ERROR", "VAULT_URL, VAULT_USERNAME and VAULT_PASSWORD are required when VAULT_ENABLED", ErrInvalidInput)
	}
	if !c.Auth.Disabled && c.Auth.SecretKey == "" {
		return NewAppError("CONFIG_ERROR", "AUTH_SECRET_KEY is required unless AUTH_DISABLED", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
