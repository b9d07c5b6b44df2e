package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion        string `yaml:"aws_region"`
	EventBusName     string `yaml:"event_bus_name"`
	RateLimitTable   string `yaml:"rate_limit_table"`
	MetricsNamespace string `yaml:"metrics_namespace"`

	// Lambda configuration
	IsLambda           bool   `yaml:"is_lambda"`
	LambdaFunctionName string `yaml:"-"`

	// Supabase
	SupabaseURL            string `yaml:"supabase_url"`
	SupabaseAnonKey        string `yaml:"-"`
	SupabaseServiceRoleKey string `yaml:"-"`

	// Authentication
	JWTSecret string `yaml:"-"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Language model
	GoogleAPIKey        string        `yaml:"-"`
	GenerationModel     string        `yaml:"generation_model"`
	EmbeddingModel      string        `yaml:"embedding_model"`
	EmbeddingDimensions int           `yaml:"embedding_dimensions"`
	Temperature         float64       `yaml:"temperature"`
	MaxOutputTokens     int           `yaml:"max_output_tokens"`
	GenerationTimeout   time.Duration `yaml:"generation_timeout"`
	BreakerFailures     int           `yaml:"breaker_failures"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout"`
	// Answer with the offline echo generator when no API key is set
	EchoAnswers         bool          `yaml:"echo_answers"`

	// Rate limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Files
	TuningFile  string `yaml:"tuning_file"`
	FixtureFile string `yaml:"fixture_file"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Feature flags
	EnableMetrics      bool     `yaml:"enable_metrics"`
	EnableTracing      bool     `yaml:"enable_tracing"`
	EnableCORS         bool     `yaml:"enable_cors"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		ServerAddress:       ":8080",
		Environment:         "development",
		AWSRegion:           "us-west-2",
		MetricsNamespace:    "LabsOS/AISearch",
		GenerationModel:     "gemini-2.0-flash",
		EmbeddingModel:      "text-embedding-004",
		EmbeddingDimensions: 768,
		Temperature:         0.3,
		MaxOutputTokens:     1024,
		GenerationTimeout:   30 * time.Second,
		BreakerFailures:     5,
		BreakerOpenTimeout:  30 * time.Second,
		RateLimitPerMinute:  20,
		LogLevel:            "info",
		EnableMetrics:       true,
		EnableCORS:          true,
		CORSAllowedOrigins:  []string{"http://localhost:3000"},
	}
}

// LoadConfig loads configuration: defaults, then the YAML file named by
// CONFIG_FILE if any, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.RateLimitTable = getEnv("RATE_LIMIT_TABLE", c.RateLimitTable)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda)
	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", c.LambdaFunctionName)
	if c.LambdaFunctionName != "" {
		c.IsLambda = true
	}

	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseAnonKey = getEnv("SUPABASE_ANON_KEY", c.SupabaseAnonKey)
	c.SupabaseServiceRoleKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseServiceRoleKey)

	c.JWTSecret = getEnv("SUPABASE_JWT_SECRET", getEnv("JWT_SECRET", c.JWTSecret))
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.GoogleAPIKey = getEnv("GOOGLE_API_KEY", getEnv("GEMINI_API_KEY", c.GoogleAPIKey))
	c.GenerationModel = getEnv("GENERATION_MODEL", c.GenerationModel)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDimensions = getEnvInt("EMBEDDING_DIMENSIONS", c.EmbeddingDimensions)
	c.Temperature = getEnvFloat("GENERATION_TEMPERATURE", c.Temperature)
	c.MaxOutputTokens = getEnvInt("GENERATION_MAX_OUTPUT_TOKENS", c.MaxOutputTokens)
	c.GenerationTimeout = getEnvDuration("GENERATION_TIMEOUT", c.GenerationTimeout)
	c.BreakerFailures = getEnvInt("BREAKER_FAILURES", c.BreakerFailures)
	c.BreakerOpenTimeout = getEnvDuration("BREAKER_OPEN_TIMEOUT", c.BreakerOpenTimeout)
	c.EchoAnswers = getEnvBool("ECHO_ANSWERS", c.EchoAnswers)

	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	c.TuningFile = getEnv("TUNING_FILE", c.TuningFile)
	c.FixtureFile = getEnv("FIXTURE_FILE", c.FixtureFile)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORSAllowedOrigins = splitList(origins)
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	var errs []error

	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("GENERATION_TEMPERATURE must be in [0, 2]"))
	}
	if c.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("GENERATION_MAX_OUTPUT_TOKENS must be positive"))
	}
	if c.BreakerFailures <= 0 {
		errs = append(errs, fmt.Errorf("BREAKER_FAILURES must be positive"))
	}

	if c.IsProduction() {
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" || c.SupabaseServiceRoleKey == "" {
			errs = append(errs, fmt.Errorf("SUPABASE_URL, SUPABASE_ANON_KEY and SUPABASE_SERVICE_ROLE_KEY are required in production"))
		}
		if c.FixtureFile != "" {
			errs = append(errs, fmt.Errorf("FIXTURE_FILE cannot be used in production"))
		}
	}

	return errors.Join(errs...)
}

// UseSupabase reports whether the Supabase data source is configured.
func (c *Config) UseSupabase() bool {
	return c.FixtureFile == "" && c.SupabaseURL != ""
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
