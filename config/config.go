package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting read from the environment.
type Config struct {
	Port        string `env:"SERVER_PORT" envDefault:"8080"`
	GinMode     string `env:"GIN_MODE" envDefault:"debug"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	DBHost      string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort      string `env:"DB_PORT" envDefault:"3306"`
	DBDatabase  string `env:"DB_DATABASE" envDefault:"diagnostics"`
	DBUsername  string `env:"DB_USERNAME" envDefault:"root"`
	DBPassword  string `env:"DB_PASSWORD"`
	DebugSQL    bool   `env:"DEBUG_SQL"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecret      string `env:"JWT_SECRET"`
	JWTExpireHours int    `env:"JWT_EXPIRE_HOURS" envDefault:"24"`

	SMTPHost          string `env:"SMTP_HOST"`
	SMTPPort          int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser          string `env:"SMTP_USER"`
	SMTPPass          string `env:"SMTP_PASS"`
	SMTPFrom          string `env:"SMTP_FROM"`
	SMTPSkipTLSVerify bool   `env:"SMTP_SKIP_TLS_VERIFY"`
	// EmailLogoURL is the platform logo for tenants without their own.
	EmailLogoURL string `env:"EMAIL_LOGO_URL"`

	CronSecret    string        `env:"CRON_SECRET"`
	LogsToken     string        `env:"LOGS_TOKEN"`
	FrontendURL   string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	CORSOrigin    string        `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`
	UploadPath    string        `env:"UPLOAD_PATH" envDefault:"./uploads"`
	SignedURLTTL  time.Duration `env:"SIGNED_URL_TTL" envDefault:"1h"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	AMQPURL string `env:"AMQP_URL"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`

	// OnboardingReminderLock names the MySQL advisory lock held during a
	// reminder pass. Empty disables locking.
	OnboardingReminderLock string `env:"ONBOARDING_REMINDER_LOCK" envDefault:"onboarding_reminders"`
}

// Cfg is the configuration loaded by Load.
var Cfg = &Config{}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads .env, then the optional YAML file named by CONFIG_FILE, then
// parses the environment into Cfg. Values already present in the environment
// always win over the YAML file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyYAML(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	Cfg = cfg
	return cfg, nil
}

// applyYAML exports the keys of a flat YAML document as environment
// variables unless they are already set.
func applyYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	values := map[string]any{}
	if err := yaml.NewDecoder(f).Decode(&values); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	for key, value := range values {
		name := strings.ToUpper(strings.TrimSpace(key))
		if name == "" || value == nil {
			continue
		}
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}
