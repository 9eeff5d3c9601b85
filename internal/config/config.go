// Package config collects the process configuration from the environment.
// Values come from a .env file when present, then from the process
// environment; CLI flags may override them afterwards.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/wikigraph/internal/util"
	"github.com/OFFIS-RIT/wikigraph/pkg/classify"
	"github.com/OFFIS-RIT/wikigraph/pkg/graph"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"

	"github.com/go-playground/validator"
)

const (
	AdapterNone   = "none"
	AdapterOllama = "ollama"
	AdapterOpenAI = "openai"
)

// DefaultCampaign is the context crawls resolve against.
const DefaultCampaign = 4

type WikiConfig struct {
	BaseURL   string        `validate:"required,url"`
	UserAgent string        `validate:"required"`
	Delay     time.Duration `validate:"min=0"`
	Timeout   time.Duration `validate:"gt=0"`
}

type CrawlConfig struct {
	Seeds           []string `validate:"min=1,dive,required"`
	Budget          int      `validate:"min=1"`
	Campaign        int      `validate:"min=1"`
	AdmitDiscovered bool
	SkipMetadata    bool
}

type OracleConfig struct {
	Adapter       string `validate:"oneof=none ollama openai"`
	Model         string
	URL           string `validate:"omitempty,url"`
	Key           string
	Timeout       time.Duration `validate:"gt=0"`
	MaxRetries    int           `validate:"min=1"`
	MaxConcurrent int64         `validate:"min=1"`
}

// Enabled reports whether an oracle backend is configured.
func (o OracleConfig) Enabled() bool {
	return o.Adapter != "" && o.Adapter != AdapterNone
}

type RabbitConfig struct {
	User     string
	Password string
	Host     string
	Port     string
}

// URL returns the amqp connection url.
func (r RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

type S3Config struct {
	Region         string
	Endpoint       string `validate:"omitempty,url"`
	PublicEndpoint string `validate:"omitempty,url"`
	AccessKey      string
	SecretKey      string
	Bucket         string
}

// Enabled reports whether artifact publishing is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

type Config struct {
	Debug       bool
	Port        string `validate:"required,numeric"`
	DatabaseURL string
	// APIKey guards the mutating HTTP routes. Empty leaves them open.
	APIKey string

	Wiki   WikiConfig
	Crawl  CrawlConfig
	Oracle OracleConfig
	Rabbit RabbitConfig
	S3     S3Config
}

// Load reads the .env file and the environment and validates the result.
func Load() (*Config, error) {
	util.LoadEnv()
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the environment without validating it.
func FromEnv() *Config {
	return &Config{
		Debug:       util.GetEnvBool("DEBUG", false),
		Port:        util.GetEnvString("PORT", "8080"),
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		APIKey:      util.GetEnv("API_KEY"),
		Wiki: WikiConfig{
			BaseURL:   strings.TrimSuffix(util.GetEnvString("WIKI_URL", wiki.DefaultBaseURL), "/"),
			UserAgent: util.GetEnvString("WIKI_USER_AGENT", wiki.DefaultUserAgent),
			Delay:     util.GetEnvDuration("WIKI_DELAY", wiki.DefaultDelay),
			Timeout:   util.GetEnvDuration("WIKI_TIMEOUT", wiki.DefaultTimeout),
		},
		Crawl: CrawlConfig{
			Seeds:           util.GetEnvList("CRAWL_SEEDS", classify.DefaultSeeds),
			Budget:          util.GetEnvInt("CRAWL_BUDGET", graph.DefaultBudget),
			Campaign:        util.GetEnvInt("TARGET_CAMPAIGN", DefaultCampaign),
			AdmitDiscovered: util.GetEnvBool("CRAWL_ADMIT_DISCOVERED", false),
			SkipMetadata:    util.GetEnvBool("CRAWL_SKIP_METADATA", false),
		},
		Oracle: OracleConfig{
			Adapter:       strings.ToLower(util.GetEnvString("AI_ADAPTER", AdapterNone)),
			Model:         util.GetEnv("AI_CHAT_MODEL"),
			URL:           util.GetEnv("AI_CHAT_URL"),
			Key:           util.GetEnv("AI_CHAT_KEY"),
			Timeout:       util.GetEnvDuration("AI_TIMEOUT", 120*time.Second),
			MaxRetries:    util.GetEnvInt("AI_MAX_RETRIES", 2),
			MaxConcurrent: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		},
		Rabbit: RabbitConfig{
			User:     util.GetEnvString("RABBITMQ_USER", "guest"),
			Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
			Host:     util.GetEnvString("RABBITMQ_HOST", "localhost"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
		S3: S3Config{
			Region:         util.GetEnvString("AWS_REGION", "us-east-1"),
			Endpoint:       util.GetEnv("AWS_ENDPOINT"),
			PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
			AccessKey:      util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey:      util.GetEnv("AWS_SECRET_KEY"),
			Bucket:         util.GetEnv("AWS_BUCKET"),
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules the struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Oracle.Enabled() && c.Oracle.Model == "" {
		return errors.New("invalid configuration: AI_CHAT_MODEL is required when AI_ADAPTER is set")
	}
	if c.Oracle.Adapter == AdapterOpenAI && c.Oracle.URL == "" {
		return errors.New("invalid configuration: AI_CHAT_URL is required for the openai adapter")
	}
	return nil
}
