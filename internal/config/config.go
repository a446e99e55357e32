package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"norma-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// AssistantName is the persona used in user-facing answer templates.
	AssistantName string `envconfig:"ASSISTANT_NAME" default:"Norma"`

	// APIKeys maps bearer tokens to tenant ids ("token:tenant,token:tenant").
	// Identity management itself lives outside this service; this is the
	// deployment-level validator for the HTTP surface.
	APIKeys map[string]string `envconfig:"API_KEYS"`

	// Similarity thresholds are tuned for the configured embedding model's
	// score scale and must be revisited if the model changes.
	ConfidentThreshold  float32 `envconfig:"CONFIDENT_THRESHOLD" default:"0.75"`
	BestEffortThreshold float32 `envconfig:"BEST_EFFORT_THRESHOLD" default:"0.60"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("NORMA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
