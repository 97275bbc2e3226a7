package config

import (
	"fmt"
	"os"
	"strconv"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Mail       MailConfig       `yaml:"mail"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	RequestBox RequestBoxConfig `yaml:"requestbox"`
}

type MailConfig struct {
	// Transactional email API (Resend-compatible). Empty key = channel absent.
	ResendAPIKey  string `yaml:"resend_api_key"`
	ResendBaseURL string `yaml:"resend_base_url"`

	// SMTP transport. Empty host or user = channel absent.
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPSecure   bool   `yaml:"smtp_secure"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`

	NotifyTo string `yaml:"notify_to"`
	From     string `yaml:"from"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type KafkaConfig struct {
	Host                      string `yaml:"host"`
	Port                      int    `yaml:"port"`
	RequestSubmittedTopicName string `yaml:"request_submitted_topic_name"`
}

type RequestBoxConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// Primary directory for the tracking store file. A volatile fallback is
	// used automatically when this one is not writable.
	StoreDir string `yaml:"store_dir"`

	TrackingCacheTTLSeconds int `yaml:"tracking_cache_ttl_seconds"`

	// Per-IP limit on the public submission endpoint. 0 disables.
	SubmitRateLimitPerMinute int `yaml:"submit_rate_limit_per_minute"`
}

// LoadConfig reads the YAML file when filename is non-empty, then lets
// environment variables override the mail credentials. An empty filename is
// valid: the service can run entirely from the environment, including with no
// mail configuration at all.
func LoadConfig(filename string) (*Config, error) {
	var config Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	applyEnv(&config)
	return &config, nil
}

func applyEnv(c *Config) {
	setString(&c.Mail.ResendAPIKey, "RESEND_API_KEY")
	setString(&c.Mail.ResendBaseURL, "RESEND_BASE_URL")
	setString(&c.Mail.SMTPHost, "SMTP_HOST")
	setInt(&c.Mail.SMTPPort, "SMTP_PORT")
	setBool(&c.Mail.SMTPSecure, "SMTP_SECURE")
	setString(&c.Mail.SMTPUser, "SMTP_USER")
	setString(&c.Mail.SMTPPassword, "SMTP_PASS")
	setString(&c.Mail.NotifyTo, "NOTIFY_EMAIL")
	setString(&c.Mail.From, "MAIL_FROM")
	setString(&c.RequestBox.StoreDir, "STORE_DIR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
