package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
mail:
  resend_api_key: "re_123"
  smtp_host: "smtp.example.org"
  smtp_port: 465
  smtp_secure: true
  smtp_user: "ops"
  smtp_password: "s3cret"
  notify_to: "mairie@example.org"
  from: "noreply@example.org"
redis:
  host: "localhost"
  port: 6379
kafka:
  host: "localhost"
  port: 9092
  request_submitted_topic_name: "request.submitted"
requestbox:
  http_addr: ":8080"
  store_dir: "data"
  tracking_cache_ttl_seconds: 600
  submit_rate_limit_per_minute: 10
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "re_123", cfg.Mail.ResendAPIKey)
	require.Equal(t, 465, cfg.Mail.SMTPPort)
	require.True(t, cfg.Mail.SMTPSecure)
	require.Equal(t, "mairie@example.org", cfg.Mail.NotifyTo)
	require.Equal(t, "request.submitted", cfg.Kafka.RequestSubmittedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.RequestBox.HTTPAddr)
	require.Equal(t, 10, cfg.RequestBox.SubmitRateLimitPerMinute)
}

func TestLoadConfig_EnvOnlyAndOverrides(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "re_env")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_SECURE", "false")

	// Без файла: конфиг целиком из окружения.
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "re_env", cfg.Mail.ResendAPIKey)
	require.Equal(t, 587, cfg.Mail.SMTPPort)
	require.False(t, cfg.Mail.SMTPSecure)
	require.Empty(t, cfg.Mail.SMTPHost)
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
mail:
  resend_api_key: "re_file"
`), 0o600))

	t.Setenv("RESEND_API_KEY", "re_env")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "re_env", cfg.Mail.ResendAPIKey)
}
