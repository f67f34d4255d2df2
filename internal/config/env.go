package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists every variable that may override the file configuration.
// Unset variables leave the file value untouched.
type envOverrides struct {
	LogLevel        string        `env:"DAILYDIGEST_LOG_LEVEL"`
	CronExpression  string        `env:"DAILYDIGEST_CRON"`
	Timezone        string        `env:"DAILYDIGEST_TIMEZONE"`
	ChatGPTAPIKey   string        `env:"CHATGPT_API_KEY"`
	ZhipuAPIKey     string        `env:"ZHIPUAI_API_KEY"`
	ChatGPTModel    string        `env:"CHATGPT_MODEL"`
	ChatGPTEndpoint string        `env:"CHATGPT_ENDPOINT"`
	MaxAttempts     int           `env:"DAILYDIGEST_MAX_ATTEMPTS"`
	RetryDelay      time.Duration `env:"DAILYDIGEST_RETRY_DELAY"`
	RecipientsFile  string        `env:"DAILYDIGEST_RECIPIENTS"`
	SMTPHost        string        `env:"SMTP_HOST"`
	SMTPPort        int           `env:"SMTP_PORT"`
	SenderEmail     string        `env:"SENDER_EMAIL"`
	SMTPPassword    string        `env:"SMTP_PASSWORD"`
	LegacyPassword  string        `env:"WANGYI_EMAIL_AUTH"`
	TelegramToken   string        `env:"TELEGRAM_BOT_TOKEN"`
	ArtifactsDir    string        `env:"DAILYDIGEST_ARTIFACTS_DIR"`
	S3Bucket        string        `env:"DAILYDIGEST_S3_BUCKET"`
	LedgerDriver    string        `env:"DAILYDIGEST_LEDGER_DRIVER"`
	LedgerDSN       string        `env:"DAILYDIGEST_LEDGER_DSN"`
	HTTPAddr        string        `env:"DAILYDIGEST_HTTP_ADDR"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func loadEnvOverrides() (envOverrides, error) {
	var o envOverrides
	if err := ParseEnv(&o); err != nil {
		return envOverrides{}, err
	}
	return o, nil
}

func (o envOverrides) apply(c *Config) {
	setString(&c.Logging.Level, o.LogLevel)
	setString(&c.Scheduler.CronExpression, o.CronExpression)
	setString(&c.Scheduler.Timezone, o.Timezone)

	setString(&c.ChatGPT.APIKey, o.ZhipuAPIKey)
	setString(&c.ChatGPT.APIKey, o.ChatGPTAPIKey)
	setString(&c.ChatGPT.Model, o.ChatGPTModel)
	setString(&c.ChatGPT.Endpoint, o.ChatGPTEndpoint)

	if o.MaxAttempts != 0 {
		c.Pipeline.MaxAttempts = o.MaxAttempts
	}
	if o.RetryDelay != 0 {
		c.Pipeline.RetryDelay = o.RetryDelay
	}

	setString(&c.Delivery.RecipientsFile, o.RecipientsFile)
	setString(&c.Email.SMTPHost, o.SMTPHost)
	if o.SMTPPort != 0 {
		c.Email.SMTPPort = o.SMTPPort
	}
	setString(&c.Email.Sender, o.SenderEmail)
	setString(&c.Email.Password, o.LegacyPassword)
	setString(&c.Email.Password, o.SMTPPassword)
	setString(&c.Notifications.Telegram.BotToken, o.TelegramToken)

	setString(&c.Storage.Artifacts.Dir, o.ArtifactsDir)
	if o.S3Bucket != "" {
		c.Storage.Artifacts.Backend = "s3"
		c.Storage.Artifacts.Bucket = o.S3Bucket
	}
	if o.LedgerDriver == "none" {
		c.Storage.Ledger.Driver = ""
	} else {
		setString(&c.Storage.Ledger.Driver, o.LedgerDriver)
	}
	setString(&c.Storage.Ledger.DSN, o.LedgerDSN)
	setString(&c.HTTP.Addr, o.HTTPAddr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
