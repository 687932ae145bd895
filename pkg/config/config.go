package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Search     SearchConfig
	LRS        LRSConfig
	Mail       MailConfig
	Google     GoogleConfig
	Publish    PublishConfig
	Reports    ReportsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
	FrontendURL    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// SearchConfig points at the Typesense cluster. An empty URL disables indexing.
type SearchConfig struct {
	URL    string
	APIKey string
}

type LRSConfig struct {
	Endpoint string
	Username string
	Password string
}

type MailConfig struct {
	SendGridKey string
	FromName    string
	FromEmail   string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type PublishConfig struct {
	TimeoutSeconds int
}

type ReportsConfig struct {
	UsageCron  string
	Recipients []string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (p *PublishConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (s *SearchConfig) Enabled() bool {
	return s.URL != ""
}

func (l *LRSConfig) Enabled() bool {
	return l.Endpoint != ""
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "studio")
	v.SetDefault("DATABASE_PASSWORD", "studio_secret")
	v.SetDefault("DATABASE_NAME", "studio")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 300)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("TYPESENSE_URL", "")
	v.SetDefault("TYPESENSE_API_KEY", "")
	v.SetDefault("LRS_ENDPOINT", "")
	v.SetDefault("LRS_USERNAME", "")
	v.SetDefault("LRS_PASSWORD", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Studio")
	v.SetDefault("MAIL_FROM_EMAIL", "no-reply@studio.local")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "")
	v.SetDefault("PUBLISH_TIMEOUT_SECONDS", 30)
	v.SetDefault("USAGE_REPORT_CRON", "0 6 * * *")
	v.SetDefault("USAGE_REPORT_RECIPIENTS", "")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			FrontendURL:    v.GetString("FRONTEND_URL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Search: SearchConfig{
			URL:    v.GetString("TYPESENSE_URL"),
			APIKey: v.GetString("TYPESENSE_API_KEY"),
		},
		LRS: LRSConfig{
			Endpoint: v.GetString("LRS_ENDPOINT"),
			Username: v.GetString("LRS_USERNAME"),
			Password: v.GetString("LRS_PASSWORD"),
		},
		Mail: MailConfig{
			SendGridKey: v.GetString("SENDGRID_API_KEY"),
			FromName:    v.GetString("MAIL_FROM_NAME"),
			FromEmail:   v.GetString("MAIL_FROM_EMAIL"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		},
		Publish: PublishConfig{
			TimeoutSeconds: v.GetInt("PUBLISH_TIMEOUT_SECONDS"),
		},
		Reports: ReportsConfig{
			UsageCron:  v.GetString("USAGE_REPORT_CRON"),
			Recipients: splitList(v.GetString("USAGE_REPORT_RECIPIENTS")),
		},
	}

	return cfg, nil
}

// splitList parses a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
