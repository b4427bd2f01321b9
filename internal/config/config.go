package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DatabasePath            string        `mapstructure:"DATABASE_PATH"`
	JWTSecret               string        `mapstructure:"JWT_SECRET"`
	Auth0Domain             string        `mapstructure:"AUTH0_DOMAIN"`
	Auth0ClientID           string        `mapstructure:"AUTH0_CLIENT_ID"`
	Auth0ClientSecret       string        `mapstructure:"AUTH0_CLIENT_SECRET"`
	Auth0RedirectURL        string        `mapstructure:"AUTH0_REDIRECT_URL"`
	FrontendURL             string        `mapstructure:"FRONTEND_URL"`
	StripeSecretKey         string        `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret     string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	AppFeeBasisPoints       int64         `mapstructure:"APP_FEE_BASIS_POINTS"`
	DiscordBotToken         string        `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordFinanceChannelID string        `mapstructure:"DISCORD_FINANCE_CHANNEL_ID"`
	IdempotencyBackend      string        `mapstructure:"IDEMPOTENCY_BACKEND"`
	IdempotencyTTL          time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	RedisAddr               string        `mapstructure:"REDIS_ADDR"`
	BoltPath                string        `mapstructure:"BOLT_PATH"`
	ESNCardAPIURL           string        `mapstructure:"ESNCARD_API_URL"`
	EnableCORS              bool          `mapstructure:"ENABLE_CORS"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
}

func LoadConfig() *Config {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_PATH", "evorto.db")
	viper.SetDefault("AUTH0_REDIRECT_URL", "http://127.0.0.1:8080/auth/callback")
	viper.SetDefault("FRONTEND_URL", "http://127.0.0.1:4200")
	viper.SetDefault("APP_FEE_BASIS_POINTS", 0)
	viper.SetDefault("IDEMPOTENCY_BACKEND", "bolt")
	viper.SetDefault("IDEMPOTENCY_TTL", "24h")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("BOLT_PATH", "idempotency.db")
	viper.SetDefault("ESNCARD_API_URL", "https://esncard.org/services/1.0/card.json")
	viper.SetDefault("CORS_ORIGINS", []string{"http://127.0.0.1:4200"})

	viper.BindEnv("DATABASE_URL")
	viper.BindEnv("JWT_SECRET")
	viper.BindEnv("AUTH0_DOMAIN")
	viper.BindEnv("AUTH0_CLIENT_ID")
	viper.BindEnv("AUTH0_CLIENT_SECRET")
	viper.BindEnv("STRIPE_SECRET_KEY")
	viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_FINANCE_CHANNEL_ID")
	viper.BindEnv("ENABLE_CORS")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if config.JWTSecret == "" {
		log.Fatalf("JWT_SECRET must be set")
	}

	return &config
}
