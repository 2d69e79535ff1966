package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ListenAddr string
	PublicURL  string

	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	MarzbanURL      string
	MarzbanUsername string
	MarzbanPassword string
	VpnDataLimit    int64

	ClickServiceID  int64
	ClickMerchantID string
	ClickSecretKey  string
	ClickAllowedIPs []string
	PaymeMerchantID string
	PaymeSecretKey  string

	SMTPHost   string
	SMTPPort   string
	SMTPUser   string
	SMTPPass   string
	SMTPSender string

	TelegramBotToken string
	TelegramOpsChat  int64
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Env:        getEnv("APP_ENV", "development"),
		ListenAddr: getEnv("LISTEN_ADDR", ":3001"),
		PublicURL:  getEnv("PUBLIC_URL", "http://localhost:3001"),

		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "vpnmarket"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:   getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:  getDuration("JWT_REFRESH_TTL", 7*24*time.Hour),

		MarzbanURL:      getEnv("MARZBAN_BASE_URL", ""),
		MarzbanUsername: getEnv("MARZBAN_USERNAME", ""),
		MarzbanPassword: getEnv("MARZBAN_PASSWORD", ""),
		VpnDataLimit:    getInt64("VPN_DATA_LIMIT_BYTES", 0),

		ClickServiceID:  getInt64("CLICK_SERVICE_ID", 0),
		ClickMerchantID: getEnv("CLICK_MERCHANT_ID", ""),
		ClickSecretKey:  getEnv("CLICK_SECRET_KEY", ""),
		ClickAllowedIPs: getList("CLICK_ALLOWED_IPS", []string{
			"185.8.212.184/30",
			"217.29.66.100/30",
		}),
		PaymeMerchantID: getEnv("PAYME_MERCHANT_ID", ""),
		PaymeSecretKey:  getEnv("PAYME_SECRET_KEY", ""),

		SMTPHost:   getEnv("SMTP_HOST", ""),
		SMTPPort:   getEnv("SMTP_PORT", "587"),
		SMTPUser:   getEnv("SMTP_USER", ""),
		SMTPPass:   getEnv("SMTP_PASS", ""),
		SMTPSender: getEnv("SMTP_SENDER", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramOpsChat:  getInt64("TELEGRAM_OPS_CHAT_ID", 0),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
