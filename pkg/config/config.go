package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUrl                 string
	MirrorDBUrl           string
	RedisURL              string
	RedisPassword         string
	JWTSecret             string
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	MinTransactionAmount  int64
	RoundupStrategy       string
	AllowOverdraft        bool
	Port                  string
	Host                  string
	Env                   string
	AllowedOrigins        []string
}

func LoadConfig() Config {
	godotenv.Load()

	minAmountStr := getEnv("MIN_TRANSACTION_AMOUNT")
	minAmount, err := strconv.ParseInt(minAmountStr, 10, 64)
	if err != nil {
		panic("MIN_TRANSACTION_AMOUNT must be a valid integer (paise)")
	}

	return Config{
		DBUrl: getEnv("DATABASE_URL"),
		// Optional: empty disables mirror replication entirely.
		MirrorDBUrl:           getEnvOr("MIRROR_DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL"),
		RedisPassword:         getEnvOr("REDIS_PASSWORD", ""),
		JWTSecret:             getEnv("JWT_SECRET"),
		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET"),
		MinTransactionAmount:  minAmount,
		RoundupStrategy:       getEnvOr("ROUNDUP_STRATEGY", "ceiling"),
		AllowOverdraft:        getEnvOr("ALLOW_OVERDRAFT", "false") == "true",
		Port:                  getEnv("PORT"),
		Host:                  getEnv("HOST"),
		Env:                   getEnv("ENV"),
		AllowedOrigins:        strings.Split(getEnv("ALLOWED_ORIGINS"), ","),
	}
}

func getEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	panic(fmt.Sprintf("%s is required", key))
}

func getEnvOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
