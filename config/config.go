package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Loyalty  LoyaltyConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// TierLevel pairs a tier name with the lifetime-points threshold at which
// an account reaches it. Thresholds must be listed in ascending order.
type TierLevel struct {
	Name      string
	Threshold int64
}

// LoyaltyConfig holds the product constants of the points program. Rates
// and bonuses are env-overridable so a deployment can tune them without a
// rebuild.
type LoyaltyConfig struct {
	AccrualRate         float64 // points earned per currency unit spent
	RedemptionRate      float64 // currency value per point redeemed
	ReferrerBonusPoints int64
	RefereeBonusPoints  int64
	Tiers               []TierLevel
	LockWait            time.Duration // max wait for an account's serialization slot
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8090"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "loyalcrm:loyalcrm@tcp(localhost:3306)/loyalcrm?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: 15 * time.Minute,
			Issuer:       "loyalcrm",
		},
		Loyalty: LoyaltyConfig{
			AccrualRate:         getenvFloat("LOYALTY_ACCRUAL_RATE", 1.0),
			RedemptionRate:      getenvFloat("LOYALTY_REDEMPTION_RATE", 0.01),
			ReferrerBonusPoints: getenvInt64("LOYALTY_REFERRER_BONUS", 100),
			RefereeBonusPoints:  getenvInt64("LOYALTY_REFEREE_BONUS", 50),
			Tiers: []TierLevel{
				{Name: "Bronze", Threshold: 0},
				{Name: "Silver", Threshold: 500},
				{Name: "Gold", Threshold: 2000},
				{Name: "Platinum", Threshold: 10000},
			},
			LockWait: 5 * time.Second,
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
