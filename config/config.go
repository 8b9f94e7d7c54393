/*
Package config loads deployment settings from the environment.

PURPOSE:
  One place that reads .env / environment variables and produces both the
  server settings and the immutable settlement.Config the calculator wants.
  Nothing else in the repo touches os.Getenv.

VARIABLES:
  PORT           HTTP port                       (default 8080)
  DB_PATH        SQLite database path            (default settlements.db)
  JWT_SECRET     Token signing secret            (default dev value; set in prod)
  JWT_TTL_HOURS  Token lifetime in hours         (default 24)
  LOG_LEVEL      debug|info|warn|error           (read by the logging package)

  SHARES         Member share table, e.g. "Bett:0.775,Felix:0.086,Willy:0.139"
  SALARY_MEMBER  Member receiving the weekly salary (default Felix)
  DAILY_RATE     Salary member's daily rate      (default 1000.00)
  RENT           Monthly rent bill               (default 12000.00)
  MILK_BILL      Monthly milk bill               (default 1500.00)
  DEBT_PERCENT   Income fraction for debt service (default 0.10)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/dukabooks/settlement-engine/settlement"
)

// Config holds all application configuration.
type Config struct {
	Port   int
	DBPath string

	JWTSecret string
	JWTTTL    time.Duration

	Settlement settlement.Config
}

// Load reads .env (if present) and the environment, validates the share
// table, and returns the assembled configuration.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set variables directly.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	ttlHours, err := strconv.Atoi(getEnv("JWT_TTL_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_HOURS: %w", err)
	}

	shares, err := ParseShares(getEnv("SHARES", "Bett:0.775,Felix:0.086,Willy:0.139"))
	if err != nil {
		return nil, err
	}

	dailyRate, err := decimalEnv("DAILY_RATE", "1000.00")
	if err != nil {
		return nil, err
	}
	rent, err := decimalEnv("RENT", "12000.00")
	if err != nil {
		return nil, err
	}
	milk, err := decimalEnv("MILK_BILL", "1500.00")
	if err != nil {
		return nil, err
	}
	debtPercent, err := decimalEnv("DEBT_PERCENT", "0.10")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:      port,
		DBPath:    getEnv("DB_PATH", "settlements.db"),
		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		JWTTTL:    time.Duration(ttlHours) * time.Hour,
		Settlement: settlement.Config{
			Shares:       shares,
			SalaryMember: getEnv("SALARY_MEMBER", "Felix"),
			DailyRate:    dailyRate,
			Rent:         rent,
			Milk:         milk,
			DebtPercent:  debtPercent,
		},
	}

	if err := cfg.Settlement.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseShares parses a "name:ratio,name:ratio" share table.
func ParseShares(raw string) (map[string]decimal.Decimal, error) {
	shares := make(map[string]decimal.Decimal)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, ratio, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid SHARES entry %q (want name:ratio)", entry)
		}
		name = strings.TrimSpace(name)
		d, err := decimal.NewFromString(strings.TrimSpace(ratio))
		if err != nil {
			return nil, fmt.Errorf("invalid share ratio for %s: %w", name, err)
		}
		if _, dup := shares[name]; dup {
			return nil, fmt.Errorf("duplicate member %q in SHARES", name)
		}
		shares[name] = d
	}
	return shares, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func decimalEnv(key, fallback string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
