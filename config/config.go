package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"solSniperBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// TakeProfitLevelConfig is one configured rung of the take-profit ladder.
type TakeProfitLevelConfig struct {
	TargetMultiple float64 // Entry-price multiple at which the level fires (e.g. 2.0)
	SellPercent    float64 // Fraction of remaining quantity to sell (0..1]
}

// Config holds all application configuration.
type Config struct {
	// Ledger RPC
	RPCEndpoint string
	RPCTimeout  time.Duration

	// Wallet
	WalletPrivateKey string // Base58-encoded key pair, never logged

	// Trading Parameters
	BuyAmountSOL         float64 // Quote budget per entry
	SlippagePercent      float64 // e.g. 5.0 for 5%
	PriorityFeeMicroLam  uint64  // Compute-unit price hint
	ComputeUnitLimit     uint32  // Compute-unit limit hint
	DefaultTokenDecimals uint8   // Used until the mint is inspected

	// Risk Parameters
	StopLossPercent   float64 // Initial stop distance below entry (e.g. 0.30)
	TakeProfitLevels  []TakeProfitLevelConfig
	StopRatchetL2Mult float64 // Stop after TP2 = entry * this
	StopRatchetL3Mult float64 // Stop after TP3+ = entry * this
	MinRemainingQty   float64 // Dust threshold, absolute tokens
	MinRemainingPct   float64 // Dust threshold, fraction of acquired quantity

	// Sell Confirmation / Retry
	ConfirmCheckDelay time.Duration // Delay before the first confirmation check
	MaxSellRetries    int           // Retry ceiling before manual review
	SellRetryDelay    time.Duration // Delay before re-attempting an unconfirmed sell

	// Pool Resolution
	PoolResolveMaxAttempts int
	PoolResolveRetryDelay  time.Duration
	PoolCacheTTL           time.Duration

	// Price Polling
	FastPollInterval     time.Duration
	FallbackPollInterval time.Duration
	PriceCacheTTL        time.Duration
	PriceStaleAfter      time.Duration // Fast-read staleness window before fallback kicks in
	PriceHistoryCap      int

	// Storage
	PositionsFile string
	HistoryDBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Ledger RPC
	cfg.RPCEndpoint = getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	if cfg.RPCEndpoint == "" {
		errs = append(errs, "SOLANA_RPC_URL must be set")
	}
	rpcTimeoutSeconds := getEnvAsInt("RPC_TIMEOUT_SECONDS", 10)
	if rpcTimeoutSeconds <= 0 {
		errs = append(errs, "RPC_TIMEOUT_SECONDS must be positive")
	}
	cfg.RPCTimeout = time.Duration(rpcTimeoutSeconds) * time.Second

	// Wallet
	cfg.WalletPrivateKey = getEnv("WALLET_PRIVATE_KEY", "")
	if cfg.WalletPrivateKey == "" {
		errs = append(errs, "WALLET_PRIVATE_KEY must be set")
	}

	// Trading Parameters
	cfg.BuyAmountSOL, err = getEnvAsFloatRequired("BUY_AMOUNT_SOL", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BUY_AMOUNT_SOL: %v", err))
	} else if cfg.BuyAmountSOL <= 0 {
		errs = append(errs, "BUY_AMOUNT_SOL must be positive")
	}

	cfg.SlippagePercent, err = getEnvAsFloatRequired("SLIPPAGE_PERCENT", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SLIPPAGE_PERCENT: %v", err))
	} else if cfg.SlippagePercent <= 0 || cfg.SlippagePercent >= 100 {
		errs = append(errs, "SLIPPAGE_PERCENT must be between 0 and 100 (exclusive)")
	}

	cfg.PriorityFeeMicroLam = uint64(getEnvAsInt("PRIORITY_FEE_MICROLAMPORTS", 100000))
	cfg.ComputeUnitLimit = uint32(getEnvAsInt("COMPUTE_UNIT_LIMIT", 250000))
	cfg.DefaultTokenDecimals = uint8(getEnvAsInt("DEFAULT_TOKEN_DECIMALS", 6))

	// Risk Parameters
	cfg.StopLossPercent, err = getEnvAsFloatRequired("STOP_LOSS_PERCENT", 0.30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PERCENT: %v", err))
	} else if cfg.StopLossPercent <= 0 || cfg.StopLossPercent >= 1.0 {
		errs = append(errs, "STOP_LOSS_PERCENT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.TakeProfitLevels, err = parseTakeProfitLevels(
		getEnv("TAKE_PROFIT_MULTIPLIERS", "2.0,3.0,5.0"),
		getEnv("TAKE_PROFIT_SELL_PERCENTS", "0.5,0.5,1.0"),
	)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid take-profit configuration: %v", err))
	}

	cfg.StopRatchetL2Mult = getEnvAsFloat("STOP_RATCHET_L2_MULT", 1.5)
	cfg.StopRatchetL3Mult = getEnvAsFloat("STOP_RATCHET_L3_MULT", 2.5)
	if cfg.StopRatchetL2Mult < 1.0 || cfg.StopRatchetL3Mult < cfg.StopRatchetL2Mult {
		errs = append(errs, "stop ratchet multiples must satisfy 1.0 <= L2 <= L3")
	}

	cfg.MinRemainingQty = getEnvAsFloat("MIN_REMAINING_QUANTITY", 1.0)
	if cfg.MinRemainingQty < 0 {
		errs = append(errs, "MIN_REMAINING_QUANTITY cannot be negative")
	}
	cfg.MinRemainingPct = getEnvAsFloat("MIN_REMAINING_PERCENT", 0.01)
	if cfg.MinRemainingPct < 0 || cfg.MinRemainingPct >= 1.0 {
		errs = append(errs, "MIN_REMAINING_PERCENT must be in [0.0, 1.0)")
	}

	// Sell Confirmation / Retry
	confirmDelaySeconds := getEnvAsInt("CONFIRM_CHECK_DELAY_SECONDS", 15)
	if confirmDelaySeconds <= 0 {
		errs = append(errs, "CONFIRM_CHECK_DELAY_SECONDS must be positive")
	}
	cfg.ConfirmCheckDelay = time.Duration(confirmDelaySeconds) * time.Second

	cfg.MaxSellRetries, err = getEnvAsIntRequired("MAX_SELL_RETRIES", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_SELL_RETRIES: %v", err))
	} else if cfg.MaxSellRetries <= 0 {
		errs = append(errs, "MAX_SELL_RETRIES must be positive")
	}

	retryDelaySeconds := getEnvAsInt("SELL_RETRY_DELAY_SECONDS", 5)
	if retryDelaySeconds <= 0 {
		errs = append(errs, "SELL_RETRY_DELAY_SECONDS must be positive")
	}
	cfg.SellRetryDelay = time.Duration(retryDelaySeconds) * time.Second

	// Pool Resolution
	cfg.PoolResolveMaxAttempts = getEnvAsInt("POOL_RESOLVE_MAX_ATTEMPTS", 10)
	if cfg.PoolResolveMaxAttempts <= 0 {
		errs = append(errs, "POOL_RESOLVE_MAX_ATTEMPTS must be positive")
	}
	resolveDelayMs := getEnvAsInt("POOL_RESOLVE_RETRY_DELAY_MS", 2000)
	if resolveDelayMs <= 0 {
		errs = append(errs, "POOL_RESOLVE_RETRY_DELAY_MS must be positive")
	}
	cfg.PoolResolveRetryDelay = time.Duration(resolveDelayMs) * time.Millisecond
	cfg.PoolCacheTTL = time.Duration(getEnvAsInt("POOL_CACHE_TTL_SECONDS", 30)) * time.Second

	// Price Polling
	cfg.FastPollInterval = time.Duration(getEnvAsInt("FAST_POLL_INTERVAL_MS", 3000)) * time.Millisecond
	cfg.FallbackPollInterval = time.Duration(getEnvAsInt("FALLBACK_POLL_INTERVAL_MS", 15000)) * time.Millisecond
	cfg.PriceCacheTTL = time.Duration(getEnvAsInt("PRICE_CACHE_TTL_MS", 2000)) * time.Millisecond
	cfg.PriceStaleAfter = time.Duration(getEnvAsInt("PRICE_STALE_AFTER_MS", 20000)) * time.Millisecond
	if cfg.FastPollInterval <= 0 || cfg.FallbackPollInterval <= 0 {
		errs = append(errs, "poll intervals must be positive")
	}
	if cfg.FastPollInterval >= cfg.FallbackPollInterval {
		errs = append(errs, "FAST_POLL_INTERVAL_MS must be less than FALLBACK_POLL_INTERVAL_MS")
	}
	cfg.PriceHistoryCap = getEnvAsInt("PRICE_HISTORY_CAP", 120)
	if cfg.PriceHistoryCap <= 0 {
		errs = append(errs, "PRICE_HISTORY_CAP must be positive")
	}

	// Storage
	cfg.PositionsFile = getEnv("POSITIONS_FILE", "./data/positions.json")
	if cfg.PositionsFile == "" {
		errs = append(errs, "POSITIONS_FILE must be set")
	}
	cfg.HistoryDBPath = getEnv("HISTORY_DB_PATH", "./data/trade_history.db")
	if cfg.HistoryDBPath == "" {
		errs = append(errs, "HISTORY_DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// parseTakeProfitLevels builds the ladder from two comma-separated lists.
// Multiples must be ascending and greater than 1; percents in (0, 1].
func parseTakeProfitLevels(multipliers, percents string) ([]TakeProfitLevelConfig, error) {
	multParts := strings.Split(multipliers, ",")
	pctParts := strings.Split(percents, ",")
	if len(multParts) != len(pctParts) {
		return nil, fmt.Errorf("multiplier count (%d) does not match percent count (%d)", len(multParts), len(pctParts))
	}

	levels := make([]TakeProfitLevelConfig, 0, len(multParts))
	prev := 1.0
	for i := range multParts {
		mult, err := strconv.ParseFloat(strings.TrimSpace(multParts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid multiplier %q: %w", multParts[i], err)
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(pctParts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sell percent %q: %w", pctParts[i], err)
		}
		if mult <= prev {
			return nil, fmt.Errorf("multipliers must be ascending and greater than 1 (level %d: %v)", i+1, mult)
		}
		if pct <= 0 || pct > 1 {
			return nil, fmt.Errorf("sell percent must be in (0, 1] (level %d: %v)", i+1, pct)
		}
		levels = append(levels, TakeProfitLevelConfig{TargetMultiple: mult, SellPercent: pct})
		prev = mult
	}
	return levels, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Unset falls back to the default; only a malformed value is an error.
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
