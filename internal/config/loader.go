package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is
// empty), merges it on top of the built-in defaults, applies STAKE_*
// environment variable overrides, and returns the final Config. The
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STAKE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Host, "STAKE_SERVER_HOST")
	setInt(&cfg.Server.Port, "STAKE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "STAKE_SERVER_CORS_ORIGINS")

	setStr(&cfg.Database.DSN, "STAKE_DATABASE_DSN")
	setInt(&cfg.Database.PoolMaxConns, "STAKE_DATABASE_POOL_MAX_CONNS")
	setBool(&cfg.Database.RunMigration, "STAKE_DATABASE_RUN_MIGRATION")

	setStr(&cfg.Redis.Addr, "STAKE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STAKE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STAKE_REDIS_DB")

	setStr(&cfg.Staking.PositionModel, "STAKE_POSITION_MODEL")
	setStr(&cfg.Staking.IssuancePolicy, "STAKE_ISSUANCE_POLICY")
	setInt64(&cfg.Staking.MinLockupDays, "STAKE_MIN_LOCKUP_DAYS")
	setInt64(&cfg.Staking.MaxLockupDays, "STAKE_MAX_LOCKUP_DAYS")
	setInt64(&cfg.Staking.ForceUnstakeFeeRate, "STAKE_FORCE_UNSTAKE_FEE_RATE")
	setInt64(&cfg.Staking.BurnedYTFeeRate, "STAKE_BURNED_YT_FEE_RATE")
	setStr(&cfg.Staking.MinStake, "STAKE_MIN_STAKE")

	setStr(&cfg.Chain.RPCURL, "STAKE_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "STAKE_CHAIN_ID")
	setStr(&cfg.Chain.PrivateKey, "STAKE_CHAIN_PRIVATE_KEY")
	setStr(&cfg.Chain.PrincipalToken, "STAKE_CHAIN_PRINCIPAL_TOKEN")
	setStr(&cfg.Chain.YieldToken, "STAKE_CHAIN_YIELD_TOKEN")
	setStr(&cfg.Chain.WrapperToken, "STAKE_CHAIN_WRAPPER_TOKEN")
	setStr(&cfg.Chain.RevenueAddress, "STAKE_CHAIN_REVENUE_ADDRESS")

	setStr(&cfg.Auth.AdminKey, "STAKE_ADMIN_KEY")
	setStr(&cfg.Auth.ReporterKey, "STAKE_REPORTER_KEY")

	setStr(&cfg.LogLevel, "STAKE_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
