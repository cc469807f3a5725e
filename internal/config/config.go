// Package config defines the stake-engine configuration and provides
// validation helpers. Fields are populated from a TOML file and then
// optionally overridden by STAKE_* environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Staking  StakingConfig  `toml:"staking"`
	Chain    ChainConfig    `toml:"chain"`
	Auth     AuthConfig     `toml:"auth"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds the HTTP listener parameters.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty DSN
// selects the in-memory store.
type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	RunMigration bool   `toml:"run_migration"`
}

// RedisConfig holds the read-through cache parameters. Disabled unless
// an address is configured.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	CacheTTL duration `toml:"cache_ttl"`
}

// StakingConfig selects the ledger's position model and issuance policy
// and seeds the initial owner parameters.
type StakingConfig struct {
	PositionModel  string `toml:"position_model"`  // "atomic" or "fractional"
	IssuancePolicy string `toml:"issuance_policy"` // "additive" or "share"

	MinLockupDays       int64  `toml:"min_lockup_days"`
	MaxLockupDays       int64  `toml:"max_lockup_days"`
	ForceUnstakeFeeRate int64  `toml:"force_unstake_fee_rate"` // basis points
	BurnedYTFeeRate     int64  `toml:"burned_yt_fee_rate"`     // basis points
	MinStake            string `toml:"min_stake"`              // base units, decimal string
}

// ChainConfig holds the on-chain token adapter parameters. When RPCURL is
// empty the engine runs on in-memory tokens.
type ChainConfig struct {
	RPCURL         string `toml:"rpc_url"`
	ChainID        int64  `toml:"chain_id"`
	PrivateKey     string `toml:"private_key"`
	PrincipalToken string `toml:"principal_token"`
	YieldToken     string `toml:"yield_token"`
	WrapperToken   string `toml:"wrapper_token"`
	RevenueAddress string `toml:"revenue_address"`
}

// AuthConfig holds the shared secrets gating the owner and reporter
// endpoints.
type AuthConfig struct {
	AdminKey    string `toml:"admin_key"`
	ReporterKey string `toml:"reporter_key"`
}

// duration wraps time.Duration so TOML values can be written as "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration: in-memory store and tokens,
// fractional positions with additive issuance, listening on :8084.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8084,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			PoolMaxConns: 10,
			RunMigration: true,
		},
		Redis: RedisConfig{
			CacheTTL: duration{5 * time.Second},
		},
		Staking: StakingConfig{
			PositionModel:       "fractional",
			IssuancePolicy:      "additive",
			MinLockupDays:       1,
			MaxLockupDays:       365,
			ForceUnstakeFeeRate: 500,
			BurnedYTFeeRate:     0,
			MinStake:            "1000000000000000",
		},
		LogLevel: "info",
	}
}

// Validate checks cross-field constraints before startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	switch c.Staking.PositionModel {
	case "atomic", "fractional":
	default:
		return fmt.Errorf("config: unknown position model %q", c.Staking.PositionModel)
	}
	switch c.Staking.IssuancePolicy {
	case "additive", "share":
	default:
		return fmt.Errorf("config: unknown issuance policy %q", c.Staking.IssuancePolicy)
	}
	if c.Chain.RPCURL != "" {
		if c.Chain.PrivateKey == "" {
			return fmt.Errorf("config: chain mode requires a private key")
		}
		if c.Chain.PrincipalToken == "" || c.Chain.YieldToken == "" || c.Chain.WrapperToken == "" {
			return fmt.Errorf("config: chain mode requires all three token addresses")
		}
		if c.Chain.RevenueAddress == "" {
			return fmt.Errorf("config: chain mode requires a revenue address")
		}
	}
	return nil
}
