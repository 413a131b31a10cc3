// Package config loads engine configuration from a .zecswap.yaml file
// and ZECSWAP_* environment variables, env taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NearIntentsConfig configures the NEAR Intents 1Click provider.
type NearIntentsConfig struct {
	Enabled  bool
	JWTToken string
}

// SideShiftConfig configures the SideShift provider.
type SideShiftConfig struct {
	Enabled           bool
	BaseURL           string
	AffiliateID       string
	RequestsPerSecond float64
}

// StorageConfig selects and configures the session store.
type StorageConfig struct {
	// Backend is "file" or "redis".
	Backend       string
	FilePath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// PrivacyConfig tunes the address allocator and auto-shielding.
type PrivacyConfig struct {
	AccountIndex    uint32
	CounterFilePath string
	MinShieldDelay  time.Duration
	MaxShieldDelay  time.Duration
	DustThreshold   uint64
}

// MonitorConfig tunes the settlement polling loop.
type MonitorConfig struct {
	InitialDelay time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

// ZcashdConfig points at a local zcash-cli for wallet operations. An
// empty CLIPath runs the engine without a wallet.
type ZcashdConfig struct {
	CLIPath        string
	CLIArgs        []string
	ShieldedSource string
}

// Config is the full engine configuration.
type Config struct {
	NearIntents NearIntentsConfig
	SideShift   SideShiftConfig
	Storage     StorageConfig
	Privacy     PrivacyConfig
	Monitor     MonitorConfig
	Zcashd      ZcashdConfig

	// SlippageTolerance is the default when a quote request leaves it
	// unset, as a fraction (0.005 = 0.5%).
	SlippageTolerance float64
	// MinAmountIn rejects swaps too small to survive fees, in smallest
	// units of the source asset. Zero disables the check.
	MinAmountIn uint64
	LogLevel    string
}

// Load reads configuration. The config file is optional; at least one
// provider must end up enabled.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".zecswap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	v.SetDefault("near_intents.enabled", true)
	v.SetDefault("sideshift.enabled", true)
	v.SetDefault("sideshift.base_url", "https://sideshift.ai/api/v2")
	v.SetDefault("sideshift.requests_per_second", 2.0)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("privacy.min_shield_delay", "30s")
	v.SetDefault("privacy.max_shield_delay", "5m")
	v.SetDefault("privacy.dust_threshold", 10000)
	v.SetDefault("monitor.initial_delay", "5s")
	v.SetDefault("monitor.poll_interval", "30s")
	v.SetDefault("monitor.max_polls", 60)
	v.SetDefault("zcashd.shielded_source", "sapling")
	v.SetDefault("slippage_tolerance", 0.005)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("ZECSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		NearIntents: NearIntentsConfig{
			Enabled:  v.GetBool("near_intents.enabled"),
			JWTToken: v.GetString("near_intents.jwt_token"),
		},
		SideShift: SideShiftConfig{
			Enabled:           v.GetBool("sideshift.enabled"),
			BaseURL:           v.GetString("sideshift.base_url"),
			AffiliateID:       v.GetString("sideshift.affiliate_id"),
			RequestsPerSecond: v.GetFloat64("sideshift.requests_per_second"),
		},
		Storage: StorageConfig{
			Backend:       v.GetString("storage.backend"),
			FilePath:      v.GetString("storage.file_path"),
			RedisAddr:     v.GetString("storage.redis_addr"),
			RedisPassword: v.GetString("storage.redis_password"),
			RedisDB:       v.GetInt("storage.redis_db"),
		},
		Privacy: PrivacyConfig{
			AccountIndex:    uint32(v.GetUint("privacy.account_index")),
			CounterFilePath: v.GetString("privacy.counter_file_path"),
			MinShieldDelay:  v.GetDuration("privacy.min_shield_delay"),
			MaxShieldDelay:  v.GetDuration("privacy.max_shield_delay"),
			DustThreshold:   v.GetUint64("privacy.dust_threshold"),
		},
		Monitor: MonitorConfig{
			InitialDelay: v.GetDuration("monitor.initial_delay"),
			PollInterval: v.GetDuration("monitor.poll_interval"),
			MaxPolls:     v.GetInt("monitor.max_polls"),
		},
		Zcashd: ZcashdConfig{
			CLIPath:        v.GetString("zcashd.cli_path"),
			CLIArgs:        v.GetStringSlice("zcashd.cli_args"),
			ShieldedSource: v.GetString("zcashd.shielded_source"),
		},
		SlippageTolerance: v.GetFloat64("slippage_tolerance"),
		MinAmountIn:       v.GetUint64("min_amount_in"),
		LogLevel:          v.GetString("log_level"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.NearIntents.Enabled && c.NearIntents.JWTToken == "" {
		return fmt.Errorf("near-intents is enabled but no JWT token is set; set ZECSWAP_NEAR_INTENTS_JWT_TOKEN or disable the provider")
	}
	if !c.NearIntents.Enabled && !c.SideShift.Enabled {
		return fmt.Errorf("no swap provider is enabled")
	}
	switch c.Storage.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q (want file or redis)", c.Storage.Backend)
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisAddr == "" {
		return fmt.Errorf("storage backend is redis but no redis address is set")
	}
	if c.SlippageTolerance < 0 || c.SlippageTolerance >= 1 {
		return fmt.Errorf("slippage tolerance must be in [0, 1), got %v", c.SlippageTolerance)
	}
	if c.Privacy.MaxShieldDelay < c.Privacy.MinShieldDelay {
		return fmt.Errorf("max shield delay must be at least the min shield delay")
	}
	return nil
}
