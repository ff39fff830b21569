package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"YieldVault/internal/fee"
	"YieldVault/internal/fixedpoint"
)

// Config holds all application configuration.
type Config struct {
	Admin        string `yaml:"admin"`
	VaultAccount string `yaml:"vault_account"`
	LogLevel     string `yaml:"log_level"`
	MetricsAddr  string `yaml:"metrics_addr"`
	Telegram     struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`

		// AllowedChatIDs may issue commands besides ChatID.
		AllowedChatIDs []string `yaml:"allowed_chat_ids"`
	} `yaml:"telegram"`
	Assets   []AssetConfig  `yaml:"assets"`
	Bridges  []BridgeConfig `yaml:"bridges"`
	Schedule struct {
		RefreshCron   string `yaml:"refresh_cron"`
		FundQueueCron string `yaml:"fund_queue_cron"`
		RebalanceCron string `yaml:"rebalance_cron"`
		SweepCron     string `yaml:"sweep_cron"`
		ReportCron    string `yaml:"report_cron"`
	} `yaml:"schedule"`
	Allocator struct {
		ToleranceBps uint64 `yaml:"tolerance_bps"`
	} `yaml:"allocator"`
	Gateway struct {
		CallsPerSecond float64 `yaml:"calls_per_second"`
		Burst          int     `yaml:"burst"`
	} `yaml:"gateway"`
	Store struct {
		Driver        string `yaml:"driver"` // file | redis
		Dir           string `yaml:"dir"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"store"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// AssetConfig seeds one asset vault the first time it is enabled.
type AssetConfig struct {
	Symbol              string            `yaml:"symbol"`
	Decimals            int32             `yaml:"decimals"`
	MinDeposit          uint64            `yaml:"min_deposit"`
	FeeRateBps          uint64            `yaml:"fee_rate_bps"`
	FeeRecipient        string            `yaml:"fee_recipient"`
	MaxDailyIncreaseBps uint64            `yaml:"max_daily_increase_bps"`
	Allocations         map[string]uint64 `yaml:"allocations"` // venue id -> bps
	Sweep               struct {
		Destination string `yaml:"destination"`
		Amount      uint64 `yaml:"amount"` // 0 sweeps the whole surplus
	} `yaml:"sweep"`
}

// BridgeConfig authorizes a bridge on one asset at startup.
type BridgeConfig struct {
	Address    string `yaml:"address"`
	Asset      string `yaml:"asset"`
	DailyLimit uint64 `yaml:"daily_limit"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("VAULT_ADMIN"); v != "" {
		cfg.Admin = v
	}
	if v := os.Getenv("VAULT_ACCOUNT"); v != "" {
		cfg.VaultAccount = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.RedisDB = db
		}
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9102"
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 */15 * * * *"
	}
	if cfg.Schedule.FundQueueCron == "" {
		cfg.Schedule.FundQueueCron = "30 */5 * * * *"
	}
	if cfg.Schedule.RebalanceCron == "" {
		cfg.Schedule.RebalanceCron = "0 0 */6 * * *"
	}
	if cfg.Schedule.SweepCron == "" {
		cfg.Schedule.SweepCron = "0 0 2 * * *"
	}
	if cfg.Schedule.ReportCron == "" {
		cfg.Schedule.ReportCron = "0 0 9 * * *"
	}
	if cfg.Allocator.ToleranceBps == 0 {
		cfg.Allocator.ToleranceBps = 100
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "file"
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "data/vaults"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/yieldvault.db"
	}
	for i := range cfg.Assets {
		if cfg.Assets[i].Decimals == 0 {
			cfg.Assets[i].Decimals = 6
		}
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Admin) {
		return fmt.Errorf("admin must be a hex address, got %q", c.Admin)
	}
	if !common.IsHexAddress(c.VaultAccount) {
		return fmt.Errorf("vault_account must be a hex address, got %q", c.VaultAccount)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	switch c.Store.Driver {
	case "file":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("store.driver must be file or redis, got %q", c.Store.Driver)
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("at least one asset is required")
	}

	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("assets: symbol is required")
		}
		if seen[a.Symbol] {
			return fmt.Errorf("assets: %s listed twice", a.Symbol)
		}
		seen[a.Symbol] = true
		if a.FeeRateBps > fee.MaxRateBps {
			return fmt.Errorf("assets.%s: fee_rate_bps %d exceeds %d", a.Symbol, a.FeeRateBps, fee.MaxRateBps)
		}
		if a.FeeRecipient != "" && !common.IsHexAddress(a.FeeRecipient) {
			return fmt.Errorf("assets.%s: fee_recipient is not a hex address", a.Symbol)
		}
		if a.Sweep.Destination != "" && !common.IsHexAddress(a.Sweep.Destination) {
			return fmt.Errorf("assets.%s: sweep.destination is not a hex address", a.Symbol)
		}
		if len(a.Allocations) > 0 {
			var sum uint64
			for _, bps := range a.Allocations {
				sum += bps
			}
			if sum != fixedpoint.BpsDenominator {
				return fmt.Errorf("assets.%s: allocations sum to %d bps, want %d", a.Symbol, sum, fixedpoint.BpsDenominator)
			}
		}
	}
	for _, b := range c.Bridges {
		if !common.IsHexAddress(b.Address) {
			return fmt.Errorf("bridges: %q is not a hex address", b.Address)
		}
		if !seen[b.Asset] {
			return fmt.Errorf("bridges: %s names unknown asset %q", b.Address, b.Asset)
		}
	}
	return nil
}

// Asset returns the configuration of symbol.
func (c *Config) Asset(symbol string) (AssetConfig, bool) {
	for _, a := range c.Assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return AssetConfig{}, false
}
