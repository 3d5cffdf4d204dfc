// Package config loads and validates the engine's TOML configuration file.
// Parsing itself is treated as a thin external collaborator (spec §1,
// non-goal): this package only maps file sections onto Go structs and
// validates them, it holds no business logic.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// DatabaseConfig holds paths to the engine's local database files.
type DatabaseConfig struct {
	FiveMinuteBarsPath string `toml:"five_minute_bars_path" validate:"required"`
	OneMinuteBarsPath  string `toml:"one_minute_bars_path" validate:"required"`
	DailyBarsPath      string `toml:"daily_bars_path" validate:"required"`
	TradingStorePath   string `toml:"trading_store_path" validate:"required"`
}

// OnnxModelConfig points at the external scorer and its companion files.
type OnnxModelConfig struct {
	ModelPath         string `toml:"model_path" validate:"required"`
	FeatureListPath   string `toml:"feature_list_path" validate:"required"`
	InclusionListPath string `toml:"inclusion_list_path" validate:"required"`
}

// APIProfile is one app_key/app_secret/base_url/account_number tuple.
type APIProfile struct {
	AppKey        string `toml:"app_key" validate:"required"`
	AppSecret     string `toml:"app_secret" validate:"required"`
	BaseURL       string `toml:"base_url" validate:"required,url"`
	AccountNumber string `toml:"account_number"`
}

// KoreaInvestmentAPIConfig holds the three brokerage credential profiles.
// Info is used for quotes regardless of the active mode.
type KoreaInvestmentAPIConfig struct {
	Real  APIProfile `toml:"real"`
	Paper APIProfile `toml:"paper"`
	Info  APIProfile `toml:"info" validate:"required"`
}

// TradingConfig holds mode selection and sizing defaults.
type TradingConfig struct {
	DefaultMode     string  `toml:"default_mode" validate:"required,oneof=real paper backtest"`
	InitialCapital  float64 `toml:"initial_capital" validate:"required,gt=0"`
	MaxPositionSize float64 `toml:"max_position_size"`
}

// BacktestConfig holds SimBroker's fee and slippage model.
type BacktestConfig struct {
	BuyFeeRate       float64 `toml:"buy_fee_rate" validate:"gte=0,lte=0.1"`
	SellFeeRate      float64 `toml:"sell_fee_rate" validate:"gte=0,lte=0.1"`
	BuySlippageRate  float64 `toml:"buy_slippage_rate" validate:"gte=0,lte=0.1"`
	SellSlippageRate float64 `toml:"sell_slippage_rate" validate:"gte=0,lte=0.1"`
}

// StrategyConfig holds the intraday state machine's thresholds and timing.
type StrategyConfig struct {
	StopLossPct      float64 `toml:"stop_loss_pct" validate:"gt=0,lt=1"`
	TakeProfitPct    float64 `toml:"take_profit_pct" validate:"gt=0,lt=1"`
	EntryTime        string  `toml:"entry_time" validate:"required"`       // HH:MM:SS
	ForceCloseTime   string  `toml:"force_close_time" validate:"required"` // HH:MM:SS
	EntryAssetRatio  float64 `toml:"entry_asset_ratio" validate:"gt=0,lte=1"`
	FixedEntryAmount float64 `toml:"fixed_entry_amount" validate:"gte=0"`
}

// TimeManagementConfig holds calendar and run-range settings.
type TimeManagementConfig struct {
	TradingDatesFilePath       string `toml:"trading_dates_file_path" validate:"required"`
	ScheduleDatesFilePath      string `toml:"schedule_dates_file_path"`
	AutoSetDatesFromFile       bool   `toml:"auto_set_dates_from_file"`
	StartDate                  string `toml:"start_date"`
	EndDate                    string `toml:"end_date"`
	SpecialStartDatesFilePath  string `toml:"special_start_dates_file_path"`
	SpecialStartTimeOffsetMins int    `toml:"special_start_time_offset_minutes"`
}

// MarketHoursConfig holds the daily event schedule's base times (HH:MM:SS).
// TradingStart doubles as MarketOpen's source and the feature window's
// opening bound; TradingEnd is the feature window's closing bound (spec
// §4.6's default 09:00-09:30), distinct from the later LastUpdateTime.
type MarketHoursConfig struct {
	DataPrepTime   string `toml:"data_prep_time" validate:"required"`
	TradingStart   string `toml:"trading_start_time" validate:"required"`
	TradingEnd     string `toml:"trading_end_time" validate:"required"`
	LastUpdateTime string `toml:"last_update_time" validate:"required"`
	MarketClose    string `toml:"market_close_time" validate:"required"`
}

// TokenManagementConfig holds OAuth token persistence and refresh policy.
type TokenManagementConfig struct {
	TokenFilePath    string `toml:"token_file_path" validate:"required"`
	RefreshSkewHours int    `toml:"refresh_skew_hours" validate:"gte=0"`
}

// LoggingConfig holds the zap level name.
type LoggingConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Config is the root configuration object, one field per spec §6 section.
type Config struct {
	Database           DatabaseConfig           `toml:"database" validate:"required"`
	OnnxModel          OnnxModelConfig          `toml:"onnx_model" validate:"required"`
	KoreaInvestmentAPI KoreaInvestmentAPIConfig `toml:"korea_investment_api" validate:"required"`
	Trading            TradingConfig            `toml:"trading" validate:"required"`
	Backtest           BacktestConfig           `toml:"backtest"`
	Strategy           StrategyConfig           `toml:"strategy" validate:"required"`
	TimeManagement     TimeManagementConfig     `toml:"time_management" validate:"required"`
	MarketHours        MarketHoursConfig        `toml:"market_hours" validate:"required"`
	TokenManagement    TokenManagementConfig    `toml:"token_management" validate:"required"`
	Logging            LoggingConfig            `toml:"logging"`
}

// Load reads and validates the TOML configuration file at path.
func Load(path string) (Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file not found: %s: %w", path, err)
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
