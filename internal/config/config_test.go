package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

const validConfigTOML = `
[database]
five_minute_bars_path = "data/5m.db"
one_minute_bars_path = "data/1m.db"
daily_bars_path = "data/daily.db"
trading_store_path = "data/trading.db"

[onnx_model]
model_path = "model.onnx"
feature_list_path = "features.txt"
inclusion_list_path = "symbols.txt"

[korea_investment_api.real]
app_key = "k"
app_secret = "s"
base_url = "https://openapi.koreainvestment.com:9443"
account_number = "1"

[korea_investment_api.paper]
app_key = "k"
app_secret = "s"
base_url = "https://openapivts.koreainvestment.com:29443"
account_number = "1"

[korea_investment_api.info]
app_key = "k"
app_secret = "s"
base_url = "https://openapi.koreainvestment.com:9443"
account_number = "1"

[trading]
default_mode = "backtest"
initial_capital = 10000000

[backtest]
buy_fee_rate = 0.00022
sell_fee_rate = 0.00022
buy_slippage_rate = 0.005
sell_slippage_rate = 0.005

[strategy]
stop_loss_pct = 0.015
take_profit_pct = 0.03
entry_time = "09:05:00"
force_close_time = "15:20:00"
entry_asset_ratio = 0.3
fixed_entry_amount = 1000000

[time_management]
trading_dates_file_path = "calendar.txt"

[market_hours]
data_prep_time = "08:30:00"
trading_start_time = "09:00:00"
trading_end_time = "15:30:00"
last_update_time = "15:29:00"
market_close_time = "15:30:00"

[token_management]
token_file_path = "token.json"
refresh_skew_hours = 2

[logging]
level = "info"
`

func (suite *ConfigTestSuite) writeConfig(content string) string {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "config.toml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (suite *ConfigTestSuite) TestLoadValidConfig() {
	path := suite.writeConfig(validConfigTOML)

	cfg, err := Load(path)
	suite.NoError(err)
	suite.Equal("backtest", cfg.Trading.DefaultMode)
	suite.Equal(10000000.0, cfg.Trading.InitialCapital)
	suite.Equal(0.015, cfg.Strategy.StopLossPct)
	suite.Equal(2, cfg.TokenManagement.RefreshSkewHours)
}

func (suite *ConfigTestSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(suite.T().TempDir(), "missing.toml"))
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestLoadInvalidMode() {
	// default_mode "crypto" is not one of real/paper/backtest
	invalid := strings.Replace(validConfigTOML, `default_mode = "backtest"`, `default_mode = "crypto"`, 1)
	path := suite.writeConfig(invalid)

	_, err := Load(path)
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestLoadMalformedTOML() {
	path := suite.writeConfig("this is not [valid toml")
	_, err := Load(path)
	suite.Error(err)
}
