package ioc

import (
	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	binancesvc "github.com/KNICEX/strategy-agent/internal/service/exchange/binance"
	"github.com/adshao/go-binance/v2"
	"github.com/spf13/viper"
)

type binanceConfig struct {
	ApiKey    string `mapstructure:"api_key"`
	ApiSecret string `mapstructure:"api_secret"`
	Quote     string `mapstructure:"quote"`
	Interval  string `mapstructure:"interval"`
	Testnet   bool   `mapstructure:"testnet"`
}

func loadBinanceConfig() binanceConfig {
	cfg := binanceConfig{Quote: "USDT", Interval: string(exchange.Interval1m)}
	if err := viper.UnmarshalKey("cex.binance", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitBinanceCli() *binance.Client {
	cfg := loadBinanceConfig()
	binance.UseTestnet = cfg.Testnet
	return binance.NewClient(cfg.ApiKey, cfg.ApiSecret)
}

// InitBinanceSource 实盘行情, 每个 loop 一个实例
func InitBinanceSource(cli *binance.Client) *binancesvc.Source {
	cfg := loadBinanceConfig()
	return binancesvc.NewSource(cli,
		binancesvc.WithQuote(cfg.Quote),
		binancesvc.WithInterval(exchange.Interval(cfg.Interval)))
}

func InitBinanceExecutor(cli *binance.Client) *binancesvc.Executor {
	return binancesvc.NewExecutor(cli, loadBinanceConfig().Quote)
}
