package binance

import (
	"context"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/spf13/viper"
)

// initClient 读取本地配置; 没有配置时跳过需要联网的测试
func initClient(t *testing.T) *binance.Client {
	viper.AddConfigPath("../../../../config")
	viper.SetConfigName("config.dev")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		t.Skipf("no local config: %v", err)
	}

	type Config struct {
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
	}
	var cfg Config
	if err := viper.UnmarshalKey("cex.binance", &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.ApiKey == "" {
		t.Skip("cex.binance.api_key not set")
	}
	return binance.NewClient(cfg.ApiKey, cfg.ApiSecret)
}

func TestSource_Live(t *testing.T) {
	src := NewSource(initClient(t))
	o, err := src.Next(context.Background(), "BTC")
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("%+v\n", o)
}
