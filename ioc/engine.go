package ioc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/engine"
	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/exchange/backtest"
	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/portfolio"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/KNICEX/strategy-agent/pkg/decimalx"
	"github.com/adshao/go-binance/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func InitWatchConfig() engine.Config {
	type Config struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
		MaxRetries   int           `mapstructure:"max_retries"`
		RetryMin     time.Duration `mapstructure:"retry_min"`
		RetryMax     time.Duration `mapstructure:"retry_max"`
		CallTimeout  time.Duration `mapstructure:"call_timeout"`
	}
	def := engine.DefaultConfig()
	cfg := Config{
		PollInterval: def.PollInterval,
		MaxRetries:   def.MaxRetries,
		RetryMin:     def.RetryMin,
		RetryMax:     def.RetryMax,
		CallTimeout:  def.CallTimeout,
	}
	if err := viper.UnmarshalKey("watch", &cfg); err != nil {
		panic(err)
	}
	return engine.Config(cfg)
}

func InitLedger() *portfolio.Ledger {
	type Config struct {
		InitialCash string `mapstructure:"initial_cash"`
	}
	cfg := Config{InitialCash: "100000"}
	if err := viper.UnmarshalKey("portfolio", &cfg); err != nil {
		panic(err)
	}
	return portfolio.NewLedger(decimalx.MustFromString(cfg.InitialCash))
}

type marketConfig struct {
	Mode       string        `mapstructure:"mode"`
	Seed       int64         `mapstructure:"seed"`
	Interval   time.Duration `mapstructure:"interval"`
	Limit      int           `mapstructure:"limit"`
	ReplayFile string        `mapstructure:"replay_file"`
}

func loadMarketConfig() marketConfig {
	cfg := marketConfig{Mode: string(market.ModeSimulated), Seed: 42, Interval: time.Minute}
	if err := viper.UnmarshalKey("market", &cfg); err != nil {
		panic(err)
	}
	// UnmarshalKey 不会读取绑定在子键上的命令行参数
	if mode := viper.GetString("market.mode"); mode != "" {
		cfg.Mode = mode
	}
	return cfg
}

// InitSourceFactory 在构造时决定一次数据源类型, 之后不再切换
func InitSourceFactory(now time.Time, cli func() *binance.Client) (engine.SourceFactory, market.Mode) {
	cfg := loadMarketConfig()

	if cfg.ReplayFile != "" {
		f, err := os.Open(cfg.ReplayFile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		series, err := market.ReadCSV(f)
		if err != nil {
			panic(fmt.Errorf("read replay file %s: %w", cfg.ReplayFile, err))
		}
		slog.Info("market source selected", "mode", "replay", "file", cfg.ReplayFile)
		return func(rule strategy.Rule) (market.Source, error) {
			return market.NewReplaySource(series), nil
		}, market.ModeSimulated
	}

	configured := market.Mode(cfg.Mode)
	mode, err := configured.Resolve(now)
	if err != nil {
		panic(err)
	}
	slog.Info("market source selected", "mode", mode, "configured", cfg.Mode)

	simulated := func() market.Source {
		return market.NewSimulatedSource(cfg.Seed,
			market.WithStart(now.Truncate(time.Minute)),
			market.WithInterval(cfg.Interval),
			market.WithLimit(cfg.Limit))
	}
	if mode == market.ModeLive {
		client := cli()
		return func(rule strategy.Rule) (market.Source, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return chooseSource(ctx, rule, configured, InitBinanceSource(client), simulated), nil
		}, mode
	}
	return func(rule strategy.Rule) (market.Source, error) {
		return simulated(), nil
	}, mode
}

// liveSource 可以查询标的是否上架的实盘数据源
type liveSource interface {
	market.Source
	Listed(ctx context.Context, symbols []string) (map[string]bool, error)
}

// chooseSource auto 模式下只有策略引用的标的全部在实盘交易所上架才走实盘, 否则退回模拟行情
func chooseSource(ctx context.Context, rule strategy.Rule, configured market.Mode, live liveSource, simulated func() market.Source) market.Source {
	if configured == market.ModeLive {
		return live
	}
	watched := rule.Watched()
	listed, err := live.Listed(ctx, watched)
	if err != nil {
		slog.Warn("venue lookup failed, using simulated market data", "rule", rule.ID, "error", err)
		return simulated()
	}
	missing := lo.Reject(watched, func(symbol string, _ int) bool {
		return listed[symbol]
	})
	if len(missing) > 0 {
		slog.Warn("symbols not listed on live venue, using simulated market data", "rule", rule.ID, "missing", missing)
		return simulated()
	}
	return live
}

func InitExecutor(cli func() *binance.Client) exchange.Executor {
	type Config struct {
		Mode        string `mapstructure:"mode"`
		SlippageBps string `mapstructure:"slippage_bps"`
		FeeRate     string `mapstructure:"fee_rate"`
	}
	cfg := Config{Mode: "simulated", SlippageBps: "0", FeeRate: "0"}
	if err := viper.UnmarshalKey("executor", &cfg); err != nil {
		panic(err)
	}

	switch cfg.Mode {
	case "live":
		slog.Warn("live executor enabled, orders will be sent to binance")
		return InitBinanceExecutor(cli())
	case "simulated", "":
		return backtest.NewExecutor(
			backtest.WithSlippageBps(parseDecimal("executor.slippage_bps", cfg.SlippageBps)),
			backtest.WithFeeRate(parseDecimal("executor.fee_rate", cfg.FeeRate)))
	default:
		panic(fmt.Errorf("unknown executor mode %q", cfg.Mode))
	}
}

func parseDecimal(key, v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	return d
}
