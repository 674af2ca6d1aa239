package ioc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTestConfig(t *testing.T, yaml string) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(yaml)))
}

func TestLoadMarketConfig_FlagOverridesFile(t *testing.T) {
	readTestConfig(t, "market:\n  mode: auto\n  seed: 7\n  interval: 5m\n")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("market", "simulated", "")
	require.NoError(t, viper.BindPFlag("market.mode", flags.Lookup("market")))

	cfg := loadMarketConfig()
	assert.Equal(t, "auto", cfg.Mode)

	require.NoError(t, flags.Parse([]string{"--market=simulated"}))
	cfg = loadMarketConfig()
	assert.Equal(t, "simulated", cfg.Mode)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
}

func TestLoadMarketConfig_Defaults(t *testing.T) {
	readTestConfig(t, "log:\n  level: info\n")

	cfg := loadMarketConfig()
	assert.Equal(t, string(market.ModeSimulated), cfg.Mode)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, time.Minute, cfg.Interval)
}

func TestLoadLogConfig_FlagOverridesFile(t *testing.T) {
	readTestConfig(t, "log:\n  level: info\n  format: json\n")

	flags := pflag.NewFlagSet("agent", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, viper.BindPFlag("log.level", flags.Lookup("log-level")))
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	cfg := loadLogConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}

type fakeLiveSource struct {
	market.Source
	listed  map[string]bool
	err     error
	queries [][]string
}

func (f *fakeLiveSource) Listed(ctx context.Context, symbols []string) (map[string]bool, error) {
	f.queries = append(f.queries, symbols)
	return f.listed, f.err
}

func TestChooseSource(t *testing.T) {
	rule := strategy.Rule{
		ID:      "01HRULE",
		Symbols: []string{"BTC"},
		Entry: strategy.ConditionSet{Operator: strategy.And, Conditions: []strategy.Condition{
			{Type: strategy.RelativePerformance, Benchmark: "ETH", Direction: strategy.Above, Period: 3, Percent: decimal.NewFromInt(2)},
		}},
		Exit: strategy.ConditionSet{Operator: strategy.Or, Conditions: []strategy.Condition{
			{Type: strategy.PriceThreshold, Direction: strategy.Above, Price: decimal.NewFromInt(70000)},
		}},
		Quantity: decimal.NewFromInt(1),
	}

	testCases := []struct {
		name        string
		configured  market.Mode
		listed      map[string]bool
		err         error
		wantLive    bool
		wantQueried bool
	}{
		{name: "live is not checked", configured: market.ModeLive, wantLive: true},
		{name: "auto all listed", configured: market.ModeAuto, listed: map[string]bool{"BTC": true, "ETH": true}, wantLive: true, wantQueried: true},
		{name: "auto benchmark missing", configured: market.ModeAuto, listed: map[string]bool{"BTC": true, "ETH": false}, wantQueried: true},
		{name: "auto stock ticker", configured: market.ModeAuto, listed: map[string]bool{}, wantQueried: true},
		{name: "auto lookup failed", configured: market.ModeAuto, err: errors.New("timeout"), wantQueried: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			live := &fakeLiveSource{listed: tc.listed, err: tc.err}
			sim := market.NewSimulatedSource(1)

			got := chooseSource(context.Background(), rule, tc.configured, live, func() market.Source { return sim })
			if tc.wantLive {
				assert.Same(t, live, got)
			} else {
				assert.Same(t, sim, got)
			}
			if tc.wantQueried {
				require.Len(t, live.queries, 1)
				assert.Equal(t, []string{"BTC", "ETH"}, live.queries[0])
			} else {
				assert.Empty(t, live.queries)
			}
		})
	}
}
