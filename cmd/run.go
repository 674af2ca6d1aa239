package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KNICEX/strategy-agent/internal/repo"
	"github.com/KNICEX/strategy-agent/internal/service/analytics"
	"github.com/KNICEX/strategy-agent/internal/service/engine"
	"github.com/KNICEX/strategy-agent/internal/service/journal"
	"github.com/KNICEX/strategy-agent/internal/service/notification"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/KNICEX/strategy-agent/ioc"
	"github.com/KNICEX/strategy-agent/pkg/idx"
	"github.com/adshao/go-binance/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	ruleFile string
	ruleId   string
	repeat   bool
	timeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [strategy text...]",
	Short: "Interpret a strategy and watch the market until it completes",
	Long: `run interprets the given strategy text (or loads a rule with --rule / --id),
then watches the market and trades until every symbol has entered and exited,
the data source fails, or the command is interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&ruleFile, "rule", "r", "", "load a rule from a json file instead of interpreting text")
	runCmd.Flags().StringVar(&ruleId, "id", "", "rerun a saved rule by id")
	runCmd.Flags().BoolVar(&repeat, "repeat", false, "re-arm the entry condition after each exit")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "stop watching after this duration, 0 means no limit")
	runCmd.Flags().String("market", "simulated", "market data: auto | live | simulated")
	bindFlag("market.mode", runCmd.Flags(), "market")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	db := ioc.InitDB()
	journalSvc := journal.NewService(repo.NewStrategyRepo(db), repo.NewDecisionRepo(db), repo.NewTradeRepo(db))

	flags := ruleFlags{id: ruleId, file: ruleFile, repeat: repeat}
	rule, err := prepareRule(ctx, journalSvc, flags, args, func(text string) (strategy.Rule, error) {
		return interpret(ctx, db, text)
	})
	if err != nil {
		return err
	}
	slog.Info("strategy loaded", "id", rule.ID, "rule", rule.String())

	// binance client 只在真正需要时创建
	cli := newLazyBinance()
	newSource, mode := ioc.InitSourceFactory(time.Now(), cli)
	executor := ioc.InitExecutor(cli)
	ledger := ioc.InitLedger()

	recorder := &notification.Recorder{}
	notifier := notification.Multi{notification.NewLogNotifier(slog.Default()), journalSvc, recorder}
	eng := engine.NewWatchEngine(ledger, newSource, executor,
		engine.WithNotifier(notifier),
		engine.WithConfig(ioc.InitWatchConfig()))
	if err = eng.AddStrategy(ctx, rule); err != nil {
		return err
	}

	slog.Info("watching market", "mode", mode, "symbols", rule.Watched())
	runErr := eng.Run(ctx)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}

	lastPrices := make(map[string]decimal.Decimal)
	for _, loop := range eng.Loops() {
		for symbol, price := range loop.LastPrices() {
			lastPrices[symbol] = price
		}
	}
	decisions := lo.FilterMap(recorder.Kinds(notification.KindDecision), func(e notification.Event, _ int) (strategy.TradeDecision, bool) {
		if e.Decision == nil {
			return strategy.TradeDecision{}, false
		}
		return *e.Decision, true
	})
	report := analytics.NewReport(ledger.State(), lastPrices, decisions, time.Now())

	for _, res := range eng.Results() {
		fmt.Fprintf(cmd.OutOrStdout(), "strategy %s: %s after %d ticks, %d decisions\n", res.RuleID, res.Outcome, res.Ticks, res.Decisions)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.String())
	return runErr
}

type ruleFlags struct {
	id     string
	file   string
	repeat bool
}

// prepareRule 取得本次运行的 Rule 并落库. 已保存的 Rule 不会被改写,
// --repeat 作用在已保存的 Rule 上时派生一个新 ID 的副本
func prepareRule(ctx context.Context, journalSvc journal.Service, flags ruleFlags, args []string, interpretFn func(string) (strategy.Rule, error)) (strategy.Rule, error) {
	rule, err := loadRule(ctx, journalSvc, flags, args, interpretFn)
	if err != nil {
		return strategy.Rule{}, err
	}
	stored := flags.id != ""
	if flags.repeat && !rule.Repeat {
		if stored {
			rule = rule.Clone()
			rule.ID = idx.New()
			stored = false
		}
		rule.Repeat = true
	}
	if stored {
		return rule, nil
	}
	if err = journalSvc.SaveRule(ctx, rule); err != nil {
		return strategy.Rule{}, fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	return rule, nil
}

func loadRule(ctx context.Context, journalSvc journal.Service, flags ruleFlags, args []string, interpretFn func(string) (strategy.Rule, error)) (strategy.Rule, error) {
	ruleFile := flags.file
	switch {
	case flags.id != "":
		return journalSvc.LoadRule(ctx, flags.id)
	case ruleFile != "":
		data, err := os.ReadFile(ruleFile)
		if err != nil {
			return strategy.Rule{}, err
		}
		var rule strategy.Rule
		if err = json.Unmarshal(data, &rule); err != nil {
			return strategy.Rule{}, fmt.Errorf("parse rule file %s: %w", ruleFile, err)
		}
		if rule.ID == "" {
			rule.ID = idx.New()
		}
		if err = rule.Validate(); err != nil {
			return strategy.Rule{}, err
		}
		return rule, nil
	case len(args) > 0:
		return interpretFn(strings.Join(args, " "))
	default:
		return strategy.Rule{}, errors.New("strategy text, --rule or --id is required")
	}
}

func newLazyBinance() func() *binance.Client {
	var cli *binance.Client
	return func() *binance.Client {
		if cli == nil {
			cli = ioc.InitBinanceCli()
		}
		return cli
	}
}
