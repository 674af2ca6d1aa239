package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KNICEX/strategy-agent/internal/repo"
	"github.com/KNICEX/strategy-agent/internal/service/knowledge"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/KNICEX/strategy-agent/ioc"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var interpretCmd = &cobra.Command{
	Use:   "interpret <strategy text>",
	Short: "Translate a strategy description into a rule and print it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInterpret,
}

func init() {
	rootCmd.AddCommand(interpretCmd)
}

func runInterpret(cmd *cobra.Command, args []string) error {
	db := ioc.InitDB()
	rule, err := interpret(cmd.Context(), db, strings.Join(args, " "))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func interpret(ctx context.Context, db *gorm.DB, text string) (strategy.Rule, error) {
	llmSvc := ioc.InitLLMService(ioc.InitGeminiCli())
	retriever := knowledge.NewService(repo.NewKnowledgeRepo(db))
	interpreter := strategy.NewLLMInterpreter(llmSvc, strategy.WithRetriever(retriever))
	return interpreter.Interpret(ctx, text)
}
