package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/KNICEX/strategy-agent/internal/repo"
	"github.com/KNICEX/strategy-agent/internal/service/knowledge"
	"github.com/KNICEX/strategy-agent/ioc"
	"github.com/spf13/cobra"
)

var (
	knowledgeTitle string
	knowledgeFile  string
	knowledgeTopK  int
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the strategy knowledge base used during interpretation",
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add [content...]",
	Short: "Add a knowledge entry from text or --file",
	RunE:  runKnowledgeAdd,
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Show the entries retrieved for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKnowledgeSearch,
}

func init() {
	knowledgeAddCmd.Flags().StringVarP(&knowledgeTitle, "title", "t", "", "entry title")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeFile, "file", "f", "", "read content from file")
	knowledgeSearchCmd.Flags().IntVarP(&knowledgeTopK, "top", "k", 3, "number of entries")
	knowledgeCmd.AddCommand(knowledgeAddCmd, knowledgeSearchCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	content := strings.Join(args, " ")
	if knowledgeFile != "" {
		data, err := os.ReadFile(knowledgeFile)
		if err != nil {
			return err
		}
		content = string(data)
	}
	svc := knowledge.NewService(repo.NewKnowledgeRepo(ioc.InitDB()))
	id, err := svc.Add(cmd.Context(), knowledgeTitle, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "knowledge %d added\n", id)
	return nil
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	svc := knowledge.NewService(repo.NewKnowledgeRepo(ioc.InitDB()))
	entries, err := svc.Retrieve(cmd.Context(), strings.Join(args, " "), knowledgeTopK)
	if err != nil {
		return err
	}
	for i, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, e)
	}
	return nil
}
