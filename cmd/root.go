package cmd

import (
	"fmt"

	"github.com/KNICEX/strategy-agent/ioc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Natural-language strategy agent",
	Long: `agent turns a plain-language trading strategy into a structured rule,
watches the market for its entry and exit conditions and trades a paper or live portfolio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
		ioc.InitLogger()
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// --config=./config/xxx.yaml
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.dev.yaml", "specify config file")
	rootCmd.PersistentFlags().String("log-level", "info", "debug | info | warn | error")
	bindFlag("log.level", rootCmd.PersistentFlags(), "log-level")
}

// bindFlag 命令行显式设置时覆盖配置文件
func bindFlag(key string, flags *pflag.FlagSet, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(err)
	}
}
