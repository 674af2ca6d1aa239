package ioc

import (
	"log/slog"
	"os"

	"github.com/spf13/viper"
)

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func loadLogConfig() logConfig {
	cfg := logConfig{Level: "info", Format: "text"}
	if err := viper.UnmarshalKey("log", &cfg); err != nil {
		panic(err)
	}
	// --log-level 绑定在 log.level 上, UnmarshalKey 读不到
	if level := viper.GetString("log.level"); level != "" {
		cfg.Level = level
	}
	return cfg
}

// InitLogger 按配置安装默认 slog logger
func InitLogger() *slog.Logger {
	cfg := loadLogConfig()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
