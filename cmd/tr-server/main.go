package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"trustreg/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "tr-server",
	Short:         "Trust-gated name registry server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./trustreg.yaml)")
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	v, err := config.New(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Parse(v)
	if err != nil {
		return nil, nil, err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if used := v.ConfigFileUsed(); used != "" {
		logger.Info("using config file", "path", used)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("tr-server", "error", err)
		os.Exit(1)
	}
}
