package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trustreg/internal/client"
	"trustreg/internal/shared"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "tr-client",
	Short:         "Read and sign updates against a trustreg server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "trustreg-client.json", "client config file")
}

func newClient() (*client.Client, error) {
	cfg, err := shared.LoadClientConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfgFile, err)
	}
	return client.New(cfg)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "tr-client:", err)
		os.Exit(1)
	}
}
