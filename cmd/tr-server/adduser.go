package main

import (
	"errors"

	"github.com/spf13/cobra"

	"trustreg/internal/client"
	"trustreg/internal/registry"
	"trustreg/internal/shared"
)

var adduserURL string

var adduserCmd = &cobra.Command{
	Use:   "adduser USER...",
	Short: "Provision users on a running server and print their private keys",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.ServiceKey == "" {
			return errors.New("service_key is not configured")
		}

		url := adduserURL
		if url == "" {
			url = "http://" + cfg.Addr()
		}
		admin, err := client.NewAdmin(&shared.ClientConfig{ServerURL: url, TimeoutSeconds: 20}, cfg.ServiceKey)
		if err != nil {
			return err
		}

		p := &registry.Provisioner{Store: admin, Out: cmd.OutOrStdout()}
		for _, u := range args {
			if _, err := p.AddUser(u); err != nil {
				return err
			}
			logger.Info("user provisioned", "user", u, "server", url)
		}
		return nil
	},
}

func init() {
	adduserCmd.Flags().StringVar(&adduserURL, "server", "", "server url (default is http://host:port from config)")
	rootCmd.AddCommand(adduserCmd)
}
