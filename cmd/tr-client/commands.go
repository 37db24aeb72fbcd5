package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trustreg/internal/client"
	"trustreg/internal/shared"
)

var initCmd = &cobra.Command{
	Use:   "init SERVER_URL USER KEY_PATH",
	Short: "Write a client config file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &shared.ClientConfig{
			ServerURL:      args[0],
			User:           args[1],
			PrivateKeyPath: args[2],
			TimeoutSeconds: 20,
		}
		if err := shared.SaveClientConfig(cfgFile, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgFile)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen KEY_PATH",
	Short: "Generate a key pair, store the private key and print the public key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, err := client.WriteKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), shared.EncodeKey(pub))
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key USER",
	Short: "Print the public key registered for USER",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		key, err := c.GetIDKey(cmd.Context(), args[0])
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("no key registered for %s", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), shared.EncodeKey(key))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print the signed message stored under NAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		msg, err := c.GetName(cmd.Context(), args[0])
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("%s is not set", args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, msg)
	},
}

var setCmd = &cobra.Command{
	Use:   "set NAME CONTENT",
	Short: "Sign CONTENT as the configured user and store it under NAME",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		msg, err := c.SetName(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, msg)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch NAME",
	Short: "Stream committed values of NAME until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return c.Watch(ctx, args[0], func(ev client.Event) error {
			return printJSON(cmd, ev.Message)
		})
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(initCmd, keygenCmd, keyCmd, getCmd, setCmd, watchCmd)
}
