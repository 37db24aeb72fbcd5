package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trustreg/internal/config"
	"trustreg/internal/registry"
	"trustreg/internal/server"
)

const seedUser = "operator"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func openRegistry(store string) (registry.Registry, func() error, error) {
	switch store {
	case config.StoreSQLite:
		s, err := registry.OpenSQLite()
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return registry.NewServerData(), func() error { return nil }, nil
	}
}

func bootstrap(reg registry.Registry, cfg *config.Config, out io.Writer) error {
	p := &registry.Provisioner{Store: reg, Out: out}
	for _, u := range cfg.Users {
		if _, err := p.AddUser(u); err != nil {
			return err
		}
	}

	if cfg.SeedName != "" {
		seed := registry.UpdateMessage{
			User:        seedUser,
			UTC:         time.Now().UTC(),
			NewContents: cfg.SeedContent,
		}
		if err := reg.UpdateName(cfg.SeedName, seed); err != nil {
			return fmt.Errorf("seeding %s: %w", cfg.SeedName, err)
		}
	}
	return nil
}

func serve(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	reg, closeStore, err := openRegistry(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store, err)
	}
	defer closeStore()

	if err := bootstrap(reg, cfg, out); err != nil {
		return err
	}

	hub := server.NewHub(reg, logger)
	api := &server.API{
		Registry:   reg,
		Hub:        hub,
		ServiceKey: cfg.ServiceKey,
		StaticDir:  cfg.StaticDir,
		Logger:     logger,
	}
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("tr-server listening", "addr", srv.Addr, "store", cfg.Store, "admin", cfg.ServiceKey != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
