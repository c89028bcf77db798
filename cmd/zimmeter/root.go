package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/api"
	"github.com/Toshin-unyu/Zimmeter/internal/config"
	"github.com/Toshin-unyu/Zimmeter/internal/seed"
	"github.com/Toshin-unyu/Zimmeter/internal/service"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "zimmeter",
		Short:         "Worker time tracking server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())
	return cmd
}

// bootstrap loads config, builds the logger and opens the configured store.
func bootstrap(ctx context.Context) (*config.Config, *internal.ZapLogger, storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building logger: %w", err)
	}
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, fmt.Errorf("opening %s storage: %w", cfg.DBType, err)
	}
	return cfg, logger, store, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, store, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer func() {
				if err := store.Close(); err != nil {
					logger.Errorf("closing storage: %v", err)
				}
			}()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}

			if cfg.Env == "production" {
				gin.SetMode(gin.ReleaseMode)
			}
			app := api.NewApp(logger, store, service.WithLocation(cfg.Location()))
			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           api.NewRouter(app),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Infof("listening on %s (storage=%s, timezone=%s)", cfg.HTTPAddr, cfg.DBType, cfg.Location())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the storage schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, store, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			logger.Infof("%s schema is up to date", cfg.DBType)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision the admin worker and the SYSTEM categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := seed.Load(file)
			if err != nil {
				return err
			}
			_, logger, store, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			res, err := seed.Apply(ctx, store, f, time.Now().UTC().Truncate(time.Second), logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q (id %d): %d categories created, %d updated\n",
				res.Admin.UID, res.Admin.ID, res.CreatedCategories, res.UpdatedCategories)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "categories.yaml", "Seed file (YAML)")
	return cmd
}
