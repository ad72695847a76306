package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kbservice/internal/auth"
	"kbservice/internal/backup"
	"kbservice/internal/config"
	"kbservice/internal/logging"
	"kbservice/internal/storage"
)

var version = "dev"

func main() {
	var (
		cfgPath string
		envFile string
		baseURL string
		apiKey  string
		asJSON  bool
	)

	root := &cobra.Command{
		Use:           "kbservice",
		Short:         "Knowledge-base catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before config")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base API URL for client commands (default $KB_URL or http://localhost:3030)")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("KB_API_KEY"), "API key for client commands")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON output")

	root.AddCommand(newServerCommand(&cfgPath, &envFile))
	root.AddCommand(newMCPCommand(&cfgPath, &envFile, &apiKey))
	root.AddCommand(newMigrateCommand(&cfgPath, &envFile))
	root.AddCommand(newBackupCommand(&cfgPath, &envFile))
	root.AddCommand(newKeygenCommand())
	root.AddCommand(newKBsCommand(&baseURL, &apiKey, &asJSON))
	root.AddCommand(newCategoriesCommand(&baseURL, &apiKey, &asJSON))
	root.AddCommand(newAdminCommand(&baseURL, &apiKey))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newServerCommand(cfgPath, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the kbservice HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(*cfgPath, *envFile)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.hub.Start(ctx)

			if cfg.Database.BackupSchedule != "" {
				if cfg.Database.Driver != config.DriverSQLite {
					logger.Warn("backup schedule ignored, driver has no file to snapshot", "driver", cfg.Database.Driver)
				} else {
					scheduler := backup.NewScheduler(rt.backup, logger)
					if err := scheduler.Register(cfg.Database.BackupSchedule); err != nil {
						return fmt.Errorf("backup schedule: %w", err)
					}
					scheduler.Start()
					defer scheduler.Stop()
				}
			}

			httpServer := &http.Server{
				Addr:         config.Addr(cfg),
				Handler:      rt.handler(),
				ReadTimeout:  config.ReadTimeout(cfg),
				WriteTimeout: config.WriteTimeout(cfg),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("kbservice listening", "addr", httpServer.Addr, "driver", cfg.Database.Driver, "mcp_http", cfg.MCP.HTTP.Enabled)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}

func newMCPCommand(cfgPath, envFile, apiKey *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tool set over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(*cfgPath, *envFile)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			rt, err := openRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.bridge(*apiKey).ServeStdio()
		},
	}
}

func newMigrateCommand(cfgPath, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(*cfgPath, *envFile)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			rt, err := openRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			rt.Close()
			fmt.Printf("schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newBackupCommand(cfgPath, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of the local sqlite catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closeLog, err := setup(*cfgPath, *envFile)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			if cfg.Database.Driver != config.DriverSQLite {
				return storage.ErrBackupUnsupported
			}

			db, err := storage.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			path, err := storage.BackupFile(cmd.Context(), db, cfg.Database.BackupPath)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

func newKeygenCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an API key and the hash to list under auth.key_hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, hash, err := auth.GenerateAPIKey(kind)
			if err != nil {
				return err
			}
			fmt.Printf("API Key (shown once): %s\n", key)
			fmt.Printf("Key Hash: %s\n", hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "live", "Key kind: live|test")
	return cmd
}

// setup loads dotenv, config and the process logger in that order.
func setup(cfgPath, envFile string) (config.Config, *slog.Logger, func() error, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, nil, nil, err
	}
	cfg, err := loadConfigMaybe(cfgPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, closeLog, err := logging.New(cfg)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, closeLog, nil
}

func loadConfigMaybe(path string) (config.Config, error) {
	if path == "" {
		return config.Load("")
	}
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	} else if errors.Is(err, os.ErrNotExist) {
		return config.Load("")
	} else {
		return config.Config{}, err
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
