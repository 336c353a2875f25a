package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "bookflow/cmd/management-service/docs"
	"bookflow/internal/config"
	"bookflow/internal/logger"
	"bookflow/pkg/logging"
)

var (
	configFile string
)

// @title           Bookflow Management Service API
// @version         1.0
// @description     REST API for managing booking workflows, their conditions, audit history and dispatch settings
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

func main() {
	rootCmd := &cobra.Command{
		Use:   "management-service",
		Short: "Management Service for booking workflows",
		Long:  "Management Service provides the REST API for workflows, condition tooling and dispatch settings",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the management service",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog(serviceName)

			path := resolveConfigFile()
			if path == "" {
				return earlyLog.Fail("config file is required, use --config or CONFIG_FILE")
			}

			cfg, err := config.Load(path)
			if err != nil {
				return earlyLog.Fail("load config %s: %w", path, err)
			}

			log, err := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return earlyLog.Fail("init logger: %w", err)
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Management Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				_ = app.Shutdown(context.Background())
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

// resolveConfigFile prefers the --config flag over CONFIG_FILE.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv("CONFIG_FILE")
}
