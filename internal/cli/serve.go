package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/g2commons/g2commons/internal/config"
	"github.com/g2commons/g2commons/internal/logging"
	"github.com/g2commons/g2commons/internal/web"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the G2Commons web server",
	Long: `Start the G2Commons web server.

This command starts the HTTP server that handles Google and Wikimedia
sign-in, gallery browsing, the image proxy and Commons uploads.

Example:
  g2commons serve --config config.yaml

The server listens on the address configured in the config file. The
config file is watched for changes; the log level is applied live.`,
	RunE: runServe,
}

var serveFlags struct {
	Host string
	Port int
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.Port = serveFlags.Port
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(
		logging.WithService("g2commons"),
		logging.WithLevel(level),
	)

	server, err := web.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	loader.SetOnChange(func(next *config.Config) {
		logger.SetLevel(logging.ParseLevel(next.Server.LogLevel))
		logger.Info("configuration reloaded", "path", globalFlags.Config)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config watch unavailable", "error", err.Error())
	}
	defer loader.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case sig := <-web.SetupSignalHandler():
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("shutdown complete")
	return nil
}
