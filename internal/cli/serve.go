package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/parley/internal/config"
	"github.com/harun/parley/internal/daemon"
	"github.com/harun/parley/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Parley server",
	Long: `Run the Parley server in the foreground. The server accepts WebSocket
connections and serves the bundled web client. Stop it with Ctrl-C.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSizeMB: cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer lg.Close()

	d, err := daemon.New(cfg, loader, lg)
	if err != nil {
		return err
	}
	return d.Run()
}
