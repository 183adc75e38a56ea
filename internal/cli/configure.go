package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/parley/internal/config"
)

var configureForce bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file to edit by hand. Refuses to
overwrite an existing file unless --force is given.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	path := loader.Path()

	if _, err := os.Stat(path); err == nil && !configureForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Configuration saved to: %s\n", path)
	fmt.Println("Set your API key in the environment, then run: parley serve")
	return nil
}
