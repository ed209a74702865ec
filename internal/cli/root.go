// Package cli implements the minifi command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "minifi",
	Short: "Mini.Fi staking and points engine",
	Long: `The Mini.Fi engine powers the staking, rewards, and loyalty-points
features of the Mini.Fi learning app: virtual-coin pools with time-based
yield, lock periods with early-exit penalties, and a points economy with
tiers, streaks, and boosts.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(),
		"Path to the TOML config file")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".minifi", "config.toml")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
