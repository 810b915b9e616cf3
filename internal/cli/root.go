/**
 * @description
 * Root command for the be CLI. Subcommands share the --api-url flag, bound
 * through viper so it can also come from the environment.
 */

package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "be",
	Short: "Bitcoin Efectivo CLI - Interact with the Bitcoin Efectivo network",
	Long: `Bitcoin Efectivo CLI is a command-line tool for interacting with the Bitcoin Efectivo network.
It provides secure, token-based authentication and rate-limited access to network resources.`,
	Version: version,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("api-url", "https://api.bitcoinefectivo.com", "API base URL")
	_ = viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindEnv("api-url", "BE_API_URL")
}
