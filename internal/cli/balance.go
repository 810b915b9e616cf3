package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/druidalabs/be/pkg/apiclient"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the current account balance",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBalance(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance() error {
	creds, err := LoadCredentials()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds.APIToken == "" {
		return fmt.Errorf("not signed up yet. Run 'be signup' to create an account")
	}
	if !creds.Valid() {
		return fmt.Errorf("token has expired. Run 'be signup' to refresh your token")
	}

	client := apiclient.NewClient(viper.GetString("api-url"))
	client.SetToken(creds.APIToken)

	resp, err := client.Balance()
	if err != nil {
		return fmt.Errorf("balance check failed: %w", err)
	}

	fmt.Printf("Balance: %d satoshis\n", resp.Balance)
	fmt.Printf("As of: %s\n", resp.Timestamp.Format("2006-01-02 15:04:05"))
	return nil
}
