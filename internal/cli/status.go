package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/druidalabs/be/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check account status and rate limits",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStatus(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus() error {
	creds, err := LoadCredentials()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if creds.APIToken == "" {
		fmt.Println("❌ Not signed up yet")
		fmt.Println("Run 'be signup' to create an account")
		return nil
	}
	if !creds.Valid() {
		fmt.Println("❌ Local token has expired")
		fmt.Println("Run 'be signup' to refresh your token")
		return nil
	}

	client := apiclient.NewClient(viper.GetString("api-url"))
	client.SetToken(creds.APIToken)

	fmt.Println("Checking status...")
	resp, err := client.Status()
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	fmt.Printf("Status: %s\n", resp.Status)
	fmt.Printf("User ID: %s\n", resp.UserID)

	if resp.TokenValid {
		fmt.Println("✓ Token is valid")
		fmt.Printf("Token expires: %s\n", resp.ExpiresAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("❌ Token is invalid")
		fmt.Println("Run 'be signup' to refresh your token")
	}

	fmt.Printf("\nRate Limit:\n")
	fmt.Printf("  Limit: %d requests\n", resp.RateLimit.Limit)
	fmt.Printf("  Remaining: %d requests\n", resp.RateLimit.Remaining)
	fmt.Printf("  Reset: %s\n", resp.RateLimit.Reset.Format("2006-01-02 15:04:05"))

	fmt.Printf("\nServer Time: %s\n", resp.ServerTime.Format("2006-01-02 15:04:05"))
	return nil
}
