package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/druidalabs/be/pkg/apiclient"
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a new account and generate API token",
	Long: `Sign up for a new Bitcoin Efectivo account and generate an API token.
This token will be stored locally and used for subsequent API calls.

Example:
  be signup`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSignup(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(signupCmd)
}

func runSignup() error {
	creds, err := LoadCredentials()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if creds.Valid() {
		fmt.Println("✓ Already signed up and token is valid")
		fmt.Printf("User ID: %s\n", creds.UserID)
		fmt.Printf("Token expires: %s\n", creds.ExpiresAt.Format("2006-01-02 15:04:05"))
		return nil
	}

	fmt.Print("Enter username: ")
	var username string
	if _, err := fmt.Scanln(&username); err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Print("Enter email: ")
	var email string
	if _, err := fmt.Scanln(&email); err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("please enter a valid email address")
	}

	client := apiclient.NewClient(viper.GetString("api-url"))

	fmt.Println("Creating account...")
	resp, err := client.Signup(username, email)
	if err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}

	creds = &Credentials{
		APIToken:  resp.Token,
		APIURL:    viper.GetString("api-url"),
		UserID:    resp.UserID,
		ExpiresAt: resp.ExpiresAt,
		CreatedAt: time.Now(),
	}
	if err := SaveCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Println("✓ Account created successfully!")
	fmt.Printf("User ID: %s\n", resp.UserID)
	fmt.Printf("Token expires: %s\n", resp.ExpiresAt.Format("2006-01-02 15:04:05"))
	if resp.Message != "" {
		fmt.Printf("%s\n", resp.Message)
	}
	return nil
}
