// habitctl is a CLI client for the habit service REST API.
package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	tokenFlag string
	rootCmd   = &cobra.Command{
		Use:   "habitctl",
		Short: "CLI client for the habit service REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Habit service base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Bearer token (defaults to HABITCTL_TOKEN)")

	// login subcommand: prints the token to export as HABITCTL_TOKEN
	var email, password string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password required")
			}
			resp, err := newClient().R().
				SetBody(map[string]string{"email": email, "password": password}).
				Post("/api/auth/login")
			return printResponse(resp, err)
		},
	}
	loginCmd.Flags().StringVarP(&email, "email", "e", "", "Account email (required)")
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "Account password (required)")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(loginCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().Get("/api/health")
			return printResponse(resp, err)
		},
	}
	rootCmd.AddCommand(healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *resty.Client {
	c := resty.New().SetBaseURL(apiFlag)
	token := tokenFlag
	if token == "" {
		token = os.Getenv("HABITCTL_TOKEN")
	}
	if token != "" {
		c.SetAuthToken(token)
	}
	return c
}

func printResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	_, _ = fmt.Fprintln(os.Stdout, resp.String())
	return nil
}
