package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Admin-only operations; require a token from an admin account.
func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "User administration"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().Get("/api/admin/users")
			return printResponse(resp, err)
		},
	}
	usersCmd.AddCommand(listCmd)

	var username, email, password, role string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account and email its credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" || password == "" {
				return fmt.Errorf("--username, --email and --password required")
			}
			resp, err := newClient().R().
				SetBody(map[string]string{
					"username": username,
					"email":    email,
					"password": password,
					"role":     role,
				}).
				Post("/api/admin/create-user")
			return printResponse(resp, err)
		},
	}
	createCmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	createCmd.Flags().StringVarP(&email, "email", "e", "", "Email (required)")
	createCmd.Flags().StringVarP(&password, "password", "p", "", "Initial password (required)")
	createCmd.Flags().StringVarP(&role, "role", "r", "", "Role: user or admin (defaults to user)")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(createCmd)

	deactivateCmd := &cobra.Command{
		Use:   "deactivate USER_ID",
		Short: "Deactivate an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				SetBody(map[string]bool{"isActive": false}).
				Put(fmt.Sprintf("/api/admin/users/%s", args[0]))
			return printResponse(resp, err)
		},
	}
	usersCmd.AddCommand(deactivateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete USER_ID",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				Delete(fmt.Sprintf("/api/admin/users/%s", args[0]))
			return printResponse(resp, err)
		},
	}
	usersCmd.AddCommand(deleteCmd)

	intelligenceCmd := &cobra.Command{
		Use:   "intelligence USER_ID",
		Short: "Show the behavioral intelligence snapshot for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				Get(fmt.Sprintf("/api/admin/user-intelligence/%s", args[0]))
			return printResponse(resp, err)
		},
	}
	usersCmd.AddCommand(intelligenceCmd)

	rootCmd.AddCommand(usersCmd)
}
