package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	habitsCmd := &cobra.Command{Use: "habits", Short: "Habit operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().Get("/api/habits")
			return printResponse(resp, err)
		},
	}
	habitsCmd.AddCommand(listCmd)

	var title string
	var target int
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a habit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			resp, err := newClient().R().
				SetBody(map[string]interface{}{"title": title, "target": target}).
				Post("/api/habits")
			return printResponse(resp, err)
		},
	}
	createCmd.Flags().StringVarP(&title, "title", "T", "", "Habit title (required)")
	createCmd.Flags().IntVarP(&target, "target", "n", 0, "Monthly target")
	_ = createCmd.MarkFlagRequired("title")
	habitsCmd.AddCommand(createCmd)

	var date string
	toggleCmd := &cobra.Command{
		Use:   "toggle HABIT_ID",
		Short: "Toggle a completion marker for a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				return fmt.Errorf("--date required (YYYY-MM-DD)")
			}
			resp, err := newClient().R().
				SetBody(map[string]string{"date": date}).
				Patch(fmt.Sprintf("/api/habits/%s/toggle", args[0]))
			return printResponse(resp, err)
		},
	}
	toggleCmd.Flags().StringVarP(&date, "date", "d", "", "Calendar date YYYY-MM-DD (required)")
	_ = toggleCmd.MarkFlagRequired("date")
	habitsCmd.AddCommand(toggleCmd)

	var restore bool
	archiveCmd := &cobra.Command{
		Use:   "archive HABIT_ID",
		Short: "Archive or restore a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				SetBody(map[string]bool{"archived": !restore}).
				Patch(fmt.Sprintf("/api/habits/%s/archive", args[0]))
			return printResponse(resp, err)
		},
	}
	archiveCmd.Flags().BoolVar(&restore, "restore", false, "Restore instead of archive")
	habitsCmd.AddCommand(archiveCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete HABIT_ID",
		Short: "Delete a habit permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				Delete(fmt.Sprintf("/api/habits/%s", args[0]))
			return printResponse(resp, err)
		},
	}
	habitsCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(habitsCmd)
}
