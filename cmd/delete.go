package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete entities from the registry",
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "4",
	},
}

var deleteToolCmd = &cobra.Command{
	Use:   "tool <tool-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Remove a tool from the registry",
	Long: "Remove a tool and retract it from every format it supported.\n" +
		"Only the owner of the tool or an admin can remove it.",
	RunE: runDeleteTool,
}

var deleteUserCmd = &cobra.Command{
	Use:   "user <username>",
	Args:  cobra.ExactArgs(1),
	Short: "Delete a user (admin only)",
	Long: "Delete a user account. Its access token stops working immediately.\n" +
		"Tools owned by the user are kept. Admin accounts cannot be deleted.",
	RunE: runDeleteUser,
}

func init() {
	deleteCmd.AddCommand(deleteToolCmd)
	deleteCmd.AddCommand(deleteUserCmd)

	rootCmd.AddCommand(deleteCmd)
}

func runDeleteTool(cmd *cobra.Command, args []string) error {
	if err := apiClient.RemoveTool(args[0]); err != nil {
		return fmt.Errorf("failed to remove tool '%s': %w", args[0], err)
	}
	cmd.Printf("Tool '%s' removed successfully\n", args[0])
	return nil
}

func runDeleteUser(cmd *cobra.Command, args []string) error {
	if err := apiClient.DeleteUser(args[0]); err != nil {
		return fmt.Errorf("failed to delete user '%s': %w", args[0], err)
	}
	cmd.Printf("User '%s' deleted successfully\n", args[0])
	return nil
}
