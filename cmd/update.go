package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update resources",
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "3",
	},
}

var updateToolCmd = &cobra.Command{
	Use:   "tool <tool-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Update a tool's metadata",
	Long: "Update an existing tool by supplying its complete, modified metadata document.\n" +
		"The new document completely overrides the existing one.\n" +
		"The tool id and owner cannot be changed. Only the owner of the tool or an admin can update it.\n\n" +
		"CAUTION: Formats removed from supported_formats are retracted immediately, " +
		"the tool is no longer returned when resolving them.",
	RunE: runUpdateTool,
}

var updateUserCmd = &cobra.Command{
	Use:   "user <username>",
	Args:  cobra.ExactArgs(1),
	Short: "Update a user (admin only)",
	Long: "Update an existing user.\n" +
		"Currently, this command only supports rotating the access token of the user.",
	RunE: runUpdateUser,
}

var (
	updateToolCmdConfigFilePath string

	updateUserCmdAccessToken string
)

func init() {
	updateToolCmd.Flags().StringVarP(
		&updateToolCmdConfigFilePath,
		"conf",
		"c",
		"",
		"Path to the new tool metadata document (.json, .yaml or .yml)",
	)
	_ = updateToolCmd.MarkFlagRequired("conf")

	updateUserCmd.Flags().StringVar(
		&updateUserCmdAccessToken,
		"access-token",
		"",
		"New access token for the user",
	)
	_ = updateUserCmd.MarkFlagRequired("access-token")

	updateCmd.AddCommand(updateToolCmd)
	updateCmd.AddCommand(updateUserCmd)

	rootCmd.AddCommand(updateCmd)
}

func runUpdateTool(cmd *cobra.Command, args []string) error {
	doc, err := readToolDocument(updateToolCmdConfigFilePath)
	if err != nil {
		return err
	}
	t, err := apiClient.UpdateTool(args[0], doc)
	if err != nil {
		return fmt.Errorf("failed to update tool '%s': %w", args[0], err)
	}

	cmd.Printf("Tool '%s' updated successfully (revision %d)\n", t.ToolID, t.Revision)
	cmd.Printf("Supported formats: %s\n", formatList(t.SupportedFormats))
	return nil
}

func runUpdateUser(cmd *cobra.Command, args []string) error {
	resp, err := apiClient.RotateUserToken(args[0], updateUserCmdAccessToken)
	if err != nil {
		return fmt.Errorf("failed to update user '%s': %w", args[0], err)
	}
	cmd.Printf("Access token of user '%s' rotated successfully\n", resp.Username)
	return nil
}
