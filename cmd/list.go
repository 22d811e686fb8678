package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities in the registry",
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "4",
	},
}

var listToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	Long: "List all registered tools ordered by name.\n" +
		"Use --name to only show tools whose name contains a string, --input-format to only show tools\n" +
		"accepting a format and --output-format to only show tools producing an output type.",
	Args:  cobra.NoArgs,
	RunE:  runListTools,
}

var listUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users (admin only)",
	Args:  cobra.NoArgs,
	RunE:  runListUsers,
}

var (
	listToolsCmdNameFilter   string
	listToolsCmdInputFormat  string
	listToolsCmdOutputFormat string
)

func init() {
	listToolsCmd.Flags().StringVar(
		&listToolsCmdNameFilter,
		"name",
		"",
		"only list tools whose name contains this string (case-insensitive)",
	)
	listToolsCmd.Flags().StringVar(&listToolsCmdInputFormat, "input-format", "", "only list tools accepting this format")
	listToolsCmd.Flags().StringVar(&listToolsCmdOutputFormat, "output-format", "", "only list tools producing this output type")

	listCmd.AddCommand(listToolsCmd)
	listCmd.AddCommand(listUsersCmd)

	rootCmd.AddCommand(listCmd)
}

func runListTools(cmd *cobra.Command, args []string) error {
	tools, err := apiClient.ListTools(types.ToolFilter{
		Name:         listToolsCmdNameFilter,
		InputFormat:  listToolsCmdInputFormat,
		OutputFormat: listToolsCmdOutputFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	if len(tools) == 0 {
		if listToolsCmdNameFilter == "" && listToolsCmdInputFormat == "" && listToolsCmdOutputFormat == "" {
			cmd.Println("There are no tools in the registry")
		} else {
			cmd.Println("No tools match the given filters")
		}
		return nil
	}
	printTools(cmd, tools)
	return nil
}

func runListUsers(cmd *cobra.Command, args []string) error {
	users, err := apiClient.ListUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		cmd.Println("There are no users")
		return nil
	}
	for i, u := range users {
		cmd.Printf("%d. %s (%s)\n", i+1, u.Username, u.Role)
	}
	return nil
}
