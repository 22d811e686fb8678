package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <format>",
	Short: "Find the tools that can handle a data format",
	Long: "Resolve a format identifier to the tools that declare support for it.\n" +
		"The identifier is normalized the same way the server normalizes supported formats.\n" +
		"The best candidate, the most recently updated tool, is listed first.",
	Args: cobra.ExactArgs(1),
	RunE: runResolveFormat,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "3",
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolveFormat(cmd *cobra.Command, args []string) error {
	resp, err := apiClient.ResolveFormat(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve format '%s': %w", args[0], err)
	}
	if len(resp.Tools) == 0 {
		cmd.Printf("No tools support the format '%s'\n", resp.Format)
		return nil
	}

	cmd.Printf("Tools supporting '%s':\n\n", resp.Format)
	printTools(cmd, resp.Tools)
	return nil
}

// printTools prints a numbered listing, one tool per line.
func printTools(cmd *cobra.Command, tools []*types.Tool) {
	for i, t := range tools {
		cmd.Printf("%d. %s@%s  [%s]\n", i+1, t.Name, t.Version, t.ToolID)
		if t.Description != "" {
			cmd.Printf("   %s\n", t.Description)
		}
	}
}

func formatList(formats []string) string {
	if len(formats) == 0 {
		return "-"
	}
	return strings.Join(formats, ", ")
}
