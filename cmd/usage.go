package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage <tool-id>",
	Short: "Show a tool's metadata and how to invoke it",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetToolUsage,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "5",
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runGetToolUsage(cmd *cobra.Command, args []string) error {
	t, err := apiClient.GetTool(args[0])
	if err != nil {
		return fmt.Errorf("failed to get tool '%s': %w", args[0], err)
	}

	cmd.Printf("%s@%s\n", t.Name, t.Version)
	if t.Description != "" {
		cmd.Println(t.Description)
	}
	cmd.Println()
	cmd.Printf("ID:        %s\n", t.ToolID)
	cmd.Printf("Owner:     %s\n", t.OwnerID)
	if t.Location != "" {
		cmd.Printf("Location:  %s\n", t.Location)
	}
	cmd.Printf("Formats:   %s\n", formatList(t.SupportedFormats))
	cmd.Printf("Revision:  %d\n", t.Revision)
	cmd.Printf("Updated:   %s\n", t.UpdatedAt.Format(time.RFC3339))

	cmd.Println()
	cmd.Println("Invocation Contract:")
	var out bytes.Buffer
	if err := json.Indent(&out, t.InvocationContract, "", "  "); err != nil {
		// Simply print the raw contract if it can't be indented
		cmd.Println(string(t.InvocationContract))
		return nil
	}
	cmd.Println(out.String())
	return nil
}
