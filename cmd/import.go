package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/internal/catalog"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Register every tool document in a directory",
	Long: "Register each .json, .yaml and .yml tool document found directly inside a directory, in file name order.\n" +
		"Documents are registered one by one. A failing document is reported and does not stop the others.\n" +
		"The command fails if any document could not be registered.",
	Args: cobra.ExactArgs(1),
	RunE: runImportTools,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "1",
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImportTools(cmd *cobra.Command, args []string) error {
	entries, err := catalog.NewLoader(clientFs).LoadDir(args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Printf("No tool documents found in %s\n", args[0])
		return nil
	}

	failed := 0
	for _, e := range entries {
		t, err := apiClient.RegisterTool(e.Document)
		if err != nil {
			failed++
			cmd.Printf("[FAIL] %s: %v\n", e.Path, err)
			continue
		}
		cmd.Printf("[OK]   %s: %s@%s registered as %s\n", e.Path, t.Name, t.Version, t.ToolID)
	}

	cmd.Println()
	cmd.Printf("%d of %d tools registered\n", len(entries)-failed, len(entries))
	if failed > 0 {
		return fmt.Errorf("%d tool documents could not be registered", failed)
	}
	return nil
}
