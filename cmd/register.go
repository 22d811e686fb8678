package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/internal/catalog"
	"github.com/toolmeta/toolregistry/pkg/types"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a tool with the registry",
	Long: "Register a tool by supplying its metadata document, in JSON or YAML.\n" +
		"The document must contain a name, a semantic version, the supported formats and an invocation contract.\n" +
		"eg:\n\n" +
		"    name: csv-to-parquet\n" +
		"    version: 1.2.0\n" +
		"    supported_formats: [csv, tsv]\n" +
		"    invocation_contract:\n" +
		"      entrypoint: convert\n" +
		"      inputs: [path]\n\n" +
		"You become the owner of the tool. The registry assigns its id, which is printed on success.",
	RunE: runRegisterTool,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "2",
	},
}

var registerCmdConfigFilePath string

func init() {
	registerCmd.Flags().StringVarP(
		&registerCmdConfigFilePath,
		"conf",
		"c",
		"",
		"Path to the tool metadata document (.json, .yaml or .yml)",
	)
	_ = registerCmd.MarkFlagRequired("conf")

	rootCmd.AddCommand(registerCmd)
}

func readToolDocument(filePath string) (types.ToolDocument, error) {
	return catalog.NewLoader(clientFs).LoadFile(filePath)
}

func runRegisterTool(cmd *cobra.Command, args []string) error {
	doc, err := readToolDocument(registerCmdConfigFilePath)
	if err != nil {
		return err
	}
	t, err := apiClient.RegisterTool(doc)
	if err != nil {
		return fmt.Errorf("failed to register tool: %w", err)
	}

	cmd.Printf("Tool '%s' (version %s) registered successfully!\n", t.Name, t.Version)
	cmd.Printf("Tool ID: %s\n", t.ToolID)
	cmd.Printf("Supported formats: %s\n", formatList(t.SupportedFormats))
	return nil
}
