package cmd

import (
	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client and server versions",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "7",
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	cmd.Printf("Client version: %s\n", version.GetVersion())

	// the server being down is not an error for this command
	md, err := apiClient.GetServerMetadata()
	if err != nil {
		cmd.Printf("Server version: unavailable (%v)\n", err)
		return nil
	}
	cmd.Printf("Server version: %s\n", md.Version)
	cmd.Printf("Format normalization: %s\n", md.FormatNormalization)
	return nil
}
