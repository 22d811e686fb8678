package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/internal/auth"
	"github.com/toolmeta/toolregistry/internal/config"
)

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Print the admin token derived from the server's admin auth key",
	Long: "Derive the admin access token from the admin auth key of a server config,\n" +
		"the same way the server does. This must run where the server config is available.\n" +
		"Pass the printed token to `toolregistry login` on any client machine.",
	Args:              cobra.NoArgs,
	RunE:              runAdminToken,
	PersistentPreRunE: skipAPIClient,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "5",
	},
}

var verifyIndexCmd = &cobra.Command{
	Use:   "verify-index",
	Short: "Check the format index against the tool records (admin only)",
	Long: "Compare every tool's supported formats against the format index and report disagreements.\n" +
		"A 'missing' entry is a format a tool declares but is not resolvable under.\n" +
		"An 'orphaned' entry is an index entry for a tool that no longer declares the format.\n" +
		"The command never changes anything and fails if the index is inconsistent.",
	Args: cobra.NoArgs,
	RunE: runVerifyIndex,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "6",
	},
}

var adminTokenCmdConfigPath string

func init() {
	adminTokenCmd.Flags().StringVar(
		&adminTokenCmdConfigPath,
		"config",
		config.DefaultPath,
		"path to the server config file",
	)

	rootCmd.AddCommand(adminTokenCmd)
	rootCmd.AddCommand(verifyIndexCmd)
}

func runAdminToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(adminTokenCmdConfigPath)
	if err != nil {
		return err
	}
	key := cfg.Service.AdminAuthKey
	if key == "" {
		if key, err = getEnvOrFile(AdminAuthKeyEnvVar); err != nil {
			return err
		}
	}
	if key == "" {
		return fmt.Errorf("no admin auth key is configured, set service.admin_auth_key or %s", AdminAuthKeyEnvVar)
	}
	cmd.Println(auth.GenerateAdminToken(key))
	return nil
}

func runVerifyIndex(cmd *cobra.Command, args []string) error {
	resp, err := apiClient.VerifyIndex()
	if err != nil {
		return fmt.Errorf("failed to verify the format index: %w", err)
	}
	if resp.Consistent {
		cmd.Println("The format index is consistent")
		return nil
	}
	for _, p := range resp.Inconsistencies {
		cmd.Printf("%-9s tool %s under format '%s'\n", p.Problem, p.ToolID, p.Format)
	}
	return fmt.Errorf("the format index has %d inconsistencies", len(resp.Inconsistencies))
}
