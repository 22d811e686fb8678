package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <access-token>",
	Short: "Save an access token for later commands",
	Long: "Check the access token against the registry and save it, together with the registry URL,\n" +
		"to ~/" + ClientConfigFileName + ". Every later command sends it as a bearer token.",
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "6",
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who the registry thinks you are",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "7",
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := strings.TrimSpace(args[0])
	me, err := apiClient.Whoami(token)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}

	path, err := writeClientConfig(clientFs, &ClientConfig{
		RegistryURL: apiClient.BaseURL(),
		AccessToken: token,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Logged in as %s\n", me.PrincipalID)
	cmd.Printf("Credentials saved to %s\n", path)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cfg, err := readClientConfig(clientFs)
	if err != nil {
		return err
	}
	if cfg.AccessToken == "" {
		return fmt.Errorf("not logged in, run `toolregistry login <access-token>` first")
	}
	me, err := apiClient.Whoami(cfg.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to get current principal: %w", err)
	}

	cmd.Printf("Principal: %s\n", me.PrincipalID)
	cmd.Printf("Roles:     %s\n", formatList(me.Roles))
	if me.IsAdmin {
		cmd.Println("You can manage every tool and every user.")
	}
	return nil
}
