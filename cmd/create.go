package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/pkg/types"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create entities in the registry",
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "2",
	},
}

var createUserCmd = &cobra.Command{
	Use:   "user [username]",
	Args:  cobra.ExactArgs(1),
	Short: "Create a new user (admin only)",
	Long: "Create a new user account.\n" +
		"A user can register tools and update or remove the tools they own.\n" +
		"An admin can manage every tool and every user.\n" +
		"This returns an access token which the user should pass to `toolregistry login`.\n" +
		"You can also send a custom access token by using the --access-token flag.",
	RunE: runCreateUser,
}

var (
	createUserCmdAccessToken string
	createUserCmdRole        string
)

func init() {
	createUserCmd.Flags().StringVar(
		&createUserCmdAccessToken,
		"access-token",
		"",
		"Custom access token for the user. If not provided, a random token will be generated.",
	)
	createUserCmd.Flags().StringVar(
		&createUserCmdRole,
		"role",
		string(types.UserRoleUser),
		fmt.Sprintf("Role of the user ('%s' | '%s')", types.UserRoleUser, types.UserRoleAdmin),
	)

	createCmd.AddCommand(createUserCmd)

	rootCmd.AddCommand(createCmd)
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	u := &types.CreateOrUpdateUserRequest{
		Username:    args[0],
		Role:        createUserCmdRole,
		AccessToken: createUserCmdAccessToken,
	}
	resp, err := apiClient.CreateUser(u)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("server returned an empty access token, this was unexpected")
	}

	cmd.Printf("User '%s' created successfully with role %s\n", resp.Username, resp.Role)
	cmd.Println("The user should now run the following command to log into the registry:")
	cmd.Println()
	cmd.Printf("    toolregistry login %s\n", resp.AccessToken)
	cmd.Println()

	return nil
}
