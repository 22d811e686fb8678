// Package cmd implements the toolregistry command line: the server and a client for its API.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/toolmeta/toolregistry/client"
)

type subCommandGroup string

const (
	subCommandGroupBasic    subCommandGroup = "basic"
	subCommandGroupAdvanced subCommandGroup = "advanced"
)

// DefaultRegistryURL is used when neither --registry nor the client config names a server.
const DefaultRegistryURL = "http://127.0.0.1:8080"

const asciiArt = `
  _              _                 _     _
 | |_ ___   ___ | |_ __ ___  __ _ (_)___| |_ _ __ _   _
 | __/ _ \ / _ \| | '__/ _ \/ _' || / __| __| '__| | | |
 | || (_) | (_) | | | |  __/ (_| || \__ \ |_| |  | |_| |
  \__\___/ \___/|_|_|  \___|\__, ||_|___/\__|_|   \__, |
                            |___/                 |___/

`

var (
	registryURL string

	// apiClient talks to the registry server. It is set up before any subcommand runs.
	apiClient *client.Client

	// clientFs holds the client config file. Tests swap it for an in-memory filesystem.
	clientFs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "toolregistry",
	Short: "Register tools and find the right one for a data format",
	Long: "toolregistry keeps metadata about tools and the data formats they accept.\n" +
		"Run `toolregistry start` to start the server, the other commands talk to a running server.",
	SilenceUsage:      true,
	PersistentPreRunE: initAPIClient,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&registryURL,
		"registry",
		"",
		"base URL of the registry server (default "+DefaultRegistryURL+")",
	)
	rootCmd.AddGroup(
		&cobra.Group{ID: string(subCommandGroupBasic), Title: "Basic Commands:"},
		&cobra.Group{ID: string(subCommandGroupAdvanced), Title: "Advanced Commands:"},
	)
}

// Execute runs the CLI until the command returns or the process is interrupted.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	organizeCommands(rootCmd)
	return rootCmd.ExecuteContext(ctx)
}

// initAPIClient builds apiClient from the --registry flag and the saved client config.
// precedence for the server URL: flag > client config > default
func initAPIClient(cmd *cobra.Command, args []string) error {
	cfg, err := readClientConfig(clientFs)
	if err != nil {
		return err
	}
	url := registryURL
	if url == "" {
		url = cfg.RegistryURL
	}
	if url == "" {
		url = DefaultRegistryURL
	}
	apiClient = client.NewClient(url, cfg.AccessToken, nil)
	return nil
}

// skipAPIClient replaces initAPIClient for commands that never talk to a server.
func skipAPIClient(cmd *cobra.Command, args []string) error {
	return nil
}

// organizeCommands assigns every top-level command to the help group named by its "group"
// annotation and re-adds them sorted by their "order" annotation.
func organizeCommands(root *cobra.Command) {
	cmds := slices.Clone(root.Commands())
	slices.SortFunc(cmds, func(a, b *cobra.Command) int {
		if d := commandOrder(a) - commandOrder(b); d != 0 {
			return d
		}
		return strings.Compare(a.Name(), b.Name())
	})
	root.RemoveCommand(cmds...)
	for _, c := range cmds {
		if g := c.Annotations["group"]; g != "" {
			c.GroupID = g
		}
	}
	cobra.EnableCommandSorting = false
	root.AddCommand(cmds...)
}

func commandOrder(c *cobra.Command) int {
	order, err := strconv.Atoi(c.Annotations["order"])
	if err != nil {
		// unordered commands go last
		return 1 << 20
	}
	return order
}
