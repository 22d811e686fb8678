package cmd

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolmeta/toolregistry/internal/api"
	"github.com/toolmeta/toolregistry/internal/auth"
	"github.com/toolmeta/toolregistry/internal/service/user"
	"github.com/toolmeta/toolregistry/pkg/testhelpers"
)

const cliAdminKey = "cli-test-admin-key"

const csvToolYAML = `
name: csv-to-parquet
version: 1.2.0
description: Converts CSV files to Parquet
supported_formats: [CSV, tsv]
invocation_contract:
  entrypoint: convert
  inputs: [path]
`

const jsonToolJSON = `{
  "name": "json-lint",
  "version": "0.3.1",
  "supported_formats": ["json"],
  "invocation_contract": {"entrypoint": "lint", "inputs": [{"type": "path"}]}
}`

// captureOutput runs fn with c's output redirected and returns what was printed.
func captureOutput(t *testing.T, c *cobra.Command, fn func() error) string {
	t.Helper()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetErr(&buf)
	t.Cleanup(func() {
		c.SetOut(nil)
		c.SetErr(nil)
	})
	require.NoError(t, fn())
	return buf.String()
}

type cliEnv struct {
	url        string
	home       string
	aliceToken string
	adminToken string
}

// newCLIEnv starts a registry API server and points the CLI at it with an in-memory client filesystem.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	setup, alice := testhelpers.SetupUserTest(t)
	t.Cleanup(setup.Cleanup)
	users := user.NewUserService(setup.DB)
	reg := testhelpers.SetupRegistryTest(t)

	s, err := api.NewServer(&api.ServerOptions{
		Port:        "0",
		Registry:    reg.Registry,
		UserService: users,
		Authenticator: auth.NewChain(auth.Options{
			AdminAuthKey: cliAdminKey,
			Users:        users,
		}),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	prevFs := clientFs
	clientFs = afero.NewMemMapFs()
	t.Cleanup(func() {
		clientFs = prevFs
		registryURL = ""
		listToolsCmdNameFilter = ""
		listToolsCmdInputFormat = ""
		listToolsCmdOutputFormat = ""
		createUserCmdAccessToken = ""
		createUserCmdRole = "user"
	})

	return &cliEnv{
		url:        srv.URL,
		home:       home,
		aliceToken: alice.AccessToken,
		adminToken: auth.GenerateAdminToken(cliAdminKey),
	}
}

func (e *cliEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.home, name)
	require.NoError(t, afero.WriteFile(clientFs, path, []byte(content), 0o644))
	return path
}

// run executes the CLI with args and returns its output and error.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--registry", e.url}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLIToolLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "login", env.aliceToken)
	assert.Contains(t, out, "Logged in as testuser")

	out = env.mustRun(t, "whoami")
	assert.Contains(t, out, "Principal: testuser")

	doc := env.writeFile(t, "csv.yaml", csvToolYAML)
	out = env.mustRun(t, "register", "-c", doc)
	assert.Contains(t, out, "Tool 'csv-to-parquet' (version 1.2.0) registered successfully!")
	assert.Contains(t, out, "Tool ID: tool-001")
	assert.Contains(t, out, "Supported formats: csv, tsv")

	out = env.mustRun(t, "resolve", " CSV ")
	assert.Contains(t, out, "Tools supporting 'csv':")
	assert.Contains(t, out, "1. csv-to-parquet@1.2.0  [tool-001]")

	out = env.mustRun(t, "usage", "tool-001")
	assert.Contains(t, out, "Owner:     testuser")
	assert.Contains(t, out, `"entrypoint": "convert"`)

	updated := env.writeFile(t, "csv-v2.yaml", `
name: csv-to-parquet
version: 1.3.0
supported_formats: [tsv]
invocation_contract:
  entrypoint: convert
  inputs: [path]
`)
	out = env.mustRun(t, "update", "tool", "tool-001", "-c", updated)
	assert.Contains(t, out, "updated successfully (revision 2)")

	out = env.mustRun(t, "resolve", "csv")
	assert.Contains(t, out, "No tools support the format 'csv'")

	out = env.mustRun(t, "delete", "tool", "tool-001")
	assert.Contains(t, out, "Tool 'tool-001' removed successfully")

	out = env.mustRun(t, "list", "tools")
	assert.Contains(t, out, "There are no tools in the registry")
}

func TestCLIImportDirectory(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "login", env.aliceToken)

	dir := filepath.Join(env.home, "catalog")
	require.NoError(t, clientFs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(clientFs, filepath.Join(dir, "a-csv.yaml"), []byte(csvToolYAML), 0o644))
	require.NoError(t, afero.WriteFile(clientFs, filepath.Join(dir, "b-json.json"), []byte(jsonToolJSON), 0o644))
	require.NoError(t, afero.WriteFile(clientFs, filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	out := env.mustRun(t, "import", dir)
	assert.Contains(t, out, "2 of 2 tools registered")

	out = env.mustRun(t, "list", "tools", "--name", "LINT")
	assert.Contains(t, out, "json-lint@0.3.1")
	assert.NotContains(t, out, "csv-to-parquet")
}

func TestCLIListToolsByFormat(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "login", env.aliceToken)

	parquet := env.writeFile(t, "parquet.yaml", `
name: parquet-writer
version: 2.0.0
supported_formats: [json, text/csv]
invocation_contract:
  entrypoint: write
  inputs: [path]
  outputs: [{type: Parquet}]
`)
	env.mustRun(t, "register", "-c", env.writeFile(t, "csv.yaml", csvToolYAML))
	env.mustRun(t, "register", "-c", parquet)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name:    "input format",
			args:    []string{"--input-format", "CSV"},
			want:    []string{"csv-to-parquet@1.2.0"},
			notWant: []string{"parquet-writer"},
		},
		{
			name:    "input format with a slash",
			args:    []string{"--input-format", "Text/CSV"},
			want:    []string{"parquet-writer@2.0.0"},
			notWant: []string{"csv-to-parquet"},
		},
		{
			name:    "output format",
			args:    []string{"--output-format", "parquet"},
			want:    []string{"parquet-writer@2.0.0"},
			notWant: []string{"csv-to-parquet"},
		},
		{
			name: "nothing matches both",
			args: []string{"--input-format", "tsv", "--output-format", "parquet"},
			want: []string{"No tools match the given filters"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Cleanup(func() {
				listToolsCmdInputFormat = ""
				listToolsCmdOutputFormat = ""
			})
			out := env.mustRun(t, append([]string{"list", "tools"}, tc.args...)...)
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tc.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestCLIImportReportsFailures(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "login", env.aliceToken)

	dir := filepath.Join(env.home, "catalog")
	require.NoError(t, clientFs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(clientFs, filepath.Join(dir, "good.yaml"), []byte(csvToolYAML), 0o644))
	require.NoError(t, afero.WriteFile(clientFs, filepath.Join(dir, "bad.yaml"), []byte("name: no-version\n"), 0o644))

	out, err := env.run(t, "import", dir)
	assert.Error(t, err)
	assert.Contains(t, out, "[FAIL]")
	assert.Contains(t, out, "1 of 2 tools registered")
}

func TestCLIRegisterRequiresLogin(t *testing.T) {
	env := newCLIEnv(t)
	doc := env.writeFile(t, "csv.yaml", csvToolYAML)

	_, err := env.run(t, "register", "-c", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCLIUserManagement(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "login", env.adminToken)

	out := env.mustRun(t, "create", "user", "carol", "--access-token", "carol-token")
	assert.Contains(t, out, "User 'carol' created successfully with role user")
	assert.Contains(t, out, "toolregistry login carol-token")

	out = env.mustRun(t, "list", "users")
	assert.Contains(t, out, "carol (user)")

	out = env.mustRun(t, "update", "user", "carol", "--access-token", "carol-token-2")
	assert.Contains(t, out, "Access token of user 'carol' rotated successfully")

	out = env.mustRun(t, "delete", "user", "carol")
	assert.Contains(t, out, "User 'carol' deleted successfully")

	out = env.mustRun(t, "verify-index")
	assert.Contains(t, out, "The format index is consistent")
}

func TestCLIVersion(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun(t, "version")
	assert.Contains(t, out, "Client version:")
	assert.Contains(t, out, "Format normalization: casefold")
}
