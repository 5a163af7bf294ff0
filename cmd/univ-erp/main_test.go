package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DB_PATH", filepath.Join(dir, "erp.db"))
	t.Setenv("DB_ENCRYPTION_KEY", "cli-test-key-0123456789abcdef0123")
	t.Setenv("AUDIT_LOG_PATH", filepath.Join(dir, "audit.log"))
	t.Setenv("AUDIT_ASYNC_MODE", "false")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("UNIV_ERP_PASSWORD", "")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := RootCmd()
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestAdminCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "admin", "bootstrap", "root", "--password", "Fresh1pass")
	require.NoError(t, err)
	assert.Contains(t, out, "admin root created")

	_, err = run(t, "", "admin", "bootstrap", "root2", "--password", "Fresh1pass")
	assert.Error(t, err)

	out, err = run(t, "", "admin", "create-user", "alice", "Passw0rdOK", "--as", "root", "--password", "Fresh1pass")
	require.NoError(t, err)
	assert.Contains(t, out, "STUDENT alice created")

	out, err = run(t, "Fresh1pass\n", "admin", "maintenance", "on", "--as", "root")
	require.NoError(t, err)
	assert.Contains(t, out, "maintenance: on")

	_, err = run(t, "", "admin", "maintenance", "sideways", "--as", "root", "--password", "Fresh1pass")
	assert.Error(t, err)

	_, err = run(t, "", "admin", "unlock", "1", "--as", "alice", "--password", "Passw0rdOK")
	assert.Error(t, err)
}

func TestShell(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "admin", "bootstrap", "root", "--password", "Fresh1pass")
	require.NoError(t, err)
	_, err = run(t, "", "admin", "create-user", "alice", "Passw0rdOK", "--as", "root", "--password", "Fresh1pass")
	require.NoError(t, err)

	t.Run("Should sign in and list enrollments", func(t *testing.T) {
		input := strings.Join([]string{"1", "alice", "Passw0rdOK", "2", "7", "2"}, "\n") + "\n"

		out, err := run(t, input, "shell")
		require.NoError(t, err)
		assert.Contains(t, out, "Welcome, alice")
		assert.Contains(t, out, "No sections found")
	})

	t.Run("Should show an empty grade sheet", func(t *testing.T) {
		input := strings.Join([]string{"1", "alice", "Passw0rdOK", "5", "7", "2"}, "\n") + "\n"

		out, err := run(t, input, "shell")
		require.NoError(t, err)
		assert.Contains(t, out, "No enrolled sections")
	})

	t.Run("Should report a failed login", func(t *testing.T) {
		input := strings.Join([]string{"1", "alice", "wrong", "2"}, "\n") + "\n"

		out, err := run(t, input, "shell")
		require.NoError(t, err)
		assert.Contains(t, out, "Login failed")
	})
}
