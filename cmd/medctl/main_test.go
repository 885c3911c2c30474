package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func memoryConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "storage:\n  driver: memory\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	t.Setenv("MEDAPP_JWT_SECRET", "test-secret")
	return dir
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "hash-password", "--cost", "4", "secret123")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret123")))
}

func TestHashPasswordRequiresArgument(t *testing.T) {
	_, err := run(t, "hash-password")
	assert.Error(t, err)
}

func TestCreateAdmin(t *testing.T) {
	dir := memoryConfig(t)

	out, err := run(t, "create-admin", "--config", dir,
		"--first-name", "Ada", "--last-name", "Admin",
		"--email", "Ada@Example.com", "--password", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin")
	assert.Contains(t, out, "ada@example.com")
}

func TestCreateAdminValidates(t *testing.T) {
	dir := memoryConfig(t)

	_, err := run(t, "create-admin", "--config", dir,
		"--first-name", "Ada", "--last-name", "Admin",
		"--email", "not-an-email", "--password", "secret123")
	assert.Error(t, err)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	dir := memoryConfig(t)

	_, err := run(t, "migrate", "--config", dir)
	assert.ErrorContains(t, err, "postgres")
}

func TestSweepOTPs(t *testing.T) {
	dir := memoryConfig(t)

	out, err := run(t, "sweep-otps", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared 0 expired OTPs")
}
