package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	dbPath := filepath.Join(dir, "medvault.db")
	yml := fmt.Sprintf(`
database:
  driver: sqlite
  path: "file:%s?_pragma=busy_timeout(5000)"
log:
  level: error
appointments:
  timezone: UTC
  default_slots: ["09:00", "12:00"]
`, dbPath)
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestRosterAndSlots(t *testing.T) {
	cfg := writeConfig(t)
	doctor := uuid.NewString()
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	out, err := run(t, "migrate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")

	out, err = run(t, "roster", "show", "--config", cfg, "--doctor", doctor)
	require.NoError(t, err)
	assert.Equal(t, "09:00 12:00", out)

	out, err = run(t, "roster", "set", "--config", cfg, "--doctor", doctor, "--slots", "16:30,08:00,16:30")
	require.NoError(t, err)
	assert.Contains(t, out, "08:00 16:30")

	out, err = run(t, "roster", "show", "--config", cfg, "--doctor", doctor)
	require.NoError(t, err)
	assert.Equal(t, "08:00 16:30", out)

	out, err = run(t, "slots", "--config", cfg, "--doctor", doctor, "--date", tomorrow)
	require.NoError(t, err)
	assert.Equal(t, "08:00 16:30", out)
}

func TestFlagErrors(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "roster", "show", "--config", cfg)
	assert.ErrorContains(t, err, "--doctor is required")

	_, err = run(t, "slots", "--config", cfg, "--doctor", "nope", "--date", "2030-01-01")
	assert.ErrorContains(t, err, "invalid --doctor")

	_, err = run(t, "roster", "set", "--config", cfg, "--doctor", uuid.NewString(), "--slots", "25:00")
	assert.Error(t, err)

	_, err = run(t, "migrate", "--config", filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
