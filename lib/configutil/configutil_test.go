package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Output   string `json:"output"`
}

func TestReadConfigExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// checked-in config keeps the credential in the environment
		username: "someone",
		token: "${MYBGG_TEST_TOKEN}",
	}`), 0600))
	t.Setenv("MYBGG_TEST_TOKEN", "supersecret")

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "someone", cfg.Username)
	require.Equal(t, "supersecret", cfg.Token)
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		username: "someone",
		output: "mybgg.db",
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		output: "local.db",
	}`), 0600))

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "someone", cfg.Username)
	require.Equal(t, "local.db", cfg.Output)
}

func TestReadConfigMissingFiles(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
