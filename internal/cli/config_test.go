package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlundo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
database: ./show.db
group_limit: 50
log:
  level: debug
  format: json
serve:
  addr: 127.0.0.1:9000
  allowed_origins: [http://localhost:3000]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./show.db", cfg.Database)
	require.NotNil(t, cfg.GroupLimit)
	assert.Equal(t, int64(50), *cfg.GroupLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Serve.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Serve.AllowedOrigins)
}

func TestLoadConfig_Empty(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Nil(t, cfg.GroupLimit)
	assert.Empty(t, cfg.Database)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "databse: x.db\n", "failed to parse config"},
		{"bad level", "log:\n  level: loud\n", `log.level "loud"`},
		{"bad format", "log:\n  format: xml\n", `log.format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	logger := newLogger(LogConfig{}, false, &buf)
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))

	logger = newLogger(LogConfig{Level: "info"}, true, &buf)
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug), "--verbose wins over config")

	logger = newLogger(LogConfig{Level: "error", Format: "json"}, false, &buf)
	logger.Error("boom", "group", 3)
	assert.Contains(t, buf.String(), `"msg":"boom"`)
	assert.Contains(t, buf.String(), `"group":3`)
}

func TestDatabasePath_Precedence(t *testing.T) {
	dir := t.TempDir()
	fromConfig := filepath.Join(dir, "config.db")
	fromFlag := filepath.Join(dir, "flag.db")
	cfg := writeConfig(t, "database: "+fromConfig+"\n")

	mustRunCLI(t, "--config", cfg, "init")
	assert.FileExists(t, fromConfig)

	mustRunCLI(t, "--config", cfg, "--db", fromFlag, "init")
	assert.FileExists(t, fromFlag)
}
