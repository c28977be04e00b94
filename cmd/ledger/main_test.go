package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/ledger/config"
)

func resetFlags(t *testing.T) {
	t.Cleanup(func() {
		dataDir = ""
		logLevel = ""
		jsonOutput = false
	})
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	resetFlags(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvLogLevel, "")

	dataDir = filepath.Join(t.TempDir(), "from-flag")
	logLevel = "error"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dataDir, config.DatabaseFileName), databaseOptions(cfg, nil).Path)
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	resetFlags(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvDataDir, t.TempDir())

	logLevel = "chatty"
	_, err := loadConfig()
	assert.Error(t, err)
}

func TestMigrateAndListCommands(t *testing.T) {
	resetFlags(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvDataDir, "")
	t.Setenv(config.EnvLogLevel, "")
	dir := filepath.Join(t.TempDir(), "ledger")

	rootCmd.SetArgs([]string{"migrate", "--data-dir", dir, "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat(filepath.Join(dir, config.DatabaseFileName))
	require.NoError(t, err)

	rootCmd.SetArgs([]string{"accounts", "list", "--data-dir", dir, "--json"})
	require.NoError(t, rootCmd.Execute())
}

func TestServeShutsDownCleanlyOnCancel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()

	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	t.Cleanup(func() {
		inWriter.Close()
		outReader.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), inReader, outWriter)
	}()

	line, err := bufio.NewReader(outReader).ReadString('\n')
	require.NoError(t, err)
	assert.JSONEq(t, `{"event": "ready"}`, line)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a normal shutdown")
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
