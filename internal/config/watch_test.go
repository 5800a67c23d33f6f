package config

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9000"
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, path, slog.Default(), func(cfg *Config) {
			reloaded <- cfg
		})
	}()

	// Give the watcher a moment to register before mutating the file.
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9100"
`), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":9100", cfg.Server.Addr)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

func TestWatch_KeepsPreviousConfigOnBadReload(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9000"
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)

	go func() {
		_ = Watch(ctx, path, slog.Default(), func(cfg *Config) {
			reloaded <- cfg
		})
	}()

	time.Sleep(300 * time.Millisecond)

	// Broken TOML should be logged and skipped, not delivered.
	require.NoError(t, os.WriteFile(path, []byte("[server\n"), 0o600))

	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected reload with %+v", cfg)
	case <-time.After(1 * time.Second):
	}

	// A subsequent good write recovers.
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9200"
`), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":9200", cfg.Server.Addr)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recovery reload")
	}
}
