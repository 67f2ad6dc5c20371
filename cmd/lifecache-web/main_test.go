package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/lifecache/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0 // random port
	cfg.Storage.DataPath = t.TempDir()
	cfg.Delivery.LogPath = cfg.Storage.DataPath + "/deliveries.log"
	cfg.Scheduler.TickInterval = "50ms"
	return cfg
}

func TestRun_Routes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, a, err := run(ctx, testConfig(t))
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	resp, err := http.Get("http://" + addr + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// WebSocket upgrade fails via GET, but route exists (400 not 404)
	resp, err = http.Get("http://" + addr + "/ws")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)

	assert.True(t, a.Engine.Scheduler().Running())
}

func TestRun_SchedulerDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, a, err := run(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	assert.False(t, a.Engine.Scheduler().Running())
}

func TestRun_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	addr, a, err := run(ctx, testConfig(t))
	require.NoError(t, err)

	require.NoError(t, a.Close(context.Background()))
	cancel()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/health")
		if err != nil {
			return true
		}
		_ = resp.Body.Close()
		return false
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRun_BackupsEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Enabled = true
	cfg.Backup.Dir = cfg.Storage.DataPath + "/backups"
	cfg.Backup.Interval = "50ms"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, a, err := run(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	require.NotNil(t, a.Backups)
	assert.Eventually(t, func() bool {
		snapshots, err := a.Backups.List()
		return err == nil && len(snapshots) > 0
	}, 3*time.Second, 25*time.Millisecond)
}
