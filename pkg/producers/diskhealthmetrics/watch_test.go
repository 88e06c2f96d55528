// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDiskNodeEvent(t *testing.T) {
	assert.True(t, isDiskNodeEvent(fsnotify.Event{Name: "/dev/sdc", Op: fsnotify.Create}))
	assert.True(t, isDiskNodeEvent(fsnotify.Event{Name: "/dev/nvme2n1", Op: fsnotify.Remove}))
	assert.False(t, isDiskNodeEvent(fsnotify.Event{Name: "/dev/sdc", Op: fsnotify.Chmod}))
	assert.False(t, isDiskNodeEvent(fsnotify.Event{Name: "/dev/tty5", Op: fsnotify.Create}))
	assert.False(t, isDiskNodeEvent(fsnotify.Event{Name: "/dev/loop3", Op: fsnotify.Create}))
}

func TestRescannerDebounces(t *testing.T) {
	dir := copyFixtures(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "sdb.yaml")))

	inv := NewInventory(replayConfig(dir))
	defer inv.Close()
	_, _, err := inv.Rescan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, inv.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs := newRescanner(inv, 50*time.Millisecond)
	go rs.Run(ctx)

	b, err := os.ReadFile(filepath.Join("testdata", "replay", "sdb.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sdb.yaml"), b, 0o644))

	for i := 0; i < 5; i++ {
		rs.Trigger()
	}
	assert.Eventually(t, func() bool { return inv.Len() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchDevices(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var triggered atomic.Int32
	require.NoError(t, watchDevices(ctx, dir, func() { triggered.Add(1) }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tty9"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sdx"), nil, 0o644))
	assert.Eventually(t, func() bool { return triggered.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchDevicesMissingDir(t *testing.T) {
	err := watchDevices(context.Background(), filepath.Join(t.TempDir(), "missing"), func() {})
	assert.Error(t, err)
}

func TestStartSchedule(t *testing.T) {
	_, err := startSchedule("not a schedule", func() {})
	assert.Error(t, err)

	c, err := startSchedule("@every 1h", func() {})
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 1)
}
