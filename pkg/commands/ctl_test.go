// Copyright (C) 2024 Clyso GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltcore-dev/diskprobe/pkg/producers/diskhealthmetrics"
)

func TestGetEnv(t *testing.T) {
	key := "TEST_KEY"
	fallback := "default_value"

	// Test when the environment variable is not set
	value := getEnv(key, fallback)
	assert.Equal(t, fallback, value)

	// Test when the environment variable is set
	expectedValue := "expected_value"
	os.Setenv(key, expectedValue)
	value = getEnv(key, fallback)
	assert.Equal(t, expectedValue, value)

	// Clean up
	os.Unsetenv(key)
}

func TestGetEnvTyped(t *testing.T) {
	t.Setenv("DP_INT", "42")
	t.Setenv("DP_UINT", "7")
	t.Setenv("DP_BOOL", "true")
	t.Setenv("DP_DUR", "90m")
	t.Setenv("DP_BAD", "x")

	assert.Equal(t, 42, getEnvInt("DP_INT", 1))
	assert.Equal(t, 1, getEnvInt("DP_BAD", 1))
	assert.Equal(t, uint64(7), getEnvUint64("DP_UINT", 1))
	assert.Equal(t, uint64(1), getEnvUint64("DP_BAD", 1))
	assert.True(t, getEnvBool("DP_BOOL", false))
	assert.False(t, getEnvBool("DP_MISSING", false))
	assert.Equal(t, 90*time.Minute, getEnvDuration("DP_DUR", time.Hour))
	assert.Equal(t, time.Hour, getEnvDuration("DP_BAD", time.Hour))
}

func TestMergeDiskHealthMetricsConfigWithEnv(t *testing.T) {
	t.Setenv("DISKS", "/dev/sda, /dev/sdb,")
	t.Setenv("NODE_NAME", "node-9")
	t.Setenv("PENDING_SECTORS_THRESHOLD", "4")
	t.Setenv("HISTORY_RETENTION", "24h")
	t.Setenv("REPLAY_DIR", "/fixtures")

	cfg := mergeDiskHealthMetricsConfigWithEnv(diskhealthmetrics.DefaultConfig())
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, cfg.Disks)
	assert.Equal(t, "node-9", cfg.NodeName)
	assert.Equal(t, uint64(4), cfg.PendingSectorsThreshold)
	assert.Equal(t, 24*time.Hour, cfg.HistoryRetention)
	assert.Equal(t, "/fixtures", cfg.ReplayDir)
	assert.Equal(t, 60, cfg.Interval)
}

func TestSplitDisks(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitDisks("*"))
	assert.Nil(t, splitDisks(" , "))
	assert.Equal(t, []string{"sda", "sdb"}, splitDisks("sda,sdb"))
}

func TestRunScanReplay(t *testing.T) {
	cfg := diskhealthmetrics.DefaultConfig()
	cfg.ReplayDir = filepath.Join("..", "producers", "diskhealthmetrics", "testdata", "replay")

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), cfg, &out, false))

	var reports []diskhealthmetrics.DeviceReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 3)
	assert.Equal(t, "nvme0n1", reports[0].Device)
	assert.True(t, reports[0].Identity.NVMe)
}

func TestRunScanInvalidConfig(t *testing.T) {
	cfg := diskhealthmetrics.DefaultConfig()
	cfg.Interval = 0
	assert.Error(t, runScan(context.Background(), cfg, io.Discard, false))
}
