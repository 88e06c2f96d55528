// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, input)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{}, nil
}

func archiveConfig() DiskHealthMetricsConfig {
	cfg := DefaultConfig()
	cfg.S3Bucket = "disk-reports"
	cfg.S3Prefix = "fleet"
	cfg.S3EveryNPolls = 3
	cfg.NodeName = "node-1"
	return cfg
}

func TestS3ArchiverUploadsEveryNthPoll(t *testing.T) {
	up := &fakeUploader{}
	a := newS3Archiver(up, archiveConfig())
	a.now = func() time.Time { return time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC) }

	reports := []DeviceReport{{Device: "sda"}, {Device: "sdb"}}
	for i := 0; i < 7; i++ {
		require.NoError(t, a.Publish(context.Background(), reports))
	}
	// polls 1, 4 and 7
	require.Len(t, up.inputs, 3)

	in := up.inputs[0]
	assert.Equal(t, "disk-reports", aws.ToString(in.Bucket))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	key := aws.ToString(in.Key)
	assert.True(t, strings.HasPrefix(key, "fleet/node-1/20250301T123000Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(up.bodies[0], &snap))
	assert.Equal(t, "node-1", snap.NodeName)
	assert.Len(t, snap.Devices, 2)
	assert.Contains(t, key, snap.ID)
}

func TestS3ArchiverUploadError(t *testing.T) {
	up := &fakeUploader{err: errors.New("access denied")}
	a := newS3Archiver(up, archiveConfig())
	err := a.Publish(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://disk-reports/fleet/")
}

func TestS3ArchiverKeyWithoutNode(t *testing.T) {
	cfg := archiveConfig()
	cfg.NodeName = ""
	cfg.S3Prefix = ""
	a := newS3Archiver(&fakeUploader{}, cfg)
	key := a.objectKey(Snapshot{ID: "abc", Time: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)})
	assert.Equal(t, "unknown/20250102T030405Z-abc.json", key)
}
