package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tflplan"
)

func TestParseCapacity(t *testing.T) {
	arena, limit, err := parseCapacity("1=4096")
	require.NoError(t, err)
	assert.Equal(t, 1, arena)
	assert.Equal(t, int64(4096), limit)

	for _, bad := range []string{"", "1", "x=1", "1=x", "-1=10", "0=-5"} {
		_, _, err := parseCapacity(bad)
		assert.ErrorIs(t, err, tflplan.ErrInvalidArgument, bad)
	}
}

func TestParseAffinity(t *testing.T) {
	sg, tensor, arenas, err := parseAffinity("0:12=1, 2")
	require.NoError(t, err)
	assert.Equal(t, 0, sg)
	assert.Equal(t, 12, tensor)
	assert.Equal(t, []int{1, 2}, arenas)

	for _, bad := range []string{"0:12", "0=1", "0:12=", "a:1=0", "0:1=x", "0:1=-1"} {
		_, _, _, err := parseAffinity(bad)
		assert.ErrorIs(t, err, tflplan.ErrInvalidArgument, bad)
	}
}

func TestParseSize(t *testing.T) {
	sg, tensor, size, err := parseSize("1:3=24")
	require.NoError(t, err)
	assert.Equal(t, 1, sg)
	assert.Equal(t, 3, tensor)
	assert.Equal(t, int64(24), size)

	for _, bad := range []string{"1:3", "3=24", "1:3=-1", "1:-3=2"} {
		_, _, _, err := parseSize(bad)
		assert.ErrorIs(t, err, tflplan.ErrInvalidArgument, bad)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want location
	}{
		{"model.tflite", location{scheme: "file", key: "model.tflite"}},
		{"file:///tmp/m.tflite", location{scheme: "file", key: "/tmp/m.tflite"}},
		{"s3://bucket/models/m.tflite.zst", location{scheme: "s3", bucket: "bucket", key: "models/m.tflite.zst"}},
		{"minio://localhost:9000/b/k/m.tflite", location{scheme: "minio", endpoint: "localhost:9000", bucket: "b", key: "k/m.tflite"}},
	}
	for _, tt := range tests {
		got, err := parseLocation(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "s3://", "s3://bucket", "s3://bucket/", "minio://host/bucket", "minio:///b/k"} {
		_, err := parseLocation(bad)
		assert.ErrorIs(t, err, tflplan.ErrInvalidArgument, bad)
	}
}
