package docker

import (
	"bytes"
	"testing"

	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/require"
)

func TestBindMountsUseIdentityPaths(t *testing.T) {
	mounts := BindMounts([]string{"/work/export-1", "/media/submission_1/segments", ""})

	require.Equal(t, []mount.Mount{
		{Type: mount.TypeBind, Source: "/work/export-1", Target: "/work/export-1", ReadOnly: false},
		{Type: mount.TypeBind, Source: "/media/submission_1/segments", Target: "/media/submission_1/segments", ReadOnly: true},
	}, mounts)
}

func TestDemuxLogsCombinesStreams(t *testing.T) {
	var raw bytes.Buffer
	_, err := stdcopy.NewStdWriter(&raw, stdcopy.Stdout).Write([]byte("out\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&raw, stdcopy.Stderr).Write([]byte("err\n"))
	require.NoError(t, err)

	combined, err := demuxLogs(&raw)
	require.NoError(t, err)
	require.Equal(t, "out\nerr\n", string(combined))
}
