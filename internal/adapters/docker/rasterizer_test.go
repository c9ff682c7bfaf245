package docker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notFoundErr struct{}

func (notFoundErr) Error() string { return "No such image" }
func (notFoundErr) NotFound()     {}

// fakeDocker plays pdftoppm by writing pages into the bind mount on start.
type fakeDocker struct {
	pages     map[string][]byte
	exitCode  int64
	missing   bool // first create reports a missing image
	workDir   string
	config    *container.Config
	host      *container.HostConfig
	creates   int
	pulls     int
	removed   []string
	startErr  error
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.creates++
	if f.missing && f.pulls == 0 {
		return container.CreateResponse{}, notFoundErr{}
	}
	f.config = cfg
	f.host = host
	f.workDir = host.Mounts[0].Source
	return container.CreateResponse{ID: "c1"}, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, _ string, _ container.StartOptions) error {
	if f.startErr != nil {
		return f.startErr
	}
	for name, data := range f.pages {
		if err := os.WriteFile(filepath.Join(f.workDir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDocker) ContainerWait(_ context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerLogs(_ context.Context, _ string, _ container.LogsOptions) (io.ReadCloser, error) {
	return nil, errors.New("logs unavailable")
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDocker) ImagePull(_ context.Context, _ string, _ image.PullOptions) (io.ReadCloser, error) {
	f.pulls++
	return io.NopCloser(strings.NewReader("{}")), nil
}

func TestRasterize_OrdersPagesNumerically(t *testing.T) {
	fake := &fakeDocker{pages: map[string][]byte{
		"page-02.jpg": []byte("two"),
		"page-10.jpg": []byte("ten"),
		"page-01.jpg": []byte("one"),
	}}
	r := newRasterizer(fake, Options{Image: "poppler:test", WorkDir: t.TempDir()})

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("ten")}, pages)
	assert.Equal(t, []string{"c1"}, fake.removed)

	// Sandbox settings
	assert.Equal(t, container.NetworkMode("none"), fake.host.NetworkMode)
	assert.True(t, fake.host.ReadonlyRootfs)
	assert.Equal(t, []string{"pdftoppm", "-jpeg", "-r", "108", "/work/input.pdf", "/work/page"}, fake.config.Cmd)
	assert.Equal(t, "true", fake.config.Labels["floral.managed"])

	_, err = os.Stat(fake.workDir)
	assert.True(t, os.IsNotExist(err), "work dir is cleaned up")
}

func TestRasterize_PullsMissingImage(t *testing.T) {
	fake := &fakeDocker{missing: true, pages: map[string][]byte{"page-1.jpg": []byte("p")}}
	r := newRasterizer(fake, Options{Image: "poppler:test", DPI: 72, WorkDir: t.TempDir()})

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.Len(t, pages, 1)
	assert.Equal(t, 1, fake.pulls)
	assert.Equal(t, 2, fake.creates)
	assert.Equal(t, "72", fake.config.Cmd[3])
}

func TestRasterize_Failures(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeDocker
		wantErr string
	}{
		{
			name:    "non-zero exit",
			fake:    &fakeDocker{exitCode: 1},
			wantErr: "pdftoppm exited with 1: no logs",
		},
		{
			name:    "no pages",
			fake:    &fakeDocker{},
			wantErr: "pdf has no pages",
		},
		{
			name:    "start fails",
			fake:    &fakeDocker{startErr: errors.New("daemon gone")},
			wantErr: "failed to start container: daemon gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRasterizer(tt.fake, Options{Image: "poppler:test", WorkDir: t.TempDir()})

			_, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, []string{"c1"}, tt.fake.removed, "container is always removed")
		})
	}
}
