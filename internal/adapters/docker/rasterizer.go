package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/manthysbr/floral/internal/core/ports"
)

const (
	containerWorkDir = "/work"
	inputName        = "input.pdf"
	pagePrefix       = "page"
)

// containerAPI is the subset of the Docker client the rasterizer uses.
type containerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// Options configures the rasterizer container.
type Options struct {
	Image   string        // must provide pdftoppm
	DPI     int           // 108 matches a 1.5x PDF viewport
	Timeout time.Duration // zero = no limit beyond ctx
	WorkDir string        // host directory for bind mounts; empty = os.TempDir()
}

// Rasterizer renders PDFs to JPEG pages with pdftoppm in a throwaway,
// network-less container.
type Rasterizer struct {
	cli  containerAPI
	opts Options
}

// NewRasterizer creates a rasterizer using the Docker environment settings.
func NewRasterizer(opts Options) (*Rasterizer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newRasterizer(cli, opts), nil
}

func newRasterizer(cli containerAPI, opts Options) *Rasterizer {
	if opts.DPI <= 0 {
		opts.DPI = 108
	}
	return &Rasterizer{cli: cli, opts: opts}
}

var _ ports.Rasterizer = (*Rasterizer)(nil)

func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	// 1. Prepare the bind-mounted work directory
	workDir, err := os.MkdirTemp(r.opts.WorkDir, "floral-pdf-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)
	// The container user is unknown; let it write pages.
	_ = os.Chmod(workDir, 0777)

	if err := os.WriteFile(filepath.Join(workDir, inputName), pdf, 0644); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}

	// 2. Create the container
	name := "floral-pdf-" + uuid.New().String()
	cfg := &container.Config{
		Image: r.opts.Image,
		Cmd: []string{
			"pdftoppm", "-jpeg", "-r", strconv.Itoa(r.opts.DPI),
			containerWorkDir + "/" + inputName,
			containerWorkDir + "/" + pagePrefix,
		},
		Labels: map[string]string{"floral.managed": "true"},
	}
	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: workDir,
				Target: containerWorkDir,
			},
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,nosuid,size=64m"},
	}

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if client.IsErrNotFound(err) {
		reader, pullErr := r.cli.ImagePull(ctx, r.opts.Image, image.PullOptions{})
		if pullErr != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", r.opts.Image, pullErr)
		}
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()
		resp, err = r.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		// ctx may already be done; removal must still happen.
		_ = r.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
	}()

	// 3. Run to completion
	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("failed waiting for container: %w", err)
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return nil, fmt.Errorf("pdftoppm exited with %d: %s", status.StatusCode, r.logs(ctx, resp.ID))
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// 4. Collect pages
	return readPages(workDir)
}

func (r *Rasterizer) logs(ctx context.Context, id string) string {
	rc, err := r.cli.ContainerLogs(context.WithoutCancel(ctx), id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "no logs"
	}
	defer rc.Close()

	var out bytes.Buffer
	_, _ = stdcopy.StdCopy(&out, &out, io.LimitReader(rc, 64*1024))
	if msg := strings.TrimSpace(out.String()); msg != "" {
		return msg
	}
	return "no output"
}

// readPages loads page-N.jpg files in page order. pdftoppm zero-pads N
// depending on the page count, so ordering is numeric.
func readPages(dir string) ([][]byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pagePrefix+"-*.jpg"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	type page struct {
		n    int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".jpg")
		n, err := strconv.Atoi(strings.TrimPrefix(base, pagePrefix+"-"))
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([][]byte, 0, len(pages))
	for _, p := range pages {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", p.n, err)
		}
		out = append(out, data)
	}
	return out, nil
}
