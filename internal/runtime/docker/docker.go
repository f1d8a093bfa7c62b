// Package docker implements the runtime capability interface on top of the
// Docker Engine SDK.
package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/vk/convoy/internal/ctxlog"
	"github.com/vk/convoy/internal/runtime"
)

// Runtime drives execution units through a Docker Engine API client.
type Runtime struct {
	client client.APIClient
}

// New creates a Runtime backed by a Docker client configured from the
// environment (DOCKER_HOST, etc.).
func New() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: failed to create client: %w", err)
	}
	return &Runtime{client: cli}, nil
}

// NewWithClient creates a Runtime with an injected API client (for testing).
func NewWithClient(cli client.APIClient) *Runtime {
	return &Runtime{client: cli}
}

// Start pulls the image if needed, then creates and starts a container for
// the spec.
func (r *Runtime) Start(ctx context.Context, spec runtime.StartSpec) (runtime.Unit, error) {
	logger := ctxlog.FromContext(ctx)

	if spec.Image == "" {
		return nil, fmt.Errorf("docker: image is required")
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("docker: unit name is required")
	}

	if err := r.ensureImage(ctx, spec.Image); err != nil {
		return nil, fmt.Errorf("docker: failed to pull image %s: %w", spec.Image, err)
	}

	containerConfig := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Command,
		Env:        buildEnv(spec.Env),
		WorkingDir: spec.WorkDir,
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, buildHostConfig(spec.Mounts), nil, nil, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("docker: failed to create container %s: %w", spec.Name, err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// The container exists but never ran; clean it up before surfacing.
		removeErr := r.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		if removeErr != nil {
			logger.Warn("Failed to remove container after failed start.", "name", spec.Name, "error", removeErr)
		}
		return nil, fmt.Errorf("docker: failed to start container %s: %w", spec.Name, err)
	}

	logger.Debug("Container started.", "name", spec.Name, "id", resp.ID)
	return &unit{client: r.client, id: resp.ID, name: spec.Name}, nil
}

// CreateVolume provisions a named volume.
func (r *Runtime) CreateVolume(ctx context.Context, name string) error {
	_, err := r.client.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	if err != nil {
		return fmt.Errorf("docker: failed to create volume %s: %w", name, err)
	}
	return nil
}

// RemoveVolume destroys a named volume. A missing volume is not an error.
func (r *Runtime) RemoveVolume(ctx context.Context, name string) error {
	err := r.client.VolumeRemove(ctx, name, true)
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("docker: failed to remove volume %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying API client.
func (r *Runtime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ensureImage pulls the image if it is not available locally.
func (r *Runtime) ensureImage(ctx context.Context, ref string) error {
	_, _, err := r.client.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil // Image already present
	}

	reader, err := r.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	// Consume the pull output to completion
	_, err = io.Copy(io.Discard, reader)
	return err
}

// buildEnv converts an env map into Docker's KEY=VALUE format.
func buildEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// buildHostConfig creates the Docker HostConfig from the spec mounts.
func buildHostConfig(mounts []runtime.Mount) *container.HostConfig {
	hc := &container.HostConfig{}
	if len(mounts) == 0 {
		return hc
	}

	out := make([]mount.Mount, len(mounts))
	for i, m := range mounts {
		kind := mount.TypeBind
		if m.Kind == runtime.MountVolume {
			kind = mount.TypeVolume
		}
		out[i] = mount.Mount{
			Type:     kind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		}
	}
	hc.Mounts = out
	return hc
}
