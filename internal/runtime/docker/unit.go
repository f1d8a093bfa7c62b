package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/vk/convoy/internal/runtime"
)

// unit is a single Docker container implementing runtime.Unit.
type unit struct {
	client client.APIClient
	id     string
	name   string
}

func (u *unit) ID() string   { return u.id }
func (u *unit) Name() string { return u.name }

// CopyIn writes data as a file at path inside the container. The archive
// carries explicit directory headers so missing parents are created.
func (u *unit) CopyIn(ctx context.Context, path string, data []byte) error {
	archive, err := tarFile(path, data)
	if err != nil {
		return fmt.Errorf("docker: failed to build archive for %s: %w", path, err)
	}
	if err := u.client.CopyToContainer(ctx, u.id, "/", archive, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("docker: failed to copy %s into %s: %w", path, u.name, err)
	}
	return nil
}

// CopyOut returns a tar stream of the file or directory at path.
func (u *unit) CopyOut(ctx context.Context, path string) (io.ReadCloser, error) {
	reader, _, err := u.client.CopyFromContainer(ctx, u.id, path)
	if err != nil {
		return nil, fmt.Errorf("docker: failed to copy %s from %s: %w", path, u.name, err)
	}
	return reader, nil
}

// PathExists stats the path inside the container without reading it.
func (u *unit) PathExists(ctx context.Context, path string) (bool, error) {
	_, err := u.client.ContainerStatPath(ctx, u.id, path)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("docker: failed to stat %s in %s: %w", path, u.name, err)
	}
	return true, nil
}

// Exec runs a command inside the running container and captures its output.
func (u *unit) Exec(ctx context.Context, cmd []string) (*runtime.ExecResult, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("docker: command is required")
	}

	created, err := u.client.ContainerExecCreate(ctx, u.id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: failed to create exec in %s: %w", u.name, err)
	}

	attach, err := u.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: failed to attach exec in %s: %w", u.name, err)
	}
	defer attach.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, attach.Reader); err != nil {
		return nil, fmt.Errorf("docker: failed to read exec output: %w", err)
	}

	inspect, err := u.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("docker: failed to inspect exec in %s: %w", u.name, err)
	}

	return &runtime.ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
	}, nil
}

// Logs captures the container's stdout and stderr as one text blob.
func (u *unit) Logs(ctx context.Context) (string, error) {
	logReader, err := u.client.ContainerLogs(ctx, u.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("docker: failed to read logs of %s: %w", u.name, err)
	}
	defer logReader.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, logReader); err != nil {
		return "", fmt.Errorf("docker: failed to demux logs of %s: %w", u.name, err)
	}
	return buf.String(), nil
}

// Wait blocks until the container's main process exits.
func (u *unit) Wait(ctx context.Context) (int64, error) {
	statusCh, errCh := u.client.ContainerWait(ctx, u.id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, fmt.Errorf("docker: error waiting for %s: %w", u.name, err)
	case status := <-statusCh:
		return status.StatusCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Stop requests the container to terminate.
func (u *unit) Stop(ctx context.Context) error {
	if err := u.client.ContainerStop(ctx, u.id, container.StopOptions{}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("docker: failed to stop %s: %w", u.name, err)
	}
	return nil
}

// Remove deletes the container, forcefully if still running.
func (u *unit) Remove(ctx context.Context) error {
	err := u.client.ContainerRemove(ctx, u.id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("docker: failed to remove %s: %w", u.name, err)
	}
	return nil
}
