// Package runtime defines the capability interface the orchestrator uses to
// drive opaque execution units. The orchestrator never talks to a container
// engine directly; it only sees Runtime and Unit, so it can be exercised
// against the in-memory implementation in runtime/fake.
package runtime

import (
	"context"
	"io"
)

// Mount describes a mount attached to a unit. Source is either a host path
// (bind mount) or a volume name, depending on Kind.
type Mount struct {
	Kind     MountKind
	Source   string
	Target   string
	ReadOnly bool
}

// MountKind discriminates between bind mounts and named volumes.
type MountKind int

const (
	MountBind MountKind = iota
	MountVolume
)

// StartSpec describes a unit to create and start.
type StartSpec struct {
	// Name is the unique unit name. Callers derive it from the run ID so
	// concurrent runs never collide.
	Name    string
	Image   string
	Command []string
	Env     map[string]string
	WorkDir string
	Mounts  []Mount
}

// ExecResult holds the output from a command executed inside a unit.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runtime creates execution units and the volumes they share.
type Runtime interface {
	// Start creates and starts a unit from the spec. The returned Unit is
	// running (or has run to completion) when Start returns without error.
	Start(ctx context.Context, spec StartSpec) (Unit, error)

	// CreateVolume provisions a named volume for units to share.
	CreateVolume(ctx context.Context, name string) error

	// RemoveVolume destroys a named volume. Removing a volume that does not
	// exist is not an error.
	RemoveVolume(ctx context.Context, name string) error

	// Close releases any resources held by the runtime itself.
	Close() error
}

// Unit is a single isolated execution unit (a container, in production).
type Unit interface {
	// ID returns the runtime-assigned identifier of the unit.
	ID() string

	// Name returns the caller-assigned unique name of the unit.
	Name() string

	// CopyIn writes data as a file at path inside the unit, creating parent
	// directories as needed.
	CopyIn(ctx context.Context, path string, data []byte) error

	// CopyOut returns a tar stream of the file or directory at path inside
	// the unit. The caller must close the reader.
	CopyOut(ctx context.Context, path string) (io.ReadCloser, error)

	// PathExists reports whether a file or directory exists at path inside
	// the unit. It is the completion-marker probe and must be cheap.
	PathExists(ctx context.Context, path string) (bool, error)

	// Exec runs a command inside the running unit and captures its output.
	Exec(ctx context.Context, cmd []string) (*ExecResult, error)

	// Logs returns the unit's combined stdout/stderr captured so far.
	Logs(ctx context.Context) (string, error)

	// Wait blocks until the unit's main process exits and returns its exit
	// code.
	Wait(ctx context.Context) (int64, error)

	// Stop requests the unit's main process to terminate.
	Stop(ctx context.Context) error

	// Remove deletes the unit, forcefully if it is still running. Removing
	// an already-removed unit is not an error.
	Remove(ctx context.Context) error
}
