// Package fake provides an in-memory runtime implementation so the
// orchestrator and CLI can be tested without a container engine.
package fake

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vk/convoy/internal/runtime"
)

// Runtime is an in-memory implementation of runtime.Runtime. The zero value
// is not usable; create instances with New.
type Runtime struct {
	mu sync.Mutex

	units        map[string]*Unit
	startedOrder []string
	volumes      map[string]bool
	startErrs    map[string]error
	onStart      func(*Unit)

	volumesCreated int
	volumesRemoved int
	closed         bool
}

// New creates an empty fake runtime.
func New() *Runtime {
	return &Runtime{
		units:     make(map[string]*Unit),
		volumes:   make(map[string]bool),
		startErrs: make(map[string]error),
	}
}

// FailStart makes Start return err for any spec whose name contains the
// given substring. Used to simulate StartupError paths.
func (r *Runtime) FailStart(nameSubstring string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErrs[nameSubstring] = err
}

// OnStart registers a hook invoked with every unit as it starts, before
// Start returns. Tests use it to seed exit codes, files, or logs.
func (r *Runtime) OnStart(fn func(*Unit)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = fn
}

// Start creates an in-memory unit.
func (r *Runtime) Start(_ context.Context, spec runtime.StartSpec) (runtime.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for substr, err := range r.startErrs {
		if strings.Contains(spec.Name, substr) {
			return nil, err
		}
	}

	u := &Unit{
		id:    fmt.Sprintf("fake-%d", len(r.units)+1),
		name:  spec.Name,
		spec:  spec,
		files: make(map[string][]byte),
	}
	r.units[spec.Name] = u
	r.startedOrder = append(r.startedOrder, spec.Name)
	if r.onStart != nil {
		r.onStart(u)
	}
	return u, nil
}

// CreateVolume records the volume.
func (r *Runtime) CreateVolume(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volumes[name] = true
	r.volumesCreated++
	return nil
}

// RemoveVolume forgets the volume.
func (r *Runtime) RemoveVolume(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.volumes, name)
	r.volumesRemoved++
	return nil
}

// Close marks the runtime closed.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// UnitByName returns the unit started under the given name, or nil.
func (r *Runtime) UnitByName(name string) *Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.units[name]
}

// StartedOrder returns unit names in the order they were started.
func (r *Runtime) StartedOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.startedOrder))
	copy(out, r.startedOrder)
	return out
}

// VolumeCounts returns how many volumes were created and removed.
func (r *Runtime) VolumeCounts() (created, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volumesCreated, r.volumesRemoved
}

// Unit is an in-memory execution unit with its own file tree.
type Unit struct {
	mu sync.Mutex

	id   string
	name string
	spec runtime.StartSpec

	files     map[string][]byte
	logs      string
	exitCode  int64
	copyInErr error

	stopCalls   int
	removeCalls int
}

func (u *Unit) ID() string   { return u.id }
func (u *Unit) Name() string { return u.name }

// Spec returns the StartSpec the unit was created from.
func (u *Unit) Spec() runtime.StartSpec {
	return u.spec
}

// SeedFile places a file into the unit's tree. Tests use this to simulate a
// stage producing output or a completion marker.
func (u *Unit) SeedFile(p string, data []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.files[path.Clean(p)] = data
}

// SeedLogs sets the text returned by Logs.
func (u *Unit) SeedLogs(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logs = text
}

// StopCalls reports how many times Stop was invoked.
func (u *Unit) StopCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stopCalls
}

// RemoveCalls reports how many times Remove was invoked.
func (u *Unit) RemoveCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.removeCalls
}

// File returns the content of a seeded or copied-in file.
func (u *Unit) File(p string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.files[path.Clean(p)]
	return data, ok
}

// FailCopyIn makes subsequent CopyIn calls return err.
func (u *Unit) FailCopyIn(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.copyInErr = err
}

// CopyIn stores the file in the unit's tree.
func (u *Unit) CopyIn(_ context.Context, p string, data []byte) error {
	u.mu.Lock()
	if err := u.copyInErr; err != nil {
		u.mu.Unlock()
		return err
	}
	u.mu.Unlock()
	u.SeedFile(p, data)
	return nil
}

// CopyOut returns a tar stream of the file or directory at p, with the
// resource's base name as the archive root, mirroring docker cp semantics.
func (u *Unit) CopyOut(_ context.Context, p string) (io.ReadCloser, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	p = path.Clean(p)
	root := path.Base(p)

	var names []string
	if _, ok := u.files[p]; ok {
		names = []string{p}
	} else {
		for name := range u.files {
			if strings.HasPrefix(name, p+"/") {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("fake: no such path %s in %s", p, u.name)
		}
		sort.Strings(names)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range names {
		entry := root
		if name != p {
			entry = root + "/" + strings.TrimPrefix(name, p+"/")
		}
		data := u.files[name]
		if err := tw.WriteHeader(&tar.Header{Name: entry, Size: int64(len(data)), Mode: 0o644}); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

// PathExists reports whether p names a seeded file or a directory prefix.
func (u *Unit) PathExists(_ context.Context, p string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	p = path.Clean(p)
	if _, ok := u.files[p]; ok {
		return true, nil
	}
	for name := range u.files {
		if strings.HasPrefix(name, p+"/") {
			return true, nil
		}
	}
	return false, nil
}

// Exec pretends the command succeeded.
func (u *Unit) Exec(_ context.Context, cmd []string) (*runtime.ExecResult, error) {
	return &runtime.ExecResult{ExitCode: 0, Stdout: strings.Join(cmd, " ")}, nil
}

// Logs returns the seeded log text.
func (u *Unit) Logs(_ context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.logs, nil
}

// SeedExitCode sets the code returned by Wait.
func (u *Unit) SeedExitCode(code int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.exitCode = code
}

// Wait returns the seeded exit code immediately.
func (u *Unit) Wait(_ context.Context) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.exitCode, nil
}

// Stop records the call.
func (u *Unit) Stop(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stopCalls++
	return nil
}

// Remove records the call.
func (u *Unit) Remove(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.removeCalls++
	return nil
}
