package pipeline

import "fmt"

// StartupError reports an execution unit that failed to start. Units already
// started for the same run are torn down before this error is returned.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("stage %q failed to start: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// InjectionError reports that the input payload could not be written into
// the first stage's input mount.
type InjectionError struct {
	Path string
	Err  error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("failed to inject input at %q: %v", e.Path, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }

// ExtractionError reports a declared artifact that is missing or unreadable
// despite a success signal. This inconsistency is always surfaced, never
// silently skipped.
type ExtractionError struct {
	Artifact string
	Stage    string
	Path     string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract artifact %q from stage %q at %q: %v", e.Artifact, e.Stage, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
