package docker

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// tarFile creates a tar archive containing a single file at the given
// absolute path, with directory headers for every ancestor so extraction at
// "/" creates missing parents.
func tarFile(filePath string, data []byte) (io.Reader, error) {
	if !path.IsAbs(filePath) {
		return nil, fmt.Errorf("path must be absolute: %s", filePath)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	rel := strings.TrimPrefix(path.Clean(filePath), "/")
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		dir := strings.Join(parts[:i], "/") + "/"
		if err := tw.WriteHeader(&tar.Header{
			Name:     dir,
			Typeflag: tar.TypeDir,
			Mode:     0o755,
		}); err != nil {
			return nil, err
		}
	}

	if err := tw.WriteHeader(&tar.Header{
		Name: rel,
		Size: int64(len(data)),
		Mode: 0o644,
	}); err != nil {
		return nil, err
	}
	if _, err := tw.Write(data); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
