package docker

import (
	"archive/tar"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarFile_IncludesAncestorDirectories(t *testing.T) {
	t.Parallel()

	r, err := tarFile("/shared/input/urls.txt", []byte("https://example.com\n"))
	require.NoError(t, err)

	type entry struct {
		name string
		dir  bool
		body string
	}
	var entries []entry

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries = append(entries, entry{
			name: hdr.Name,
			dir:  hdr.Typeflag == tar.TypeDir,
			body: string(body),
		})
	}

	require.Len(t, entries, 3)
	assert.Equal(t, entry{name: "shared/", dir: true}, entries[0])
	assert.Equal(t, entry{name: "shared/input/", dir: true}, entries[1])
	assert.Equal(t, entry{name: "shared/input/urls.txt", body: "https://example.com\n"}, entries[2])
}

func TestTarFile_RootLevelFileHasNoDirectoryHeaders(t *testing.T) {
	t.Parallel()

	r, err := tarFile("/input.txt", []byte("x"))
	require.NoError(t, err)

	tr := tar.NewReader(r)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "input.txt", hdr.Name)

	_, err = tr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestTarFile_RejectsRelativePaths(t *testing.T) {
	t.Parallel()

	_, err := tarFile("relative/path.txt", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be absolute")
}
