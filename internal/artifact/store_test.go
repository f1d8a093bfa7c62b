package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_PutWritesFiles(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")
	store := NewDir(root)

	loc, err := store.Put(context.Background(), "final_report.json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "final_report.json"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestDir_PutCreatesNestedDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewDir(root)

	loc, err := store.Put(context.Background(), "status/fetch_complete.json", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "status", "fetch_complete.json"), loc)

	_, err = os.Stat(loc)
	assert.NoError(t, err)
}

func TestS3Config_Validate(t *testing.T) {
	t.Parallel()

	valid := S3Config{
		Endpoint:  "minio.local:9000",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "artifacts",
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*S3Config)
		want   string
	}{
		{"missing endpoint", func(c *S3Config) { c.Endpoint = "" }, "endpoint is required"},
		{"endpoint with scheme", func(c *S3Config) { c.Endpoint = "https://minio.local:9000" }, "must not include scheme"},
		{"missing access key", func(c *S3Config) { c.AccessKey = "" }, "access key"},
		{"missing secret key", func(c *S3Config) { c.SecretKey = "" }, "secret key"},
		{"missing bucket", func(c *S3Config) { c.Bucket = "" }, "bucket"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestS3ConfigFromEnv(t *testing.T) {
	t.Setenv("CONVOY_S3_ENDPOINT", "minio.local:9000")
	t.Setenv("CONVOY_S3_ACCESS_KEY", "ak")
	t.Setenv("CONVOY_S3_SECRET_KEY", "sk")
	t.Setenv("CONVOY_S3_BUCKET", "artifacts")
	t.Setenv("CONVOY_S3_USE_SSL", "true")

	cfg, err := S3ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", cfg.Endpoint)
	assert.Equal(t, "us-east-1", cfg.Region, "region defaults")
	assert.True(t, cfg.UseSSL)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/json", contentType("final_report.json"))
	assert.Equal(t, "application/octet-stream", contentType("blob.bin"))
}
