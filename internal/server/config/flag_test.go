package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-m", ":9100", "-d", "db", "-s", "secret", "-l", "warn", "-k", "filesystem",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-n", "minio:9000", "-f", "/blobs", "-w", "/spool", "-x", "blake2b", "-z", "1024", "-t", "5",
		}, expected: &Config{
			EndpointAddrGRPC: "127.0.0.1:9090",
			MetricsAddr:      ":9100",
			DatabaseDSN:      "db",
			SecretKey:        "secret",
			LogLevel:         "warn",
			BlobBackend:      BlobBackendFilesystem,
			S3RootUser:       "user",
			S3RootPassword:   "password",
			S3Bucket:         "bucket",
			S3Region:         "us-west-1",
			S3BaseEndpoint:   "http://endpoint",
			MinioEndpoint:    "minio:9000",
			FSBlobRoot:       "/blobs",
			SpoolDir:         "/spool",
			HashAlgorithm:    "blake2b",
			MaxUploadBytes:   1024,
			PresignTTL:       5 * time.Minute,
		}},
		{name: "config and env flags are ignored", args: []string{"cmd",
			"-c", "cfg.json", "-env", "x.env", "-s", "secret",
		}, expected: &Config{SecretKey: "secret"}},
		{name: "bad number panics", args: []string{"cmd", "-z", "lots"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
