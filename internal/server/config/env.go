package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "FILEKEEPER_"

// parseEnv overlays FILEKEEPER_* environment variables onto config. When
// -env names a dotenv file it is loaded first; otherwise a ./.env file is
// loaded if present. Variables already set in the process environment win
// over dotenv values. Malformed numeric values panic.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.MetricsAddr, "METRICS_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.BlobBackend, "BLOB_BACKEND")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&config.MinioEndpoint, "MINIO_ENDPOINT")
	envString(&config.FSBlobRoot, "FS_BLOB_ROOT")
	envString(&config.SpoolDir, "SPOOL_DIR")
	envString(&config.HashAlgorithm, "HASH_ALGORITHM")

	if v, ok := lookup("MINIO_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		config.MinioUseSSL = b
	}
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		config.MaxUploadBytes = n
	}
	if v, ok := lookup("PRESIGN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		config.PresignTTL = d
	}
	if v, ok := lookup("SEARCHABLE_METADATA"); ok {
		config.SearchableMetadata = splitList(v)
	}
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
