package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/dmitrijs2005/filekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations use timex.Duration so both "15m" and integer nanoseconds work.
// Absent fields leave the current Config value untouched.
type JsonConfig struct {
	EndpointAddrGRPC   *string         `json:"endpoint_addr_grpc"`
	MetricsAddr        *string         `json:"metrics_addr"`
	DatabaseDSN        *string         `json:"database_dsn"`
	SecretKey          *string         `json:"secret_key"`
	LogLevel           *string         `json:"log_level"`
	BlobBackend        *string         `json:"blob_backend"`
	S3RootUser         *string         `json:"s3_root_user"`
	S3RootPassword     *string         `json:"s3_root_password"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	MinioEndpoint      *string         `json:"minio_endpoint"`
	MinioUseSSL        *bool           `json:"minio_use_ssl"`
	FSBlobRoot         *string         `json:"fs_blob_root"`
	SpoolDir           *string         `json:"spool_dir"`
	HashAlgorithm      *string         `json:"hash_algorithm"`
	MaxUploadBytes     *int64          `json:"max_upload_bytes"`
	PresignTTL         *timex.Duration `json:"presign_ttl"`
	SearchableMetadata []string        `json:"searchable_metadata"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flag into config. Without the flag nothing happens. An
// unreadable file or invalid JSON panics: a broken config must stop startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.MinioEndpoint, c.MinioEndpoint)
	setString(&config.FSBlobRoot, c.FSBlobRoot)
	setString(&config.SpoolDir, c.SpoolDir)
	setString(&config.HashAlgorithm, c.HashAlgorithm)

	if c.MinioUseSSL != nil {
		config.MinioUseSSL = *c.MinioUseSSL
	}
	if c.MaxUploadBytes != nil {
		config.MaxUploadBytes = *c.MaxUploadBytes
	}
	if c.PresignTTL != nil {
		config.PresignTTL = c.PresignTTL.Duration
	}
	if len(c.SearchableMetadata) > 0 {
		config.SearchableMetadata = append([]string(nil), c.SearchableMetadata...)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
