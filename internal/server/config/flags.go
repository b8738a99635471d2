package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics/health bind address ("" disables)
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-l string   log level
//	-k string   blob backend (s3, minio, filesystem, memory)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-n string   minio endpoint (host:port)
//	-f string   filesystem blob root
//	-w string   spool directory
//	-x string   hash algorithm (sha256, blake2b)
//	-z int      max upload size, bytes
//	-t int      presigned URL validity, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with -c/-config and -env.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-d", "-s", "-l", "-k", "-u", "-p", "-b", "-g", "-e", "-n", "-f", "-w", "-x", "-z", "-t",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for metrics and health")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.BlobBackend, "k", config.BlobBackend, "blob backend")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.MinioEndpoint, "n", config.MinioEndpoint, "minio endpoint")

	fs.StringVar(&config.FSBlobRoot, "f", config.FSBlobRoot, "filesystem blob root")
	fs.StringVar(&config.SpoolDir, "w", config.SpoolDir, "spool directory")
	fs.StringVar(&config.HashAlgorithm, "x", config.HashAlgorithm, "hash algorithm")
	fs.Int64Var(&config.MaxUploadBytes, "z", config.MaxUploadBytes, "max upload size (bytes)")

	presignTTL := fs.Int("t", int(config.PresignTTL.Minutes()), "presigned URL validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PresignTTL = time.Duration(*presignTTL) * time.Minute
}
