// Package config loads runtime configuration for the fkctl CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the filekeeper gRPC endpoint
//	-i int      online status check interval (seconds)
//	-u string   user id to log in as
//	-t int      access token lifetime (minutes)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "user_id": "alice",
//	  "token_ttl": "1h"
//	}
//
// The signing secret is never read from configuration; login prompts for it.
package config
