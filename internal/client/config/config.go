package config

import "time"

// Config holds runtime settings for the fkctl CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the filekeeper gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - UserID: default identity used by login ("" means prompt).
//   - TokenTTL: lifetime of the access tokens minted at login.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	UserID              string
	TokenTTL            time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.UserID = ""
	c.TokenTTL = time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
