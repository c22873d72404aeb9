// Package config defines the agent's configuration surface, decoded
// from JSON, filled in with ResolveDefaults, and validated with Validate,
// which — like the orchestration config it's modeled on — collects every
// problem found rather than failing on the first one so an operator can
// fix a broken config file in a single pass.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"time"
)

// Config is the full set of agent knobs: buffer sizing, network
// listeners, TLS, and the file/schema paths served alongside protocol
// responses.
type Config struct {
	BufferSize      int    `json:"bufferSize"`
	CheckpointFreq  uint64 `json:"checkpointFrequency"`
	AssetBufferSize int    `json:"maxAssets"`

	Port            int    `json:"port"`
	ServerIP        string `json:"serverIp"`
	Sender          string `json:"sender"`
	SchemaVersion   string `json:"schemaVersion"`
	AgentVersion    string `json:"version"`

	TLSCertFile string `json:"tlsCertificateChain"`
	TLSKeyFile  string `json:"tlsCertificatePassword"`
	TLSOnly     bool   `json:"tlsOnly"`

	AllowPut     bool     `json:"allowPut"`
	AllowPutFrom []string `json:"allowPutFrom"`

	DefaultInterval  time.Duration `json:"-"`
	DefaultHeartbeat time.Duration `json:"-"`
	IntervalMillis   int64         `json:"interval"`
	HeartbeatMillis  int64         `json:"heartbeat"`

	FilesPath string `json:"filesPath"`
	Stylesheet string `json:"stylesheet"`

	JSONVersion       int   `json:"jsonVersion"`
	Pretty            bool  `json:"pretty"`
	MaxCachedFileSize int64 `json:"maxCachedFileSize"`
	MinCompressedSize int64 `json:"minCompressFileSize"`

	// resolvedPutIPs holds the numeric addresses AllowPutFrom hostnames
	// resolved to at load time, used instead of a DNS lookup per request.
	resolvedPutIPs map[string]struct{}
}

// Load reads and decodes a JSON config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.ResolveDefaults()
	return &c, nil
}

// ResolveDefaults fills in every field left at its zero value with the
// agent's standard default, and resolves AllowPutFrom hostnames to IPs.
func (c *Config) ResolveDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 131072
	}
	if c.CheckpointFreq <= 0 {
		c.CheckpointFreq = 200
	}
	if c.AssetBufferSize <= 0 {
		c.AssetBufferSize = 1024
	}
	if c.Port <= 0 {
		c.Port = 5000
	}
	if c.Sender == "" {
		hostname, err := os.Hostname()
		if err == nil {
			c.Sender = hostname
		} else {
			c.Sender = "localhost"
		}
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = "2.3"
	}
	if c.AgentVersion == "" {
		c.AgentVersion = "1.0.0"
	}
	if c.IntervalMillis <= 0 {
		c.IntervalMillis = 500
	}
	if c.HeartbeatMillis <= 0 {
		c.HeartbeatMillis = 10000
	}
	if c.JSONVersion != 2 {
		c.JSONVersion = 1
	}
	if c.MaxCachedFileSize <= 0 {
		c.MaxCachedFileSize = 20 * 1024
	}
	if c.MinCompressedSize <= 0 {
		c.MinCompressedSize = 1024
	}
	c.DefaultInterval = time.Duration(c.IntervalMillis) * time.Millisecond
	c.DefaultHeartbeat = time.Duration(c.HeartbeatMillis) * time.Millisecond

	c.resolvedPutIPs = make(map[string]struct{}, len(c.AllowPutFrom))
	for _, host := range c.AllowPutFrom {
		if ip := net.ParseIP(host); ip != nil {
			c.resolvedPutIPs[ip.String()] = struct{}{}
			continue
		}
		ips, err := net.LookupIP(host)
		if err != nil {
			continue
		}
		for _, ip := range ips {
			c.resolvedPutIPs[ip.String()] = struct{}{}
		}
	}
}

// PutAllowedFrom reports whether a PUT from remoteIP is allowed: either
// AllowPut is globally enabled, or remoteIP resolved from one of
// AllowPutFrom's configured hostnames.
func (c *Config) PutAllowedFrom(remoteIP string) bool {
	if c.AllowPut {
		return true
	}
	if len(c.resolvedPutIPs) == 0 {
		return false
	}
	_, ok := c.resolvedPutIPs[remoteIP]
	return ok
}

// Validate checks the resolved config for structural problems, returning
// every issue found.
func (c *Config) Validate() []string {
	var problems []string

	if c.BufferSize <= 0 {
		problems = append(problems, "bufferSize must be positive")
	}
	if c.AssetBufferSize <= 0 {
		problems = append(problems, "maxAssets must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, "port must be between 1 and 65535")
	}
	if c.TLSOnly && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		problems = append(problems, "tlsOnly requires both tlsCertificateChain and tlsCertificatePassword")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		problems = append(problems, "tlsCertificateChain and tlsCertificatePassword must be set together")
	}
	if c.IntervalMillis <= 0 {
		problems = append(problems, "interval must be positive")
	}
	if c.HeartbeatMillis <= 0 {
		problems = append(problems, "heartbeat must be positive")
	}
	if !validSchemaVersion(c.SchemaVersion) {
		problems = append(problems, fmt.Sprintf("schemaVersion %q is not recognized", c.SchemaVersion))
	}

	sort.Strings(problems)
	return problems
}

func validSchemaVersion(v string) bool {
	switch v {
	case "1.1", "1.2", "1.3", "1.4", "1.5", "1.6", "1.7", "1.8", "2.0", "2.1", "2.2", "2.3", "2.4":
		return true
	default:
		return false
	}
}
