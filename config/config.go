// Package config handles application configuration.
//
// All settings here are node-operational: they can vary between nodes
// without breaking the protocol. Connection budgets in particular live
// here and are enforced at the networking edge, never inside the
// eviction logic itself.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Runtime settings
// =============================================================================

// Config is the effective per-node configuration after defaults, config
// file, and flags have been layered.
type Config struct {
	Network NetworkType
	DataDir string

	P2P      P2PConfig
	RPC      RPCConfig
	Identity IdentityConfig
	Log      LogConfig
}

// P2PConfig holds the networking settings, including the connection
// budgets the admission policy enforces.
type P2PConfig struct {
	Enabled    bool
	ListenAddr string
	Port       int
	Seeds      []string
	MaxPeers   int
	MaxInbound int  // Inbound slot ceiling (0 = unlimited).
	NoDiscover bool
	DHTServer  bool // Run DHT in server mode (for seed nodes).
}

// RPCConfig holds JSON-RPC server settings.
type RPCConfig struct {
	Enabled    bool
	Addr       string
	Port       int
	AllowedIPs []string // Remote addresses allowed to call the API.
}

// IdentityConfig holds node identity key settings.
type IdentityConfig struct {
	File      string // Key file path (default: <netdir>/identity.key).
	Encrypted bool   // Prompt for a passphrase on startup.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	File  string
	JSON  bool
}

// NetworkID returns the wire-level network identifier peers must agree on.
func (c *Config) NetworkID() string {
	return "klingnet-" + string(c.Network)
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-peering
//	macOS:   ~/Library/Application Support/KlingnetPeering
//	Windows: %APPDATA%\KlingnetPeering
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-peering"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetPeering")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetPeering")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetPeering")
	default:
		return filepath.Join(home, ".klingnet-peering")
	}
}

// NetDataDir returns the network-specific data directory.
func (c *Config) NetDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// PeersDir returns the peer database directory (seen-peer records and the
// eviction history).
func (c *Config) PeersDir() string {
	return filepath.Join(c.NetDataDir(), "peers")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// IdentityFile returns the identity key file path, applying the default
// when none is configured.
func (c *Config) IdentityFile() string {
	if c.Identity.File != "" {
		return c.Identity.File
	}
	return filepath.Join(c.NetDataDir(), "identity.key")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "peering.conf")
}
