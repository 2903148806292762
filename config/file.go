package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile reads a key = value config file into a map. A missing file is
// not an error and yields an empty map. Blank lines and lines starting
// with # are skipped; values may be single or double quoted.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer file.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected key = value, got %q", lineNum, line)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return values, scanner.Err()
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ApplyFileConfig applies loaded file values on top of cfg.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets one config field by its file key. Unknown keys are
// ignored so old daemons can read configs written by newer ones.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// P2P
	case "p2p.enabled", "p2p":
		cfg.P2P.Enabled = parseBool(value)
	case "p2p.listen":
		cfg.P2P.ListenAddr = value
	case "p2p.port":
		return setInt(&cfg.P2P.Port, value)
	case "p2p.seeds":
		cfg.P2P.Seeds = parseStringList(value)
	case "p2p.maxpeers":
		return setInt(&cfg.P2P.MaxPeers, value)
	case "p2p.maxinbound":
		return setInt(&cfg.P2P.MaxInbound, value)
	case "p2p.nodiscover":
		cfg.P2P.NoDiscover = parseBool(value)
	case "p2p.dhtserver":
		cfg.P2P.DHTServer = parseBool(value)

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		return setInt(&cfg.RPC.Port, value)
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)

	// Identity
	case "identity.file":
		cfg.Identity.File = value
	case "identity.encrypted":
		cfg.Identity.Encrypted = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// parseBool treats true/1/yes/on (any case) as true.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseStringList splits a comma-separated list, trimming whitespace and
// dropping empty items.
func parseStringList(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// WriteDefaultConfig writes an annotated config file with stock settings
// for the given network.
func WriteDefaultConfig(path string, network NetworkType) error {
	p2pPort, rpcPort := DefaultP2PPort, DefaultRPCPort
	if network == Testnet {
		p2pPort, rpcPort = TestnetP2PPort, TestnetRPCPort
	}

	content := fmt.Sprintf(`# Klingnet Peering Daemon Configuration

# Network: mainnet or testnet
network = %s

# Data directory (default: ~/.klingnet-peering)
# datadir = ~/.klingnet-peering

# ============================================================================
# P2P Network
# ============================================================================

p2p.enabled = true
p2p.listen = 0.0.0.0
p2p.port = %d
p2p.maxpeers = %d

# Inbound slot ceiling. When full, a new inbound connection is admitted only
# by evicting the least useful unprotected peer (0 = unlimited).
p2p.maxinbound = %d

# Seed nodes (comma-separated libp2p multiaddrs)
# p2p.seeds = /dns4/seed1.klingnet.io/tcp/30303/p2p/12D3KooW...

# Disable peer discovery (for private networks)
# p2p.nodiscover = false

# Run DHT in server mode (for seed nodes)
# p2p.dhtserver = false

# ============================================================================
# RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = %d
rpc.allowed = 127.0.0.1

# ============================================================================
# Identity
# ============================================================================

# Node identity key file (default: <datadir>/<network>/identity.key)
# identity.file =

# Encrypt the identity key with a passphrase prompted on startup
identity.encrypted = false

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`, network, p2pPort, DefaultMaxPeers, DefaultMaxInbound, rpcPort)

	return os.WriteFile(path, []byte(content), 0644)
}
