package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags carries raw command-line values before they are merged into a
// Config by ApplyFlags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	DataDir string
	Config  string

	// P2P
	P2P        bool
	P2PPort    int
	Seeds      string
	MaxPeers   int
	MaxInbound int
	NoDiscover bool
	DHTServer  bool

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string

	// Identity
	IdentityFile      string
	IdentityEncrypted bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Bool flags record whether they were given at all, so an explicit
	// --rpc=false can override a config file that enables it.
	SetP2P               bool
	SetRPC               bool
	SetNoDiscover        bool
	SetIdentityEncrypted bool
	SetLogJSON           bool
}

// ParseFlags reads os.Args. It exits the process on parse errors.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("peeringd", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// P2P
	fs.BoolVar(&f.P2P, "p2p", true, "Enable P2P networking")
	fs.IntVar(&f.P2PPort, "p2p-port", 0, "P2P listen port")
	fs.StringVar(&f.Seeds, "seeds", "", "Seed nodes as comma-separated libp2p multiaddrs")
	fs.IntVar(&f.MaxPeers, "maxpeers", 0, "Maximum number of peers")
	fs.IntVar(&f.MaxInbound, "maxinbound", 0, "Inbound slot ceiling (0 = unlimited)")
	fs.BoolVar(&f.NoDiscover, "nodiscover", false, "Disable peer discovery")
	fs.BoolVar(&f.DHTServer, "dht-server", false, "Run DHT in server mode (for seed nodes)")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for RPC")

	// Identity
	fs.StringVar(&f.IdentityFile, "identity-file", "", "Node identity key file path")
	fs.BoolVar(&f.IdentityEncrypted, "identity-encrypted", false, "Encrypt the identity key (prompts for a passphrase)")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = printUsage

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if f.Testnet {
		f.Network = "testnet"
	}

	// One pass over the flags that were actually given marks the bool
	// overrides as set.
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "p2p":
			f.SetP2P = true
		case "rpc":
			f.SetRPC = true
		case "nodiscover":
			f.SetNoDiscover = true
		case "identity-encrypted":
			f.SetIdentityEncrypted = true
		case "log-json":
			f.SetLogJSON = true
		}
	})

	f.Args = fs.Args()

	// A bare positional argument stops flag parsing and leaves every later
	// flag unparsed. Reject that instead of silently ignoring flags.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (a positional argument stopped parsing)\n", arg)
			fmt.Fprintln(os.Stderr, "Hint: boolean flags take no value. Write --nodiscover, not --nodiscover true")
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags overlays command-line flags on top of cfg. String and int
// flags apply when non-zero; bool flags apply when given at all.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	applyP2PFlags(&cfg.P2P, f)
	applyRPCFlags(&cfg.RPC, f)
	applyIdentityFlags(&cfg.Identity, f)
	applyLogFlags(&cfg.Log, f)
}

func applyP2PFlags(p *P2PConfig, f *Flags) {
	if f.SetP2P {
		p.Enabled = f.P2P
	}
	if f.P2PPort != 0 {
		p.Port = f.P2PPort
	}
	if f.Seeds != "" {
		p.Seeds = parseStringList(f.Seeds)
	}
	if f.MaxPeers != 0 {
		p.MaxPeers = f.MaxPeers
	}
	if f.MaxInbound != 0 {
		p.MaxInbound = f.MaxInbound
	}
	if f.SetNoDiscover {
		p.NoDiscover = f.NoDiscover
	}
	if f.DHTServer {
		p.DHTServer = true
	}
}

func applyRPCFlags(r *RPCConfig, f *Flags) {
	if f.SetRPC {
		r.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		r.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		r.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		r.AllowedIPs = parseStringList(f.RPCAllowed)
	}
}

func applyIdentityFlags(id *IdentityConfig, f *Flags) {
	if f.IdentityFile != "" {
		id.File = f.IdentityFile
	}
	if f.SetIdentityEncrypted {
		id.Encrypted = f.IdentityEncrypted
	}
}

func applyLogFlags(l *LogConfig, f *Flags) {
	if f.LogLevel != "" {
		l.Level = f.LogLevel
	}
	if f.LogFile != "" {
		l.File = f.LogFile
	}
	if f.SetLogJSON {
		l.JSON = f.LogJSON
	}
}

func printUsage() {
	usage := `Klingnet Peering - connection management daemon

Usage:
  peeringd [options]
  peeringd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.klingnet-peering)
  --config, -c    Config file path (default: <datadir>/peering.conf)

P2P Options:
  --p2p           Enable P2P networking (default: true)
  --p2p-port      P2P listen port (mainnet: 30303, testnet: 30304)
  --seeds         Seed nodes as comma-separated libp2p multiaddrs
  --maxpeers      Maximum number of peers (default: 50)
  --maxinbound    Inbound slot ceiling; excess inbound connections evict the
                  least useful unprotected peer (default: 40, 0 = unlimited)
  --nodiscover    Disable peer discovery
  --dht-server    Run DHT in server mode (for seed nodes)

RPC Options:
  --rpc           Enable RPC server (default: true)
  --rpc-addr      RPC listen address (default: 127.0.0.1)
  --rpc-port      RPC port (mainnet: 8545, testnet: 8645)
  --rpc-allowed   Allowed IPs for RPC (comma-separated)

Identity Options:
  --identity-file       Node identity key file path
  --identity-encrypted  Encrypt the identity key (prompts for a passphrase)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  # Start mainnet node
  peeringd

  # Start testnet node
  peeringd --testnet

  # Cap inbound connections at 8 slots
  peeringd --maxinbound=8

  # Start with custom data directory
  peeringd --datadir=/path/to/data

Note:
  Connection budgets are node-operational settings; they can differ between
  nodes without affecting the network. Data directories are created
  automatically on first start.
`
	fmt.Print(usage)
}

// Load builds the effective configuration: network defaults first, then
// the config file, then command-line flags, each layer overriding the one
// before. Data directories are created along the way.
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("peeringd version 0.1.0")
		os.Exit(0)
	}

	network := Mainnet
	if strings.EqualFold(flags.Network, "testnet") {
		network = Testnet
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory tree and writes a default
// config file on first start. Idempotent.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.NetDataDir(), cfg.PeersDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
