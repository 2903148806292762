package config

// Default ports. Testnet uses its own pair so a mainnet and a testnet
// daemon can share a host.
const (
	DefaultP2PPort = 30303
	DefaultRPCPort = 8545

	TestnetP2PPort = 30304
	TestnetRPCPort = 8645
)

// Connection budget defaults. MaxInbound stays below MaxPeers so outbound
// dialing always has slots left after inbound fills up.
const (
	DefaultMaxPeers   = 50
	DefaultMaxInbound = 40
)

// Default returns the stock configuration for the given network.
func Default(network NetworkType) *Config {
	cfg := &Config{
		Network: network,
		DataDir: DefaultDataDir(),
		P2P: P2PConfig{
			Enabled:    true,
			ListenAddr: "0.0.0.0",
			Port:       DefaultP2PPort,
			MaxPeers:   DefaultMaxPeers,
			MaxInbound: DefaultMaxInbound,
			// Seeds are multiaddr strings, e.g.
			//   /ip4/203.0.113.1/tcp/30303/p2p/12D3KooW...
			//   /dns4/seed1.klingnet.io/tcp/30303/p2p/12D3KooW...
			// Seed operators should run with --dht-server.
			Seeds: []string{},
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       DefaultRPCPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if network == Testnet {
		cfg.P2P.Port = TestnetP2PPort
		cfg.RPC.Port = TestnetRPCPort
	}
	return cfg
}
