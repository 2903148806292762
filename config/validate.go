package config

import (
	"errors"
	"fmt"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network %q is neither %q nor %q", cfg.Network, Mainnet, Testnet)
	}

	if err := checkPort("p2p.port", cfg.P2P.Port); err != nil {
		return err
	}
	if err := checkPort("rpc.port", cfg.RPC.Port); err != nil {
		return err
	}

	if cfg.P2P.MaxPeers < 0 {
		return errors.New("p2p.maxpeers must be >= 0")
	}
	if cfg.P2P.MaxInbound < 0 {
		return errors.New("p2p.maxinbound must be >= 0")
	}
	// MaxPeers == 0 means unlimited, so any inbound ceiling fits under it.
	if cfg.P2P.MaxPeers > 0 && cfg.P2P.MaxInbound > cfg.P2P.MaxPeers {
		return fmt.Errorf("p2p.maxinbound (%d) exceeds p2p.maxpeers (%d)", cfg.P2P.MaxInbound, cfg.P2P.MaxPeers)
	}
	return nil
}

func checkPort(field string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s %d is outside [0, 65535]", field, port)
	}
	return nil
}
