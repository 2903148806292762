package identity

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"
)

// The node identity key sits at the BIP-44 path m/44'/8888'/0'/0/0.
// A dedicated hardened account keeps it disjoint from anything else
// derived from the same seed.
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeKlingnet is the Klingnet coin type (hardened).
	CoinTypeKlingnet = bip32.FirstHardenedChild + 8888

	// accountNodeKey is the hardened account index reserved for the peer
	// identity.
	accountNodeKey = bip32.FirstHardenedChild + 0
)

// HDKey wraps a BIP-32 extended key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey builds the derivation root from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveNodeKey derives the peer identity key at m/44'/8888'/0'/0/0.
func (k *HDKey) DeriveNodeKey() (*HDKey, error) {
	return k.DerivePath(PurposeBIP44, CoinTypeKlingnet, accountNodeKey, 0, 0)
}

// DeriveChild derives the child key at index. Add bip32.FirstHardenedChild
// to the index for hardened derivation.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath walks a sequence of child indices down from this key.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	key := k
	for _, idx := range indices {
		child, err := key.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		key = child
	}
	return key, nil
}

// PrivateKeyBytes returns the raw 32-byte private key, or nil for a
// public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// The bip32 library pads private keys to 33 bytes with a leading zero.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}
