package identity

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/klingnet-peering/pkg/netgroup"
)

// groupSaltContext keys the derivation of the netgroup salt from the seed.
const groupSaltContext = "/klingnet/peering/netgroup-salt/1.0.0"

// fileVersion is the current on-disk identity format.
const fileVersion = 1

// ErrPassphraseRequired is returned by Load when the identity file is
// encrypted and no passphrase was supplied.
var ErrPassphraseRequired = errors.New("identity file is encrypted and requires a passphrase")

// Identity is the node's long-lived identity material: the secp256k1 node
// key at m/44'/8888'/0'/0/0 and the netgroup salt, both derived from one
// seed.
type Identity struct {
	seed    []byte
	priv    *secp256k1.PrivateKey
	peerKey libp2pcrypto.PrivKey
	salt    [netgroup.SaltSize]byte
}

// Generate creates a fresh identity, returning the mnemonic the operator
// must back up to restore it.
func Generate() (*Identity, string, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, "", err
	}
	id, err := FromMnemonic(mnemonic)
	if err != nil {
		return nil, "", err
	}
	return id, mnemonic, nil
}

// FromMnemonic rebuilds an identity from a BIP-39 mnemonic backup.
func FromMnemonic(mnemonic string) (*Identity, error) {
	seed, err := SeedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return fromSeed(seed)
}

// fromSeed derives the node key and netgroup salt from a 64-byte seed.
func fromSeed(seed []byte) (*Identity, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	key, err := master.DeriveNodeKey()
	if err != nil {
		return nil, fmt.Errorf("derive node key: %w", err)
	}
	raw := key.PrivateKeyBytes()
	if raw == nil {
		return nil, fmt.Errorf("derived node key is not private")
	}

	peerKey, err := libp2pcrypto.UnmarshalSecp256k1PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("convert node key: %w", err)
	}

	id := &Identity{
		seed:    append([]byte(nil), seed...),
		priv:    secp256k1.PrivKeyFromBytes(raw),
		peerKey: peerKey,
	}
	blake3.DeriveKey(groupSaltContext, seed, id.salt[:])
	return id, nil
}

// PeerKey returns the identity in libp2p form for host construction.
func (id *Identity) PeerKey() libp2pcrypto.PrivKey {
	return id.peerKey
}

// GroupSalt returns the private salt for netgroup keying.
func (id *Identity) GroupSalt() [netgroup.SaltSize]byte {
	return id.salt
}

// PeerID returns the libp2p peer id this identity produces.
func (id *Identity) PeerID() (peer.ID, error) {
	return peer.IDFromPrivateKey(id.peerKey)
}

// PublicKeyHex returns the compressed secp256k1 public key as hex.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.priv.PubKey().SerializeCompressed())
}

// identityFile is the on-disk JSON format.
type identityFile struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Encrypted bool      `json:"encrypted"`
	Seed      []byte    `json:"seed"` // raw seed, or Encrypt output when Encrypted
}

// Save writes the identity to path. A non-empty passphrase encrypts the seed
// at rest with Argon2id + XChaCha20-Poly1305.
func (id *Identity) Save(path string, passphrase []byte, params EncryptionParams) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}

	seed := id.seed
	encrypted := false
	if len(passphrase) > 0 {
		enc, err := Encrypt(id.seed, passphrase, params)
		if err != nil {
			return fmt.Errorf("encrypt seed: %w", err)
		}
		seed = enc
		encrypted = true
	}

	f := identityFile{
		Version:   fileVersion,
		CreatedAt: time.Now().UTC(),
		Encrypted: encrypted,
		Seed:      seed,
	}
	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return nil
}

// Load reads an identity file, decrypting the seed when needed.
func Load(path string, passphrase []byte) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	var f identityFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse identity file: %w", err)
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("unsupported identity file version %d", f.Version)
	}

	seed := f.Seed
	if f.Encrypted {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		seed, err = Decrypt(f.Seed, passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlock identity: %w", err)
		}
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("identity seed is %d bytes, want %d", len(seed), SeedSize)
	}
	return fromSeed(seed)
}

// LoadOrCreate loads the identity at path, generating and saving a fresh one
// when the file does not exist. The returned mnemonic is non-empty only on
// creation; it must be shown to the operator exactly once.
func LoadOrCreate(path string, passphrase []byte, params EncryptionParams) (*Identity, string, error) {
	if _, err := os.Stat(path); err == nil {
		id, err := Load(path, passphrase)
		return id, "", err
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("stat identity file: %w", err)
	}

	id, mnemonic, err := Generate()
	if err != nil {
		return nil, "", err
	}
	if err := id.Save(path, passphrase, params); err != nil {
		return nil, "", err
	}
	return id, mnemonic, nil
}
