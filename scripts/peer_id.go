// peer_id.go prints the libp2p peer ID and pubkey for a node identity file.
// Usage: go run scripts/peer_id.go <identity-file>
package main

import (
	"fmt"
	"os"

	"github.com/Klingon-tech/klingnet-peering/internal/identity"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: peer_id <identity-file>")
		os.Exit(1)
	}

	var passphrase []byte
	if p := os.Getenv("IDENTITY_PASSPHRASE"); p != "" {
		passphrase = []byte(p)
	}

	id, err := identity.Load(os.Args[1], passphrase)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	pid, err := id.PeerID()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("peer_id=%s\n", pid.String())
	fmt.Printf("pubkey=%s\n", id.PublicKeyHex())
}
