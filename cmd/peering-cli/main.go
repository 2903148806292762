// peering-cli is a command-line client for interacting with a peeringd node.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-peering/internal/rpc"
	"github.com/Klingon-tech/klingnet-peering/internal/rpcclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := ""
	testnet := false

	// Scan for --rpc and --testnet before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--testnet":
			testnet = true
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if rpcURL == "" {
		if testnet {
			rpcURL = "http://127.0.0.1:8645"
		} else {
			rpcURL = "http://127.0.0.1:8545"
		}
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "info":
		cmdInfo(client)
	case "peers":
		cmdPeers(client)
	case "identity":
		cmdIdentity(client)
	case "evictions":
		cmdEvictions(client, cmdArgs)
	case "prefer-evict":
		cmdPreferEvict(client, cmdArgs)
	case "protect":
		cmdProtect(client, cmdArgs)
	case "disconnect":
		cmdDisconnect(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: peering-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8545)
  --testnet           Use the testnet RPC port (8645) unless --rpc is given

Commands:
  info                            Show connection summary
  peers                           Show connected peers
  identity                        Show local node identity
  evictions [--limit <n>]         Show the eviction audit log
  prefer-evict --node <id> [--clear]
                                  Flag a peer as preferred for eviction
  protect --node <id> [--clear]   Exempt a peer from eviction (noban)
  disconnect --node <id>          Disconnect a peer
`)
}

// ── info ────────────────────────────────────────────────────────────────

func cmdInfo(client *rpcclient.Client) {
	var info rpc.NetInfoResult
	if err := client.Call("net_getInfo", nil, &info); err != nil {
		fatal("net_getInfo: %v", err)
	}

	fmt.Printf("Peers:       %d (inbound: %d, outbound: %d)\n",
		info.PeerCount, info.Inbound, info.Outbound)
	if info.MaxInbound > 0 {
		fmt.Printf("Inbound cap: %d\n", info.MaxInbound)
	} else {
		fmt.Printf("Inbound cap: unlimited\n")
	}
	fmt.Printf("Evictions:   %d\n", info.Evictions)

	if len(info.Networks) > 0 {
		names := make([]string, 0, len(info.Networks))
		for name := range info.Networks {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("Networks:")
		for _, name := range names {
			fmt.Printf("  %-12s %d\n", name, info.Networks[name])
		}
	}
}

// ── peers ───────────────────────────────────────────────────────────────

func cmdPeers(client *rpcclient.Client) {
	var peers rpc.PeerInfoResult
	if err := client.Call("net_getPeerInfo", nil, &peers); err != nil {
		fatal("net_getPeerInfo: %v", err)
	}

	fmt.Printf("Peers: %d\n", peers.Count)
	for _, p := range peers.Peers {
		fmt.Printf("  [%d] %s\n", p.NodeID, p.PeerID)
		fmt.Printf("      %s on %s, connected %s, ping %s%s\n",
			p.ConnType, p.Network, formatDuration(p.ConnectedSecs), formatPing(p.MinPingUsecs),
			peerFlags(p))
	}
}

// peerFlags renders operator-relevant state as a short suffix.
func peerFlags(p rpc.PeerEntry) string {
	var flags []string
	if !p.Handshaked {
		flags = append(flags, "no-handshake")
	}
	if p.PreferEvict {
		flags = append(flags, "prefer-evict")
	}
	if p.NoBan {
		flags = append(flags, "protected")
	}
	if p.IsLocal {
		flags = append(flags, "local")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ", ") + "]"
}

// ── identity ────────────────────────────────────────────────────────────

func cmdIdentity(client *rpcclient.Client) {
	var node rpc.NodeInfoResult
	if err := client.Call("net_getNodeInfo", nil, &node); err != nil {
		fatal("net_getNodeInfo: %v", err)
	}

	fmt.Printf("Node ID: %s\n", node.ID)
	if node.NetworkID != "" {
		fmt.Printf("Network: %s\n", node.NetworkID)
	}
	for _, a := range node.Addrs {
		fmt.Printf("  Listen: %s\n", a)
	}
}

// ── evictions ───────────────────────────────────────────────────────────

func cmdEvictions(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("evictions", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Max records to show (0 = all retained)")
	fs.Parse(args)

	var params interface{}
	if *limit > 0 {
		params = rpc.LimitParam{Limit: *limit}
	}

	var result rpc.EvictionLogResult
	if err := client.Call("net_getEvictionLog", params, &result); err != nil {
		fatal("net_getEvictionLog: %v", err)
	}

	fmt.Printf("Evictions: %d\n", result.Count)
	for _, e := range result.Evictions {
		when := time.Unix(e.EvictedAt, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("  #%d %s\n", e.Seq, when)
		fmt.Printf("      node %d (%s) on %s, connected %s, %d inbound at the time\n",
			e.NodeID, e.PeerID, e.Network, formatDuration(e.ConnectedSecs), e.Inbound)
	}
}

// ── peer flags ──────────────────────────────────────────────────────────

func cmdPreferEvict(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("prefer-evict", flag.ExitOnError)
	node := fs.Uint64("node", 0, "Node ID")
	clear := fs.Bool("clear", false, "Clear the flag instead of setting it")
	fs.Parse(args)

	if *node == 0 {
		fatal("Usage: peering-cli prefer-evict --node <id> [--clear]")
	}

	var result rpc.FlagResult
	params := rpc.FlagParam{NodeID: *node, Value: !*clear}
	if err := client.Call("net_setPreferEvict", params, &result); err != nil {
		fatal("net_setPreferEvict: %v", err)
	}

	fmt.Printf("Node %d prefer-evict: %v\n", result.NodeID, result.Value)
}

func cmdProtect(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("protect", flag.ExitOnError)
	node := fs.Uint64("node", 0, "Node ID")
	clear := fs.Bool("clear", false, "Clear the flag instead of setting it")
	fs.Parse(args)

	if *node == 0 {
		fatal("Usage: peering-cli protect --node <id> [--clear]")
	}

	var result rpc.FlagResult
	params := rpc.FlagParam{NodeID: *node, Value: !*clear}
	if err := client.Call("net_setNoBan", params, &result); err != nil {
		fatal("net_setNoBan: %v", err)
	}

	fmt.Printf("Node %d protected: %v\n", result.NodeID, result.Value)
}

// ── disconnect ──────────────────────────────────────────────────────────

func cmdDisconnect(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("disconnect", flag.ExitOnError)
	node := fs.Uint64("node", 0, "Node ID")
	fs.Parse(args)

	if *node == 0 {
		fatal("Usage: peering-cli disconnect --node <id>")
	}

	var result rpc.DisconnectResult
	if err := client.Call("net_disconnect", rpc.NodeIDParam{NodeID: *node}, &result); err != nil {
		fatal("net_disconnect: %v", err)
	}

	fmt.Printf("Disconnected node %d (%s)\n", result.NodeID, result.PeerID)
}

// ── formatting ──────────────────────────────────────────────────────────

func formatDuration(secs int64) string {
	d := time.Duration(secs) * time.Second
	if d < time.Minute {
		return d.String()
	}
	return d.Round(time.Second).String()
}

func formatPing(usecs int64) string {
	if usecs < 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1fms", float64(usecs)/1000)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
