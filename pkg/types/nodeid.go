// Package types defines core primitive types shared across the peering stack.
package types

import "strconv"

// NodeID is an opaque handle correlating an eviction candidate back to a live
// connection. IDs are assigned by the peer table in accepting order and are
// never reused while the connection is open.
type NodeID int64

// String returns the decimal representation of the node ID.
func (id NodeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
