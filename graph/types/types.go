// Package types holds identifiers shared by the graph packages.
package types

import (
	"strconv"
)

// NodeID identifies a single node record inside a workflow document.
// ComfyUI serializes node identifiers as decimal strings.
type NodeID uint

func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id *NodeID) Parse(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*id = NodeID(v)
	return nil
}

// NodeClass is the operation type of a node ("KSampler", "CLIPTextEncode", ...).
// The set of valid classes is owned by the server's node-type registry and is
// not validated on the client.
type NodeClass string
