package beam

import (
	"context"

	"github.com/harborlabs/corebeacon/beam/ranking"
)

// NodeData is a single resolved trie-node: a content-addressed hash and the
// raw encoded node bytes returned for it.
type NodeData struct {
	Hash  [32]byte
	Bytes []byte
}

// Peer is a remote node the downloader can ask for state-trie data. It
// embeds ranking.Peer so any Peer can be handed straight to a
// ranking.Tracker for queen/knight/peasant bookkeeping.
type Peer interface {
	ranking.Peer
	GetNodeData(ctx context.Context, hashes [][32]byte) ([]NodeData, error)
}
