package beam

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/harborlabs/corebeacon/hashutil"
)

// This file implements just enough of a hexary Merkle-Patricia trie to
// support the beam downloader's read path: walking from a known state
// root toward a single key, fetching whichever node the walk needs next
// that the local store does not already have. It has no insert path and
// no RLP compatibility with a live execution client's trie encoding —
// the on-the-wire account/storage trie format is an external
// collaborator (spec.md §1), same as block/header serialization framing.
// What it reproduces faithfully is trinity's beam-sync walk shape:
// probe, hit a missing node, ensure exactly that node, retry, continue.

type trieNodeKind uint8

const (
	trieLeaf trieNodeKind = iota
	trieExtension
	trieBranch
)

// TrieNode is the unit the downloader resolves by hash. Leaf and
// extension nodes carry a nibble path; branch nodes fan out over the
// next nibble of the key, with an optional value for a key that
// terminates exactly at the branch.
type TrieNode struct {
	Kind     trieNodeKind
	Path     []byte
	Value    []byte
	Children [16][32]byte
	Child    [32]byte
}

// NewLeaf constructs a leaf node terminating the walk with value.
func NewLeaf(path []byte, value []byte) *TrieNode {
	return &TrieNode{Kind: trieLeaf, Path: path, Value: value}
}

// NewExtension constructs a node that shares path with the key and
// continues the walk at child.
func NewExtension(path []byte, child [32]byte) *TrieNode {
	return &TrieNode{Kind: trieExtension, Path: path, Child: child}
}

// NewBranch constructs a 16-way fan-out node, optionally terminating the
// walk with value when the key ends exactly at this node.
func NewBranch(children [16][32]byte, value []byte) *TrieNode {
	return &TrieNode{Kind: trieBranch, Children: children, Value: value}
}

// Encode serializes n into the byte form stored under its hash.
func (n *TrieNode) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(n.Kind))
	writeBytes(&buf, n.Path)
	writeBytes(&buf, n.Value)
	for _, c := range n.Children {
		buf.Write(c[:])
	}
	buf.Write(n.Child[:])
	return buf.Bytes()
}

// Hash returns the content address n is stored and fetched under.
func (n *TrieNode) Hash() [32]byte {
	return hashutil.Hash(n.Encode())
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

// DecodeTrieNode parses the byte form Encode produces.
func DecodeTrieNode(raw []byte) (*TrieNode, error) {
	r := bytes.NewReader(raw)
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "beam: read trie node kind")
	}
	n := &TrieNode{Kind: trieNodeKind(kindByte)}
	if n.Path, err = readBytes(r); err != nil {
		return nil, errors.Wrap(err, "beam: read trie node path")
	}
	if n.Value, err = readBytes(r); err != nil {
		return nil, errors.Wrap(err, "beam: read trie node value")
	}
	for i := range n.Children {
		if _, err := r.Read(n.Children[i][:]); err != nil {
			return nil, errors.Wrap(err, "beam: read trie node children")
		}
	}
	if _, err := r.Read(n.Child[:]); err != nil {
		return nil, errors.Wrap(err, "beam: read trie node child")
	}
	return n, nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// nibbles expands key into its sequence of 4-bit nibbles, most
// significant first, the unit a hexary trie branches on.
func nibbles(key []byte) []byte {
	out := make([]byte, 0, len(key)*2)
	for _, b := range key {
		out = append(out, b>>4, b&0x0f)
	}
	return out
}

var errTrieKeyNotFound = errors.New("beam: key not present in trie")

// maxTrieNodeFetchRetries bounds how many times probeTrie will re-issue
// EnsureNodesPresent for the same missing node before giving up, matching
// the retry ceiling of the reference beam-sync implementation.
const maxTrieNodeFetchRetries = 64

// probeTrie walks from root toward key, fetching on demand whatever node
// the local store doesn't already have. It returns the leaf value found
// (or errTrieKeyNotFound if the walk terminates before consuming key) and
// the number of nodes that had to be downloaded to complete the walk.
func probeTrie(ctx context.Context, d *Downloader, root [32]byte, key []byte) ([]byte, int, error) {
	current := root
	remaining := nibbles(key)
	downloads := 0

	for {
		raw, ok := d.store.Get(current)
		if !ok {
			if err := d.ensureTrieNode(ctx, current); err != nil {
				return nil, downloads, err
			}
			downloads++
			raw, ok = d.store.Get(current)
			if !ok {
				return nil, downloads, errors.Errorf("beam: node %x still missing after fetch", current)
			}
		}

		node, err := DecodeTrieNode(raw)
		if err != nil {
			return nil, downloads, errors.Wrap(err, "beam: decode trie node")
		}

		switch node.Kind {
		case trieLeaf:
			if bytes.Equal(node.Path, remaining) {
				return node.Value, downloads, nil
			}
			return nil, downloads, errTrieKeyNotFound

		case trieExtension:
			if len(remaining) < len(node.Path) || !bytes.Equal(node.Path, remaining[:len(node.Path)]) {
				return nil, downloads, errTrieKeyNotFound
			}
			remaining = remaining[len(node.Path):]
			current = node.Child

		case trieBranch:
			if len(remaining) == 0 {
				if node.Value == nil {
					return nil, downloads, errTrieKeyNotFound
				}
				return node.Value, downloads, nil
			}
			idx := remaining[0]
			child := node.Children[idx]
			if child == ([32]byte{}) {
				return nil, downloads, errTrieKeyNotFound
			}
			current = child
			remaining = remaining[1:]

		default:
			return nil, downloads, errors.Errorf("beam: unknown trie node kind %d", node.Kind)
		}
	}
}

// ensureTrieNode fetches a single missing trie node via the urgent
// pipeline, retrying up to maxTrieNodeFetchRetries times on transient
// failure (a peer timeout or cancellation that doesn't doom the whole
// probe).
func (d *Downloader) ensureTrieNode(ctx context.Context, hash [32]byte) error {
	var lastErr error
	for attempt := 0; attempt < maxTrieNodeFetchRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, d.urgentTimeout)
		err := d.EnsureNodesPresent(attemptCtx, [][32]byte{hash})
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return errors.Wrapf(lastErr, "beam: missing trie node %x after %d retries", hash, maxTrieNodeFetchRetries)
}
