// Package hashutil implements the hashing and Merkle primitives that back
// every tree-hash and shuffle computation in the engine (spec.md §4.A). All
// hashing funnels through a single SHA-256 implementation so that swapping
// the backend (hardware-accelerated vs. pure Go) never changes results.
package hashutil

import (
	"encoding/binary"

	sha256 "github.com/minio/sha256-simd"
)

// Hash returns the SHA-256 digest of data, matching the teacher's
// shared/hashutil.Hash, which wraps the same minio/sha256-simd backend for
// its AVX-accelerated implementation on supported hardware.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HashConcat hashes the concatenation of the given byte slices without an
// intermediate allocation per slice, used throughout the shuffle (A) and
// epoch-seed derivations.
func HashConcat(parts ...[]byte) [32]byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return Hash(buf)
}

// Uint64ToBytes8LE encodes v as 8 little-endian bytes, the canonical
// encoding used throughout the spec for domain-separating hash inputs
// (pivot derivation, seed derivation, proposer sampling).
func Uint64ToBytes8LE(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// Uint32ToBytes4LE encodes v as 4 little-endian bytes, used for the
// `position div 256` term of the shuffle's source-hash input.
func Uint32ToBytes4LE(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// MerkleRootFromLeaves computes a binary Merkle root over leaves, padding
// with zero hashes up to the next power of two. This backs hash_tree_root
// for the vectors and lists in the beacon state (block/state root rings,
// randao mixes, slashings, validators, balances); full SSZ
// list/container merkleization is an external collaborator per spec.md §6
// and is intentionally not reproduced here.
func MerkleRootFromLeaves(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	size := 1
	for size < len(leaves) {
		size *= 2
	}
	layer := make([][32]byte, size)
	copy(layer, leaves)
	for size > 1 {
		next := make([][32]byte, size/2)
		for i := 0; i < size; i += 2 {
			next[i/2] = HashConcat(layer[i][:], layer[i+1][:])
		}
		layer = next
		size /= 2
	}
	return layer[0]
}

// VerifyMerkleBranch verifies a Merkle inclusion proof for leaf at the given
// generalized index depth, matching the teacher's shared/trieutil.VerifyMerkleBranch
// used by ProcessDeposit against the eth1 deposit tree.
func VerifyMerkleBranch(root [32]byte, leaf [32]byte, index int, branch [][]byte, depth uint64) bool {
	if uint64(len(branch)) != depth {
		return false
	}
	node := leaf
	for i := uint64(0); i < depth; i++ {
		var sibling [32]byte
		copy(sibling[:], branch[i])
		if (index>>i)&1 == 1 {
			node = HashConcat(sibling[:], node[:])
		} else {
			node = HashConcat(node[:], sibling[:])
		}
	}
	return node == root
}
