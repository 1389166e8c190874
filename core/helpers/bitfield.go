package helpers

import (
	"github.com/prysmaticlabs/go-bitfield"
)

// VerifyBitfieldLength checks that an aggregation bitlist's declared length
// matches the committee it aggregates over, the same guard the teacher
// applies before any bitwise attestation-participation accounting.
func VerifyBitfieldLength(bits bitfield.Bitlist, committeeSize uint64) bool {
	return uint64(bits.Len()) == committeeSize
}

// AttestingIndices returns the committee member indices set in bits, in
// committee order. committee is assumed ordered the same way the
// aggregation bits were populated (ComputeCommittee's output).
func AttestingIndices(bits bitfield.Bitlist, committee []uint64) []uint64 {
	indices := make([]uint64, 0, len(committee))
	for i, validatorIndex := range committee {
		if bits.BitAt(uint64(i)) {
			indices = append(indices, validatorIndex)
		}
	}
	return indices
}
