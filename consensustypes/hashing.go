package consensustypes

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/hashutil"
)

// HashTreeRoot returns a deterministic structural digest of the header.
// Wire-level SSZ merkleization is an external collaborator (spec.md §6);
// this only needs to be deterministic and equal on value-equal structures.
func (h *BeaconBlockHeader) HashTreeRoot() [32]byte {
	if h == nil {
		return [32]byte{}
	}
	return hashutil.HashConcat(
		hashutil.Uint64ToBytes8LE(uint64(h.Slot)),
		hashutil.Uint64ToBytes8LE(uint64(h.ProposerIndex)),
		h.ParentRoot[:],
		h.StateRoot[:],
		h.BodyRoot[:],
	)
}

// HashTreeRoot returns a deterministic structural digest of deposit data,
// the leaf value verified against the eth1 deposit Merkle tree.
func (d *DepositData) HashTreeRoot() [32]byte {
	if d == nil {
		return [32]byte{}
	}
	return hashutil.HashConcat(
		d.PublicKey,
		d.WithdrawalCredentials,
		hashutil.Uint64ToBytes8LE(d.Amount),
	)
}

// depositMessageRoot hashes the deposit fields that are signed over,
// excluding the signature itself (the spec's DepositMessage container).
func depositMessageRoot(pubkey, withdrawalCredentials []byte, amount uint64) [32]byte {
	return hashutil.HashConcat(
		pubkey,
		withdrawalCredentials,
		hashutil.Uint64ToBytes8LE(amount),
	)
}

// DepositMessageSigningRoot returns the root signed by a deposit's proof of
// possession, prior to domain-mixing.
func DepositMessageSigningRoot(d *DepositData) [32]byte {
	return depositMessageRoot(d.PublicKey, d.WithdrawalCredentials, d.Amount)
}

// HashTreeRoot returns a deterministic structural digest of a voluntary
// exit, prior to domain-mixing.
func (e *VoluntaryExit) HashTreeRoot() [32]byte {
	if e == nil {
		return [32]byte{}
	}
	return hashutil.HashConcat(
		hashutil.Uint64ToBytes8LE(uint64(e.Epoch)),
		hashutil.Uint64ToBytes8LE(uint64(e.ValidatorIndex)),
	)
}

// HashTreeRoot returns a deterministic structural digest of attestation
// data.
func (d *AttestationData) HashTreeRoot() [32]byte {
	if d == nil {
		return [32]byte{}
	}
	var src, tgt [32]byte
	if d.Source != nil {
		src = hashutil.HashConcat(hashutil.Uint64ToBytes8LE(uint64(d.Source.Epoch)), d.Source.Root[:])
	}
	if d.Target != nil {
		tgt = hashutil.HashConcat(hashutil.Uint64ToBytes8LE(uint64(d.Target.Epoch)), d.Target.Root[:])
	}
	return hashutil.HashConcat(
		hashutil.Uint64ToBytes8LE(uint64(d.Slot)),
		hashutil.Uint64ToBytes8LE(uint64(d.CommitteeIndex)),
		d.BeaconBlockRoot[:],
		src[:],
		tgt[:],
	)
}

// SigningMessage returns a deterministic structural digest of an indexed
// attestation's data, used as the message signed by its aggregate
// signature.
func (a *IndexedAttestation) SigningMessage() [32]byte {
	return a.Data.HashTreeRoot()
}

// ComputeDomain derives a domain value by mixing a 4-byte domain type with
// the fork-data root, matching the real beacon-chain spec's
// compute_domain/compute_fork_data_root construction: the engine's own
// hashing primitive (component A) stands in for the external SSZ
// container-hashing of ForkData.
func ComputeDomain(domainType [4]byte, forkVersion [4]byte, genesisValidatorsRoot [32]byte) [32]byte {
	forkDataRoot := hashutil.HashConcat(forkVersion[:], genesisValidatorsRoot[:])
	var domain [32]byte
	copy(domain[:4], domainType[:])
	copy(domain[4:], forkDataRoot[:28])
	return domain
}

// ComputeSigningRoot mixes an object root with a domain, the value that
// every BLS-signed message in the beacon chain actually signs.
func ComputeSigningRoot(objectRoot [32]byte, domain [32]byte) [32]byte {
	return hashutil.HashConcat(objectRoot[:], domain[:])
}

// VersionForEpoch returns the fork version that applies to epoch, following
// the standard single-fork-boundary Fork record.
func (f *Fork) VersionForEpoch(epoch eth2types.Epoch) [4]byte {
	if epoch < f.Epoch {
		return f.PreviousVersion
	}
	return f.CurrentVersion
}

// HashTreeRoot returns a deterministic structural digest of the block's
// header fields plus its body's digest, the value the proposer signature
// commits to. The body digest covers only the RANDAO reveal, the eth1
// block hash and deposit root, and the graffiti; the body's operation
// lists are not part of it.
func (b *BeaconBlock) HashTreeRoot() [32]byte {
	if b == nil {
		return [32]byte{}
	}
	bodyRoot := hashutil.HashConcat(
		b.Body.RandaoReveal,
		b.Body.Eth1Data.BlockHash[:],
		b.Body.Eth1Data.DepositRoot[:],
		b.Body.Graffiti[:],
	)
	return hashutil.HashConcat(
		hashutil.Uint64ToBytes8LE(uint64(b.Slot)),
		hashutil.Uint64ToBytes8LE(uint64(b.ProposerIndex)),
		b.ParentRoot[:],
		b.StateRoot,
		bodyRoot[:],
	)
}
