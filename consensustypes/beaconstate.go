package consensustypes

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/hashutil"
)

// BeaconState is the full per-slot chain state (spec.md §3 Beacon state).
// It is treated as a persistent value: every transition operates on a
// Copy() and returns the mutated copy, never mutating its predecessor in
// place, following the teacher's "mutation at each call site must NOT be
// visible to earlier versions" design note.
type BeaconState struct {
	Slot                        eth2types.Slot
	Fork                        *Fork
	GenesisTime                 uint64
	GenesisValidatorsRoot       [32]byte
	Validators                  []*Validator
	Balances                    []uint64
	PreviousEpochAttestations   []*PendingAttestation
	CurrentEpochAttestations    []*PendingAttestation
	RandaoMixes                 [][32]byte
	Slashings                   []uint64
	BlockRoots                  [][32]byte
	StateRoots                  [][32]byte
	HistoricalRoots             [][32]byte
	Eth1Data                    *Eth1Data
	Eth1DataVotes               []*Eth1Data
	Eth1DepositIndex            uint64
	JustificationBits           [4]bool
	PreviousJustifiedCheckpoint *Checkpoint
	CurrentJustifiedCheckpoint  *Checkpoint
	FinalizedCheckpoint         *Checkpoint
	LatestBlockHeader           *BeaconBlockHeader
}

// Copy returns a deep copy of the state. Slices of immutable leaf values
// ([32]byte roots, uint64 balances) are copied by value; validators are
// copied record by record so that mutating a validator in the copy never
// touches the original. The pending-attestation and eth1-vote slices are
// new slices, but their elements point at the same records as the
// original's, so appending to them in the copy is safe while mutating one
// of those records is visible in both states.
func (s *BeaconState) Copy() *BeaconState {
	if s == nil {
		return nil
	}
	cpy := &BeaconState{
		Slot:                 s.Slot,
		GenesisTime:          s.GenesisTime,
		GenesisValidatorsRoot: s.GenesisValidatorsRoot,
		Eth1DepositIndex:     s.Eth1DepositIndex,
		JustificationBits:    s.JustificationBits,
	}
	if s.Fork != nil {
		f := *s.Fork
		cpy.Fork = &f
	}
	cpy.Validators = make([]*Validator, len(s.Validators))
	for i, v := range s.Validators {
		cpy.Validators[i] = v.Copy()
	}
	cpy.Balances = append([]uint64{}, s.Balances...)
	cpy.PreviousEpochAttestations = append([]*PendingAttestation{}, s.PreviousEpochAttestations...)
	cpy.CurrentEpochAttestations = append([]*PendingAttestation{}, s.CurrentEpochAttestations...)
	cpy.RandaoMixes = append([][32]byte{}, s.RandaoMixes...)
	cpy.Slashings = append([]uint64{}, s.Slashings...)
	cpy.BlockRoots = append([][32]byte{}, s.BlockRoots...)
	cpy.StateRoots = append([][32]byte{}, s.StateRoots...)
	cpy.HistoricalRoots = append([][32]byte{}, s.HistoricalRoots...)
	if s.Eth1Data != nil {
		e := *s.Eth1Data
		cpy.Eth1Data = &e
	}
	cpy.Eth1DataVotes = append([]*Eth1Data{}, s.Eth1DataVotes...)
	if s.PreviousJustifiedCheckpoint != nil {
		c := *s.PreviousJustifiedCheckpoint
		cpy.PreviousJustifiedCheckpoint = &c
	}
	if s.CurrentJustifiedCheckpoint != nil {
		c := *s.CurrentJustifiedCheckpoint
		cpy.CurrentJustifiedCheckpoint = &c
	}
	if s.FinalizedCheckpoint != nil {
		c := *s.FinalizedCheckpoint
		cpy.FinalizedCheckpoint = &c
	}
	cpy.LatestBlockHeader = s.LatestBlockHeader.Copy()
	return cpy
}

// HashTreeRoot returns a deterministic structural digest of the state, used
// by state_transition to verify block.state_root. It covers the slot, each
// validator's public key, withdrawal credentials, effective balance and
// lifecycle epochs, the balances, RANDAO mixes, slashings, block and state
// root rings, the latest block header, and the eth1 deposit index. It does
// not cover the validators' Slashed flags, the genesis fields, the fork,
// the historical roots, the eth1 data and votes, the attestation pools, the
// justification bits, or the checkpoints.
func (s *BeaconState) HashTreeRoot() [32]byte {
	validatorLeaves := make([][32]byte, len(s.Validators))
	for i, v := range s.Validators {
		validatorLeaves[i] = hashutil.HashConcat(
			v.PublicKey[:],
			v.WithdrawalCredentials[:],
			hashutil.Uint64ToBytes8LE(v.EffectiveBalance),
			hashutil.Uint64ToBytes8LE(uint64(v.ActivationEligibilityEpoch)),
			hashutil.Uint64ToBytes8LE(uint64(v.ActivationEpoch)),
			hashutil.Uint64ToBytes8LE(uint64(v.ExitEpoch)),
			hashutil.Uint64ToBytes8LE(uint64(v.WithdrawableEpoch)),
		)
	}
	balanceLeaves := make([][32]byte, len(s.Balances))
	for i, b := range s.Balances {
		balanceLeaves[i] = hashutil.Hash(hashutil.Uint64ToBytes8LE(b))
	}
	root := func(leaves [][32]byte) []byte {
		r := hashutil.MerkleRootFromLeaves(leaves)
		return r[:]
	}
	headerRoot := s.LatestBlockHeader.HashTreeRoot()
	return hashutil.HashConcat(
		hashutil.Uint64ToBytes8LE(uint64(s.Slot)),
		root(validatorLeaves),
		root(balanceLeaves),
		root(s.RandaoMixes),
		root(s.Slashings64Leaves()),
		root(s.BlockRoots),
		root(s.StateRoots),
		headerRoot[:],
		hashutil.Uint64ToBytes8LE(s.Eth1DepositIndex),
	)
}

// Slashings64Leaves hashes each slashings-ring entry into a leaf for
// HashTreeRoot.
func (s *BeaconState) Slashings64Leaves() [][32]byte {
	out := make([][32]byte, len(s.Slashings))
	for i, v := range s.Slashings {
		out[i] = hashutil.Hash(hashutil.Uint64ToBytes8LE(v))
	}
	return out
}
