// Package consensustypes defines the data model of spec.md §3: the beacon
// state and every structure it is built from. These are plain, directly
// mutable Go structs rather than the teacher's protobuf-generated
// ethereumapis types — wire framing and SSZ codegen are named external
// collaborators in spec.md §1/§6, so the engine here only needs structural
// equality and a deterministic internal hash (see consensustypes/hashing.go),
// not wire compatibility.
package consensustypes

import (
	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/prysmaticlabs/go-bitfield"
)

// Checkpoint is a (epoch, root) pair used for FFG source/target/finalized
// tracking (spec.md §3 Checkpoint).
type Checkpoint struct {
	Epoch eth2types.Epoch
	Root  [32]byte
}

// Fork records the current and previous fork versions and the epoch of the
// fork boundary.
type Fork struct {
	PreviousVersion [4]byte
	CurrentVersion  [4]byte
	Epoch           eth2types.Epoch
}

// Eth1Data is a single eth1 deposit-contract observation.
type Eth1Data struct {
	DepositRoot  [32]byte
	DepositCount uint64
	BlockHash    [32]byte
}

// Validator is one entry of the beacon state's validator registry
// (spec.md §3 Validator record). The invariant
// activation_eligibility_epoch <= activation_epoch <= exit_epoch <=
// withdrawable_epoch is enforced by the operation handlers that mutate it,
// never by the struct itself.
type Validator struct {
	PublicKey                  [48]byte
	WithdrawalCredentials      [32]byte
	EffectiveBalance           uint64
	Slashed                    bool
	ActivationEligibilityEpoch eth2types.Epoch
	ActivationEpoch            eth2types.Epoch
	ExitEpoch                  eth2types.Epoch
	WithdrawableEpoch          eth2types.Epoch
}

// Copy returns a deep copy of v.
func (v *Validator) Copy() *Validator {
	if v == nil {
		return nil
	}
	cpy := *v
	return &cpy
}

// AttestationData is the (slot, committee index, block root, source,
// target) tuple an attestation commits to.
type AttestationData struct {
	Slot            eth2types.Slot
	CommitteeIndex  eth2types.CommitteeIndex
	BeaconBlockRoot [32]byte
	Source          *Checkpoint
	Target          *Checkpoint
}

// PendingAttestation is an attestation recorded into one of the state's two
// rolling pools pending reward accounting at the next epoch transition.
type PendingAttestation struct {
	AggregationBits bitfield.Bitlist
	Data            *AttestationData
	InclusionDelay  eth2types.Slot
	ProposerIndex   eth2types.ValidatorIndex
}

// BeaconBlockHeader is the compact, body-root-committing header cached as
// state.LatestBlockHeader and used for parent-root verification.
type BeaconBlockHeader struct {
	Slot          eth2types.Slot
	ProposerIndex eth2types.ValidatorIndex
	ParentRoot    [32]byte
	StateRoot     [32]byte
	BodyRoot      [32]byte
}

// Copy returns a deep copy of h.
func (h *BeaconBlockHeader) Copy() *BeaconBlockHeader {
	if h == nil {
		return nil
	}
	cpy := *h
	return &cpy
}

// SignedBeaconBlockHeader pairs a header with its proposer signature.
type SignedBeaconBlockHeader struct {
	Header    *BeaconBlockHeader
	Signature []byte
}

// DepositData is the leaf committed to by the eth1 deposit contract's
// Merkle tree.
type DepositData struct {
	PublicKey             []byte
	WithdrawalCredentials []byte
	Amount                uint64
	Signature             []byte
}

// Deposit is one eth1 deposit-contract inclusion proof plus its leaf data.
type Deposit struct {
	Proof [][]byte
	Data  *DepositData
}

// ProposerSlashing is proof that a proposer signed two distinct headers for
// the same (slot, proposer_index).
type ProposerSlashing struct {
	Header1 *SignedBeaconBlockHeader
	Header2 *SignedBeaconBlockHeader
}

// IndexedAttestation is the validator-index form of an attestation used in
// slashing proofs and signature verification.
type IndexedAttestation struct {
	AttestingIndices []eth2types.ValidatorIndex
	Data             *AttestationData
	Signature        []byte
}

// AttesterSlashing is proof that two indexed attestations from overlapping
// validators violate a Casper FFG slashing condition.
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation
	Attestation2 *IndexedAttestation
}

// Attestation is the aggregation-bitlist form of an attestation as included
// in a block body.
type Attestation struct {
	AggregationBits bitfield.Bitlist
	Data            *AttestationData
	Signature       []byte
}

// VoluntaryExit signals a validator's intent to leave the active set.
type VoluntaryExit struct {
	Epoch          eth2types.Epoch
	ValidatorIndex eth2types.ValidatorIndex
}

// SignedVoluntaryExit pairs a voluntary exit with the exiting validator's
// signature.
type SignedVoluntaryExit struct {
	Exit      *VoluntaryExit
	Signature []byte
}

// BeaconBlockBody holds every operation type a block may carry.
type BeaconBlockBody struct {
	RandaoReveal      []byte
	Eth1Data          *Eth1Data
	Graffiti          [32]byte
	ProposerSlashings []*ProposerSlashing
	AttesterSlashings []*AttesterSlashing
	Attestations      []*Attestation
	Deposits          []*Deposit
	VoluntaryExits    []*SignedVoluntaryExit
}

// BeaconBlock is an unsigned beacon block.
type BeaconBlock struct {
	Slot          eth2types.Slot
	ProposerIndex eth2types.ValidatorIndex
	ParentRoot    [32]byte
	StateRoot     []byte
	Body          *BeaconBlockBody
}

// SignedBeaconBlock pairs a block with its proposer signature.
type SignedBeaconBlock struct {
	Block     *BeaconBlock
	Signature []byte
}
