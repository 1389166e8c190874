package blocks

import (
	"github.com/pkg/errors"
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/blsverify"
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/hashutil"
	"github.com/harborlabs/corebeacon/params"
)

// randaoSigningRoot returns the message the proposer's RANDAO reveal signs:
// the current epoch's structural digest, domain-separated for RANDAO.
func randaoSigningRoot(epoch eth2types.Epoch) [32]byte {
	return hashutil.Hash(hashutil.Uint64ToBytes8LE(uint64(epoch)))
}

// ProcessRandao verifies the proposer's RANDAO reveal and mixes it into
// state's randao-mixes ring, per spec.md §4.F apply_block.
func ProcessRandao(state *consensustypes.BeaconState, proposerIndex eth2types.ValidatorIndex, reveal []byte) error {
	cfg := params.BeaconConfig()
	epoch := helpers.CurrentEpoch(state.Slot)

	proposer := state.Validators[proposerIndex]
	domain := helpers.Domain(state.Fork, epoch, cfg.DomainRandao, state.GenesisValidatorsRoot)
	objectRoot := randaoSigningRoot(epoch)
	signingRoot := consensustypes.ComputeSigningRoot(objectRoot, domain)

	pk := proposer.PublicKey
	if !blsverify.Verify(pk[:], signingRoot[:], reveal) {
		return errors.New("blocks: invalid randao reveal signature")
	}

	vectorLen := uint64(cfg.EpochsPerHistoricalVector)
	mixIndex := uint64(epoch) % vectorLen
	revealHash := hashutil.Hash(reveal)
	var mixed [32]byte
	for i := range mixed {
		mixed[i] = state.RandaoMixes[mixIndex][i] ^ revealHash[i]
	}
	state.RandaoMixes[mixIndex] = mixed
	return nil
}
