package blocks

import (
	"github.com/pkg/errors"

	"github.com/harborlabs/corebeacon/blsverify"
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessVoluntaryExit verifies se against spec.md §4.G and, on success,
// initiates the named validator's exit.
func ProcessVoluntaryExit(state *consensustypes.BeaconState, se *consensustypes.SignedVoluntaryExit) error {
	exit := se.Exit
	if uint64(exit.ValidatorIndex) >= uint64(len(state.Validators)) {
		return errors.New("blocks: voluntary exit references unknown validator")
	}
	v := state.Validators[exit.ValidatorIndex]
	current := helpers.CurrentEpoch(state.Slot)

	if !helpers.IsActiveValidator(v, current) {
		return errors.New("blocks: voluntary exit for inactive validator")
	}
	cfg := params.BeaconConfig()
	if v.ExitEpoch != cfg.FarFutureEpoch {
		return errors.New("blocks: validator has already initiated exit")
	}
	if current < exit.Epoch {
		return errors.New("blocks: voluntary exit epoch is in the future")
	}
	if current < v.ActivationEpoch+cfg.ShardCommitteePeriod {
		return errors.New("blocks: validator has not served the minimum shard committee period")
	}

	domain := helpers.Domain(state.Fork, exit.Epoch, cfg.DomainVoluntaryExit, state.GenesisValidatorsRoot)
	objectRoot := exit.HashTreeRoot()
	signingRoot := consensustypes.ComputeSigningRoot(objectRoot, domain)
	pk := v.PublicKey
	if !blsverify.Verify(pk[:], signingRoot[:], se.Signature) {
		return errors.New("blocks: invalid voluntary exit signature")
	}

	InitiateValidatorExit(state, exit.ValidatorIndex)
	return nil
}
