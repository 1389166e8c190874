package helpers

import (
	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/pkg/errors"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/hashutil"
	"github.com/harborlabs/corebeacon/params"
)

// RandaoMixAtEpoch returns the randao mix recorded for epoch, reading the
// ring buffer at epoch % EPOCHS_PER_HISTORICAL_VECTOR.
func RandaoMixAtEpoch(mixes [][32]byte, epoch eth2types.Epoch) [32]byte {
	vectorLen := uint64(params.BeaconConfig().EpochsPerHistoricalVector)
	return mixes[uint64(epoch)%vectorLen]
}

// Seed derives the per-epoch, per-domain randomness seed used by the
// shuffle (component A): H(domain_type ‖ epoch ‖ randao_mix), where the
// randao mix is read from MIN_SEED_LOOKAHEAD epochs before the end of the
// historical-vector lookback window, so that it is already final by the
// time it is used.
func Seed(mixes [][32]byte, epoch eth2types.Epoch, domainType [4]byte) ([32]byte, error) {
	cfg := params.BeaconConfig()
	vectorLen := eth2types.Epoch(cfg.EpochsPerHistoricalVector)
	lookback := vectorLen - cfg.MinSeedLookahead - 1
	mixEpoch := (epoch + lookback) % vectorLen
	if uint64(mixEpoch) >= uint64(len(mixes)) {
		return [32]byte{}, errors.New("helpers: randao mix epoch out of range")
	}
	mix := mixes[mixEpoch]
	return hashutil.HashConcat(domainType[:], hashutil.Uint64ToBytes8LE(uint64(epoch)), mix[:]), nil
}

// Domain computes the signature domain for domainType at epoch, mixing in
// the fork's version for that epoch and the state's genesis validators
// root.
func Domain(fork *consensustypes.Fork, epoch eth2types.Epoch, domainType [4]byte, genesisValidatorsRoot [32]byte) [32]byte {
	version := fork.VersionForEpoch(epoch)
	return consensustypes.ComputeDomain(domainType, version, genesisValidatorsRoot)
}
