package helpers

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/params"
)

// SlotToEpoch returns the epoch containing slot.
func SlotToEpoch(slot eth2types.Slot) eth2types.Epoch {
	return eth2types.Epoch(uint64(slot) / uint64(params.BeaconConfig().SlotsPerEpoch))
}

// StartSlot returns the first slot of epoch.
func StartSlot(epoch eth2types.Epoch) eth2types.Slot {
	return eth2types.Slot(uint64(epoch) * uint64(params.BeaconConfig().SlotsPerEpoch))
}

// CurrentEpoch returns the epoch containing state.Slot.
func CurrentEpoch(slot eth2types.Slot) eth2types.Epoch {
	return SlotToEpoch(slot)
}

// PreviousEpoch returns the epoch before CurrentEpoch, floored at the
// genesis epoch (the genesis epoch has no previous epoch).
func PreviousEpoch(slot eth2types.Slot) eth2types.Epoch {
	current := CurrentEpoch(slot)
	if current == params.BeaconConfig().GenesisEpoch {
		return params.BeaconConfig().GenesisEpoch
	}
	return current - 1
}

// NextEpoch returns the epoch after CurrentEpoch.
func NextEpoch(slot eth2types.Slot) eth2types.Epoch {
	return CurrentEpoch(slot) + 1
}

// IsEpochBoundary returns true if advancing to nextSlot crosses an epoch
// boundary, i.e. (nextSlot) % SLOTS_PER_EPOCH == 0.
func IsEpochBoundary(nextSlot eth2types.Slot) bool {
	return uint64(nextSlot)%uint64(params.BeaconConfig().SlotsPerEpoch) == 0
}

// BlockRootAtSlot returns the block root cached in state's block-root ring
// buffer for slot.
func BlockRootAtSlot(blockRoots [][32]byte, slot eth2types.Slot) [32]byte {
	historyLen := uint64(params.BeaconConfig().SlotsPerHistoricalRoot)
	return blockRoots[uint64(slot)%historyLen]
}
