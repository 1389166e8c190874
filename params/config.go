// Package params centralises the network-configuration constants that the
// beacon engine and beam downloader are parameterised on, mirroring the
// teacher's shared/params.BeaconConfig() singleton.
package params

import eth2types "github.com/prysmaticlabs/eth2-types"

// BeaconChainConfig holds every constant referenced in spec.md §4. Field
// names follow the beacon-chain spec naming, not Go convention, because
// they are meant to be recognisable against the spec they implement.
type BeaconChainConfig struct {
	// Time parameters.
	SlotsPerEpoch                eth2types.Slot
	MinAttestationInclusionDelay eth2types.Slot
	MinSeedLookahead             eth2types.Epoch
	MaxSeedLookahead             eth2types.Epoch
	EpochsPerEth1VotingPeriod    eth2types.Epoch
	SlotsPerHistoricalRoot       eth2types.Slot
	MinValidatorWithdrawabilityDelay eth2types.Epoch
	ShardCommitteePeriod         eth2types.Epoch
	MinEpochsToInactivityPenalty eth2types.Epoch

	// State-vector sizes.
	EpochsPerHistoricalVector eth2types.Epoch
	EpochsPerSlashingsVector  eth2types.Epoch
	HistoricalRootsLimit      uint64
	ValidatorRegistryLimit    uint64

	// Gwei values.
	MinDepositAmount          uint64
	MaxEffectiveBalance       uint64
	EjectionBalance           uint64
	EffectiveBalanceIncrement uint64

	// Reward/penalty quotients.
	BaseRewardFactor             uint64
	WhistleblowerRewardQuotient  uint64
	ProposerRewardQuotient       uint64
	InactivityPenaltyQuotient    uint64
	MinSlashingPenaltyQuotient   uint64

	// Committee / shuffle parameters.
	TargetCommitteeSize     uint64
	MaxCommitteesPerSlot    uint64
	ShuffleRoundCount       uint64
	MaxValidatorsPerCommittee uint64

	// Registry churn.
	MinPerEpochChurnLimit uint64
	ChurnLimitQuotient    uint64

	// Max operations per block.
	MaxProposerSlashings uint64
	MaxAttesterSlashings uint64
	MaxAttestations      uint64
	MaxDeposits          uint64
	MaxVoluntaryExits    uint64

	// Deposit contract.
	DepositContractTreeDepth uint64

	// Domain types (4-byte, left-padded into a [32]byte at use).
	DomainBeaconProposer    [4]byte
	DomainBeaconAttester    [4]byte
	DomainRandao            [4]byte
	DomainDeposit           [4]byte
	DomainVoluntaryExit     [4]byte

	// Misc.
	GenesisEpoch      eth2types.Epoch
	GenesisSlot       eth2types.Slot
	GenesisForkVersion [4]byte
	FarFutureEpoch    eth2types.Epoch
	ZeroHash          [32]byte
}

// Mainnet returns the canonical mainnet-preset configuration. Values match
// the public eth2 mainnet preset that the teacher's shared/params package
// ships as the default BeaconConfig.
func Mainnet() *BeaconChainConfig {
	return &BeaconChainConfig{
		SlotsPerEpoch:                    32,
		MinAttestationInclusionDelay:     1,
		MinSeedLookahead:                 1,
		MaxSeedLookahead:                 4,
		EpochsPerEth1VotingPeriod:        64,
		SlotsPerHistoricalRoot:           8192,
		MinValidatorWithdrawabilityDelay: 256,
		ShardCommitteePeriod:             256,
		MinEpochsToInactivityPenalty:     4,

		EpochsPerHistoricalVector: 65536,
		EpochsPerSlashingsVector:  8192,
		HistoricalRootsLimit:      16777216,
		ValidatorRegistryLimit:    1099511627776,

		MinDepositAmount:          1000000000,
		MaxEffectiveBalance:       32000000000,
		EjectionBalance:           16000000000,
		EffectiveBalanceIncrement: 1000000000,

		BaseRewardFactor:            64,
		WhistleblowerRewardQuotient: 512,
		ProposerRewardQuotient:      8,
		InactivityPenaltyQuotient:   1 << 26,
		MinSlashingPenaltyQuotient:  128,

		TargetCommitteeSize:       128,
		MaxCommitteesPerSlot:      64,
		ShuffleRoundCount:         90,
		MaxValidatorsPerCommittee: 2048,

		MinPerEpochChurnLimit: 4,
		ChurnLimitQuotient:    65536,

		MaxProposerSlashings: 16,
		MaxAttesterSlashings: 2,
		MaxAttestations:      128,
		MaxDeposits:          16,
		MaxVoluntaryExits:    16,

		DepositContractTreeDepth: 32,

		DomainBeaconProposer: [4]byte{0x00, 0x00, 0x00, 0x00},
		DomainBeaconAttester: [4]byte{0x01, 0x00, 0x00, 0x00},
		DomainRandao:         [4]byte{0x02, 0x00, 0x00, 0x00},
		DomainDeposit:        [4]byte{0x03, 0x00, 0x00, 0x00},
		DomainVoluntaryExit:  [4]byte{0x04, 0x00, 0x00, 0x00},

		GenesisEpoch:       0,
		GenesisSlot:        0,
		GenesisForkVersion: [4]byte{0x00, 0x00, 0x00, 0x00},
		FarFutureEpoch:     eth2types.Epoch(1<<64 - 1),
	}
}

var beaconConfig = Mainnet()

// BeaconConfig returns the process-wide active configuration. Tests that
// need a minimal preset call OverrideBeaconConfig and must restore it via
// the returned reset function.
func BeaconConfig() *BeaconChainConfig {
	return beaconConfig
}

// OverrideBeaconConfig replaces the process-wide configuration, returning a
// function that restores the previous one. Mirrors the teacher's
// shared/params.OverrideBeaconConfig test helper.
func OverrideBeaconConfig(cfg *BeaconChainConfig) func() {
	prev := beaconConfig
	beaconConfig = cfg
	return func() { beaconConfig = prev }
}

// Minimal returns a reduced preset suitable for fast unit tests, matching
// the teacher's minimal spec-test configuration shape.
func Minimal() *BeaconChainConfig {
	cfg := Mainnet()
	cfg.SlotsPerEpoch = 8
	cfg.TargetCommitteeSize = 4
	cfg.MaxCommitteesPerSlot = 4
	cfg.EpochsPerHistoricalVector = 64
	cfg.EpochsPerSlashingsVector = 64
	cfg.SlotsPerHistoricalRoot = 64
	cfg.ShardCommitteePeriod = 64
	return cfg
}
