package scheduler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"sort"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
)

// ErrNoVoters is returned by NewLeaderSchedule when given an empty voter
// set: an epoch with no weighted representatives has no leader to draw.
var ErrNoVoters = errors.New("scheduler: no voters for leader schedule")

// Voter is one candidate in a leader draw: a representative public key
// and its weight at schedule-computation time.
type Voter struct {
	Public cryptoprim.Public
	Weight cryptoprim.Amount
}

// LeaderSchedule assigns a leader to every group of four consecutive
// slots within one Epoch, drawn with a deterministic, balance-weighted
// distribution, per spec.md §4.7 and Testable Property 9.
type LeaderSchedule struct {
	epoch   cryptoprim.Epoch
	leaders []cryptoprim.Public // one per group of slotsPerLeader slots
}

// slotsPerLeader is the number of consecutive slots one drawn leader
// covers before the next draw applies.
const slotsPerLeader = 4

// NewLeaderSchedule draws a fresh schedule for epoch from voters, seeded
// deterministically from the epoch number so every honest node recomputes
// the identical schedule (spec.md Testable Property 9). voters is sorted
// by public key before the draw so the result does not depend on
// caller-supplied ordering.
func NewLeaderSchedule(epoch cryptoprim.Epoch, voters []Voter) (*LeaderSchedule, error) {
	if len(voters) == 0 {
		return nil, ErrNoVoters
	}
	sorted := make([]Voter, len(voters))
	copy(sorted, voters)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Public[:], sorted[j].Public[:]) < 0
	})

	cumulative := make([]uint64, len(sorted))
	var total uint64
	for i, v := range sorted {
		w := v.Weight.Uint64()
		if w == 0 {
			w = 1 // a voter with zero finalized weight still gets a token chance, avoiding an all-zero distribution
		}
		total += w
		cumulative[i] = total
	}

	rng := rand.New(rand.NewPCG(epochSeedHalves(epoch)))

	nDraws := int(cryptoprim.EpochLen / slotsPerLeader)
	leaders := make([]cryptoprim.Public, nDraws)
	for i := 0; i < nDraws; i++ {
		pick := rng.Uint64N(total)
		idx := sort.Search(len(cumulative), func(j int) bool { return cumulative[j] > pick })
		if idx == len(cumulative) {
			idx = len(cumulative) - 1
		}
		leaders[i] = sorted[idx].Public
	}

	return &LeaderSchedule{epoch: epoch, leaders: leaders}, nil
}

// epochSeedHalves derives the two u64 halves of the PCG seed
// deterministically from the epoch number by hashing it with the same
// primitive used for every other digest in this module.
func epochSeedHalves(epoch cryptoprim.Epoch) (uint64, uint64) {
	var epochBytes [8]byte
	binary.LittleEndian.PutUint64(epochBytes[:], uint64(epoch))
	digest := cryptoprim.DigestHash(epochBytes[:])
	hi := binary.LittleEndian.Uint64(digest[0:8])
	lo := binary.LittleEndian.Uint64(digest[8:16])
	return hi, lo
}

// Epoch returns the epoch this schedule was drawn for.
func (ls *LeaderSchedule) Epoch() cryptoprim.Epoch { return ls.epoch }

// LeaderAt returns the public key scheduled to lead slot, which must
// belong to this schedule's epoch.
func (ls *LeaderSchedule) LeaderAt(slot cryptoprim.Slot) cryptoprim.Public {
	group := slot.IndexInEpoch() / slotsPerLeader
	return ls.leaders[group]
}
