// Package storage defines the abstract storage capabilities the
// migration state machine, aggregator, and service queues are built
// against (§9 design note): reading the current block number, depositing
// events, and CRUD over the three key-server sets, the entity registry,
// and per-request response tallies.
//
// In production this interface would be backed by the host chain's own
// storage; in this repo it is backed by memstore (buntdb + hand-rolled
// msgp encoding) for tests, the demo CLI, and chainsim.
package storage

import (
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/events"
	"github.com/ssmgr/ssmgr/keystore"
	"github.com/ssmgr/ssmgr/registry"
)

// MigrationState records an in-progress migration (§3 global flags:
// migration_state). A nil *MigrationState means Idle.
type MigrationState struct {
	ID        cluster.MigrationId
	Master    cluster.KeyServerId
	Confirmed map[cluster.KeyServerId]bool
}

// SetsState is the global, mutable record the migration state machine
// operates on: the three key-server sets plus the scalars in spec.md §3.
type SetsState struct {
	Current   *keystore.Set
	Migration *keystore.Set // nil/empty when Idle
	New       *keystore.Set

	IsInitialized         bool
	Owner                 cluster.AccountId
	CurrentSetChangeBlock uint64
	Migrating             *MigrationState
}

// NewSetsState returns the Uninitialized-state triple seeded from a
// genesis key-server list: current and new both equal the genesis set
// (§4.4 "Uninitialized").
func NewSetsState(owner cluster.AccountId, genesis []cluster.KeyServerEntry) *SetsState {
	cur := keystore.NewSet()
	newSet := keystore.NewSet()
	for _, e := range genesis {
		cur.Insert(e.ID, e.Record.Address)
		newSet.Insert(e.ID, e.Record.Address)
	}
	return &SetsState{
		Current: cur,
		New:     newSet,
		Owner:   owner,
	}
}

// FeePayer is the fee-transfer capability the queue admission template
// uses to split a service fee across the current key-server set (§4.6
// step 4). A failed transfer aborts the whole admission.
type FeePayer interface {
	Transfer(from, to cluster.AccountId, amount uint64) error
}

// Tally is the generic per-request, per-response-value double-map (§9
// design note: "addressable by a short composite key; any key-value
// store with range-remove-by-prefix semantics suffices"). requestKey and
// responseKey are short composite byte keys the caller has already
// encoded; Tally itself is opaque to what they mean.
type Tally interface {
	// Inc increments the (requestKey, responseKey) counter and returns
	// its new value.
	Inc(requestKey, responseKey []byte) uint8
	// ResetRequest deletes every (requestKey, *) entry -- the
	// range-remove-by-prefix operation the design note calls for.
	ResetRequest(requestKey []byte)
}

// Store bundles every storage capability a Store implementation must
// provide.
type Store interface {
	BlockNumber() uint64
	Events() events.Sink
	Sets() *SetsState
	Registry() *registry.Registry
	Fees() FeePayer
	Tally() Tally
}
