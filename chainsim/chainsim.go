// Package chainsim is a minimal stand-in for the host chain runtime
// (§1, §5): it owns the block number and drives a memstore-backed
// ssmod.Module forward one block at a time, the way a real host chain's
// block-import pipeline would call into the module's on_initialize and
// dispatchables. It exists for tests; no SPEC_FULL.md component depends
// on it.
package chainsim

import (
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/memstore"
	"github.com/ssmgr/ssmgr/ssmod"
)

// Chain bundles a Store and Module at a single advancing block number.
// Deposited events accumulate in the Store's EventLog until DrainEvents
// takes them.
type Chain struct {
	Store  *memstore.Store
	Module *ssmod.Module
}

// New builds a chain already past genesis: CompleteInitialization has
// been called so the module accepts service requests immediately,
// matching most tests' need to skip the bootstrap phase.
func New(owner cluster.AccountId, genesis []cluster.KeyServerEntry, seedClaims map[cluster.AccountId]cluster.EntityId) (*Chain, error) {
	store := memstore.New(owner, genesis)
	module, err := ssmod.New(store, ssmod.GenesisConfig{
		Owner:                     owner,
		IsInitializationCompleted: true,
		SeedClaims:                seedClaims,
	})
	if err != nil {
		return nil, err
	}
	return &Chain{Store: store, Module: module}, nil
}

// AdvanceBlock increments the block number, the only thing a bare
// on_initialize hook would need to do for this module: nothing here is
// scheduled per block (no expiry sweep, no timers -- §5 non-goal).
func (c *Chain) AdvanceBlock() {
	c.Store.AdvanceBlock()
}

// DrainEvents returns every event deposited since the last call, in
// arrival order.
func (c *Chain) DrainEvents() []interface{} {
	raw := c.Store.EventLog().Drain()
	out := make([]interface{}, len(raw))
	for i, ev := range raw {
		out[i] = ev
	}
	return out
}

// BlockNumber reports the chain's current block number.
func (c *Chain) BlockNumber() uint64 {
	return c.Store.BlockNumber()
}
