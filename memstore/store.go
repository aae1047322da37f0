// Package memstore is a deterministic, in-memory implementation of
// storage.Store (§9 design note: the abstract storage capability, here
// realized once for tests, the demo CLI, and chainsim).
//
// Its Tally is backed by buntdb, chosen specifically because the design
// note calls for "any key-value store with range-remove-by-prefix
// semantics" -- buntdb's AscendKeys glob matching gives ResetRequest that
// operation directly.
package memstore

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/tidwall/buntdb"

	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn/debug"
	"github.com/ssmgr/ssmgr/events"
	"github.com/ssmgr/ssmgr/registry"
	"github.com/ssmgr/ssmgr/storage"
	"github.com/ssmgr/ssmgr/wire"
)

// snapshotKey is the buntdb key the canonical-encoded current set is
// persisted under by PersistSnapshot.
const snapshotKey = "snapshot:current"

// EventLog is an in-memory events.Sink that retains every deposited
// event in arrival order, for test assertions and CLI display.
type EventLog struct {
	log []events.Event
}

func NewEventLog() *EventLog { return &EventLog{} }

func (l *EventLog) DepositEvent(ev events.Event) { l.log = append(l.log, ev) }

func (l *EventLog) All() []events.Event { return l.log }

// Drain returns every event logged since the last Drain and clears the
// log.
func (l *EventLog) Drain() []events.Event {
	out := l.log
	l.log = nil
	return out
}

// Ledger is a trivial in-memory account-balance ledger implementing
// storage.FeePayer. Real balance transfer is the host chain runtime's job
// (spec.md §1 non-goal); this exists only so fee-split admission has
// something concrete to call in tests and the demo CLI.
type Ledger struct {
	balances map[cluster.AccountId]uint64
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[cluster.AccountId]uint64)}
}

func (l *Ledger) SetBalance(account cluster.AccountId, amount uint64) {
	l.balances[account] = amount
}

func (l *Ledger) Balance(account cluster.AccountId) uint64 {
	return l.balances[account]
}

func (l *Ledger) Transfer(from, to cluster.AccountId, amount uint64) error {
	if amount == 0 {
		return nil
	}
	bal := l.balances[from]
	if bal < amount {
		return fmt.Errorf("account %s has balance %d, needs %d", from, bal, amount)
	}
	l.balances[from] = bal - amount
	l.balances[to] += amount
	return nil
}

// Tally is the buntdb-backed storage.Tally implementation. Keys are
// "<hex request key>:<hex response key>" so ResetRequest can
// range-delete by the hex-encoded request-key prefix without ambiguity
// from raw bytes colliding with the glob metacharacters buntdb's
// AscendKeys pattern matching reserves.
type Tally struct {
	db *buntdb.DB
}

func NewTally() *Tally {
	db, err := buntdb.Open(":memory:")
	debug.AssertNoErr(err)
	return &Tally{db: db}
}

func tallyKey(requestKey, responseKey []byte) string {
	return hex.EncodeToString(requestKey) + ":" + hex.EncodeToString(responseKey)
}

func (t *Tally) Inc(requestKey, responseKey []byte) uint8 {
	key := tallyKey(requestKey, responseKey)
	var count uint8
	err := t.db.Update(func(tx *buntdb.Tx) error {
		if val, getErr := tx.Get(key); getErr == nil {
			n, _ := strconv.Atoi(val)
			count = uint8(n)
		}
		count++
		_, _, setErr := tx.Set(key, strconv.Itoa(int(count)), nil)
		return setErr
	})
	debug.AssertNoErr(err)
	return count
}

func (t *Tally) ResetRequest(requestKey []byte) {
	prefix := hex.EncodeToString(requestKey) + ":"
	err := t.db.Update(func(tx *buntdb.Tx) error {
		var stale []string
		iterErr := tx.AscendKeys(prefix+"*", func(k, _ string) bool {
			stale = append(stale, k)
			return true
		})
		if iterErr != nil {
			return iterErr
		}
		for _, k := range stale {
			if _, delErr := tx.Delete(k); delErr != nil {
				return delErr
			}
		}
		return nil
	})
	debug.AssertNoErr(err)
}

// Store bundles the pieces above behind storage.Store.
type Store struct {
	blockNumber uint64
	sets        *storage.SetsState
	registry    *registry.Registry
	eventLog    *EventLog
	ledger      *Ledger
	tally       *Tally
}

// New builds a Store whose current and new sets both equal genesis,
// matching the Uninitialized state's starting condition (§4.4).
func New(owner cluster.AccountId, genesis []cluster.KeyServerEntry) *Store {
	return &Store{
		sets:     storage.NewSetsState(owner, genesis),
		registry: registry.New(),
		eventLog: NewEventLog(),
		ledger:   NewLedger(),
		tally:    NewTally(),
	}
}

func (s *Store) BlockNumber() uint64           { return s.blockNumber }
func (s *Store) SetBlockNumber(n uint64)       { s.blockNumber = n }
func (s *Store) AdvanceBlock()                 { s.blockNumber++ }
func (s *Store) Events() events.Sink           { return s.eventLog }
func (s *Store) EventLog() *EventLog           { return s.eventLog }
func (s *Store) Sets() *storage.SetsState      { return s.sets }
func (s *Store) Registry() *registry.Registry  { return s.registry }
func (s *Store) Fees() storage.FeePayer        { return s.ledger }
func (s *Store) Ledger() *Ledger               { return s.ledger }
func (s *Store) Tally() storage.Tally          { return s.tally }

// PersistSnapshot encodes the current key-server set with the canonical
// wire encoding (§6) and writes it into the Tally's buntdb handle under
// snapshotKey, standing in for the host chain committing the set to
// persisted storage on every block that changes it.
func (s *Store) PersistSnapshot() error {
	enc, err := wire.EncodeKeyServerEntries(s.sets.Current.Enumerate())
	if err != nil {
		return err
	}
	return s.tally.db.Update(func(tx *buntdb.Tx) error {
		_, _, setErr := tx.Set(snapshotKey, hex.EncodeToString(enc), nil)
		return setErr
	})
}

// LoadPersistedSnapshot decodes whatever PersistSnapshot last wrote, for
// callers (tests, the demo CLI) that want to confirm round-tripping.
func (s *Store) LoadPersistedSnapshot() ([]cluster.KeyServerEntry, error) {
	var encHex string
	err := s.tally.db.View(func(tx *buntdb.Tx) error {
		val, getErr := tx.Get(snapshotKey)
		if getErr != nil {
			return getErr
		}
		encHex = val
		return nil
	})
	if err != nil {
		return nil, err
	}
	enc, err := hex.DecodeString(encHex)
	if err != nil {
		return nil, err
	}
	return wire.DecodeKeyServerEntries(enc)
}
