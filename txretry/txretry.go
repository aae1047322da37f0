// Package txretry mirrors the off-chain connector's transaction retry
// floor (original key_server_set.rs: update_last_transaction_block),
// keeping an external submitter from resubmitting a start/confirm
// migration transaction for the same migration id more than once per
// cmn.TransactionRetryIntervalBlocks blocks. It performs no I/O itself;
// a real submitter calls ShouldSubmit before building and sending a
// transaction, and RecordSubmission right after sending it.
package txretry

import (
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn"
)

// Tracker records, per migration id, the block number a transaction was
// last submitted at. It is not safe for concurrent use.
type Tracker struct {
	lastBlock map[cluster.MigrationId]uint64
}

func NewTracker() *Tracker {
	return &Tracker{lastBlock: make(map[cluster.MigrationId]uint64)}
}

// ShouldSubmit reports whether enough blocks have passed since the last
// recorded submission for id to justify another attempt. An id that has
// never been recorded is always eligible.
func (t *Tracker) ShouldSubmit(id cluster.MigrationId, currentBlock uint64) bool {
	last, ok := t.lastBlock[id]
	if !ok {
		return true
	}
	return currentBlock-last >= cmn.TransactionRetryIntervalBlocks
}

// RecordSubmission marks id as submitted at currentBlock.
func (t *Tracker) RecordSubmission(id cluster.MigrationId, currentBlock uint64) {
	t.lastBlock[id] = currentBlock
}

// Forget drops id's recorded submission, for use once a migration
// reaches a terminal state (confirmed, or the set reverted) and its
// transaction history stops mattering.
func (t *Tracker) Forget(id cluster.MigrationId) {
	delete(t.lastBlock, id)
}
