// Package agg implements the Threshold Response Aggregator (§4.5): for
// each outstanding service request, collect one response per key server,
// tally support per distinct response value, and decide
// Confirmed/Unconfirmed/Impossible against the request's threshold, with
// automatic invalidation on key-server-set rotation.
//
// InsertResponse plays the role a k-of-n shard-arrival tracker would:
// it recomputes a three-valued readiness verdict on every new response,
// against a generic response value and a signed-origin-bound key-server
// index instead of a shard index.
/*
 * Copyright (c) 2019-2021, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/storage"
)

// ResponseSupport is the three-valued verdict insert_response returns.
type ResponseSupport int

const (
	Unconfirmed ResponseSupport = iota
	Confirmed
	Impossible
)

func (s ResponseSupport) String() string {
	switch s {
	case Confirmed:
		return "Confirmed"
	case Impossible:
		return "Impossible"
	default:
		return "Unconfirmed"
	}
}

// Responses is the per-request tally header (§3): the epoch it was
// stamped with, which key servers have responded, how many, and the
// current leading response's support.
type Responses struct {
	KeyServersChangeBlock uint64
	RespondedMask         cluster.KeyServersMask
	RespondedCount        uint8
	MaxResponseSupport    uint8
}

// InsertResponse implements the seven-step algorithm of §4.5 exactly.
// tally backs the generic per-request, per-response-value double-map;
// currentSetSize is N = |current_set|; currentSetChangeBlock is the
// global epoch; keyServerIndex is the caller's ordinal in the current
// set (resolved by the caller before this function is reached -- callers
// not in the current set never get this far, per §4.5 "Key-server
// index"). responses is mutated in place except on the duplicate-response
// path (step 3), which returns without touching it.
func InsertResponse(
	tally storage.Tally,
	currentSetChangeBlock uint64,
	currentSetSize int,
	keyServerIndex uint8,
	threshold uint8,
	responses *Responses,
	requestKey []byte,
	responseValue []byte,
) ResponseSupport {
	// Step 1: N is currentSetSize, read by the caller.

	// Step 2: stamp or reset the epoch.
	if responses.RespondedCount == 0 {
		responses.KeyServersChangeBlock = currentSetChangeBlock
	}
	if responses.KeyServersChangeBlock != currentSetChangeBlock {
		responses.RespondedMask = cluster.KeyServersMask{}
		responses.RespondedCount = 0
		responses.MaxResponseSupport = 0
		tally.ResetRequest(requestKey)
		responses.KeyServersChangeBlock = currentSetChangeBlock
	}

	// Step 3: duplicate response is silently ignored.
	if responses.RespondedMask.IsSet(keyServerIndex) {
		return Unconfirmed
	}

	// Step 4: record the response.
	responses.RespondedMask = responses.RespondedMask.Union(cluster.FromIndex(keyServerIndex))
	responses.RespondedCount++
	count := tally.Inc(requestKey, responseValue)
	if count >= responses.MaxResponseSupport {
		responses.MaxResponseSupport = count
	}

	// Step 5.
	support := responses.MaxResponseSupport
	need := threshold + 1
	if support >= need {
		return Confirmed
	}

	// Step 6.
	remaining := currentSetSize - int(responses.RespondedCount)
	if int(support)+remaining < int(need) {
		return Impossible
	}

	// Step 7.
	return Unconfirmed
}

// MapTally is a plain Go-map-backed storage.Tally, used by package tests
// and anywhere a real key-value store isn't warranted. memstore provides
// the buntdb-backed implementation the design note's "any key-value
// store with range-remove-by-prefix semantics" calls for.
type MapTally struct {
	counts map[string]map[string]uint8
}

func NewMapTally() *MapTally {
	return &MapTally{counts: make(map[string]map[string]uint8)}
}

func (t *MapTally) Inc(requestKey, responseKey []byte) uint8 {
	row, ok := t.counts[string(requestKey)]
	if !ok {
		row = make(map[string]uint8)
		t.counts[string(requestKey)] = row
	}
	row[string(responseKey)]++
	return row[string(responseKey)]
}

func (t *MapTally) ResetRequest(requestKey []byte) {
	delete(t.counts, string(requestKey))
}
