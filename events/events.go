// Package events defines the event vocabulary emitted by the module
// (§6) and the sink interface a host chain (or, in this repo, chainsim)
// implements to receive them.
package events

import "github.com/ssmgr/ssmgr/cluster"

// Event is a marker interface implemented by every concrete event type
// below. A Go switch on the concrete type is the idiomatic replacement
// for the substrate source's `decl_event!` enum.
type Event interface {
	eventTag() string
}

type Sink interface {
	DepositEvent(ev Event)
}

type tag string

func (t tag) eventTag() string { return string(t) }

type KeyServerAdded struct {
	tag
	ID cluster.KeyServerId
}

type KeyServerUpdated struct {
	tag
	ID cluster.KeyServerId
}

type KeyServerRemoved struct {
	tag
	ID cluster.KeyServerId
}

type MigrationStarted struct {
	tag
	MigrationID cluster.MigrationId
	Master      cluster.KeyServerId
}

type MigrationCompleted struct {
	tag
	MigrationID cluster.MigrationId
}

type ServerKeyGenerationRequested struct {
	tag
	Key       cluster.ServerKeyId
	Author    cluster.EntityId
	Threshold uint8
}

type ServerKeyGenerated struct {
	tag
	Key cluster.ServerKeyId
	Pub []byte
}

type ServerKeyGenerationError struct {
	tag
	Key cluster.ServerKeyId
}

type ServerKeyRetrievalRequested struct {
	tag
	Key cluster.ServerKeyId
}

type ServerKeyRetrieved struct {
	tag
	Key cluster.ServerKeyId
	Pub []byte
}

type ServerKeyRetrievalError struct {
	tag
	Key cluster.ServerKeyId
}

type DocumentKeyStoreRequested struct {
	tag
	Key           cluster.ServerKeyId
	Author        cluster.EntityId
	CommonPoint   []byte
	EncryptedPoint []byte
}

type DocumentKeyStored struct {
	tag
	Key cluster.ServerKeyId
}

type DocumentKeyStoreError struct {
	tag
	Key cluster.ServerKeyId
}

// DocumentKeyShadowRetrievalRequested/Retrieved/Error [EXPANSION]: the
// shadow-retrieval surface reuses the aggregator verbatim (spec.md §1)
// and therefore needs its own Requested/success/failure events, by the
// same template as every other service kind.
type DocumentKeyShadowRetrievalRequested struct {
	tag
	Key cluster.ServerKeyId
}

type DocumentKeyShadowRetrieved struct {
	tag
	Key   cluster.ServerKeyId
	Shadows [][]byte
}

type DocumentKeyShadowRetrievalError struct {
	tag
	Key cluster.ServerKeyId
}
