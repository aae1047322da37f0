// Package cluster defines the identifiers and small value types shared by
// every component of the coordination layer: entity and key-server
// identifiers, network addresses, and the key-servers bitmask.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cluster

import (
	"bytes"
	"encoding/hex"
	"sort"
)

const idSize = 32

// EntityId is an opaque fixed-width (256-bit) identifier for any
// principal: a requester or a key server. It is chosen off-chain by the
// claimant and bound to exactly one AccountId via the entity registry.
type EntityId [idSize]byte

// KeyServerId is an EntityId that has been admitted into one of the
// key-server sets. It is a distinct name, not a distinct type, matching
// the spec's "EntityId that has been admitted" definition.
type KeyServerId = EntityId

// ServerKeyId is a logical key identifier chosen by the requester.
type ServerKeyId [idSize]byte

// MigrationId is chosen by the entity that starts a migration.
type MigrationId [idSize]byte

// NetworkAddress is an opaque byte string understood by the off-chain
// key-server daemons; this module never parses or dials it.
type NetworkAddress []byte

// AccountId is a host-chain account, bound to at most one EntityId.
type AccountId string

func (id EntityId) String() string { return hex.EncodeToString(id[:]) }

func (id EntityId) IsZero() bool { return id == EntityId{} }

// ServerKeyId and MigrationId are distinct array types (not aliases), so
// each needs its own Stringer -- fmt does not auto-format a byte array as
// a string the way it does a []byte, only a defined String() method gets
// "%s"/"%v" to print hex instead of a bracketed byte list.
func (id ServerKeyId) String() string { return hex.EncodeToString(id[:]) }

func (id MigrationId) String() string { return hex.EncodeToString(id[:]) }

// Less gives EntityId (and therefore KeyServerId) the lexicographic
// ordering the migration state machine uses to pick a deterministic
// master: the smallest id in a candidate set, byte by byte.
func (id EntityId) Less(other EntityId) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// SortEntityIds returns a new, ascending-sorted copy of ids; used
// wherever a deterministic iteration order over a set of ids matters
// (e.g. snapshot output, master-selection tie-breaking).
func SortEntityIds(ids []EntityId) []EntityId {
	out := make([]EntityId, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (a NetworkAddress) Equal(b NetworkAddress) bool { return bytes.Equal(a, b) }

func (a NetworkAddress) String() string { return string(a) }
