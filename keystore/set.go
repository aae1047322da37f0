// Package keystore implements the key-server set storage (§4.3): an
// indexed map from KeyServerId to {address, index}, with stable index
// assignment across insert/remove.
//
// Set plays the role a node map enumerated by count/get helpers would,
// generalized to the three current/migration/new sets the migration
// state machine rotates between, with the index-reuse rule spec.md §4.3
// requires.
package keystore

import (
	"sort"

	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn"
)

// Set is one of the three key-server sets (current, migration, new). It
// is not safe for concurrent use; the host's single-threaded block
// processing loop is the only caller (§5).
type Set struct {
	servers map[cluster.KeyServerId]cluster.KeyServerRecord
	usedIdx map[uint8]bool
}

func NewSet() *Set {
	return &Set{
		servers: make(map[cluster.KeyServerId]cluster.KeyServerRecord),
		usedIdx: make(map[uint8]bool),
	}
}

func (s *Set) Len() int { return len(s.servers) }

func (s *Set) Contains(id cluster.KeyServerId) bool {
	_, ok := s.servers[id]
	return ok
}

func (s *Set) Get(id cluster.KeyServerId) (cluster.KeyServerRecord, bool) {
	r, ok := s.servers[id]
	return r, ok
}

// nextIndex returns the smallest ordinal not currently in use.
func (s *Set) nextIndex() uint8 {
	for i := 0; i < cmn.MaxKeyServers; i++ {
		if !s.usedIdx[uint8(i)] {
			return uint8(i)
		}
	}
	// Unreachable given cmn.MaxKeyServers == the mask width and callers
	// that respect it; a set can never legitimately grow past 256
	// entries since indices are bit positions in a KeyServersMask.
	panic("keystore: key-server set exhausted all 256 indices")
}

// Insert adds id with the given address, assigning it the smallest
// unused ordinal. Returns false if id is already present (caller's job
// to translate that into cmn.ErrSetInvariant).
func (s *Set) Insert(id cluster.KeyServerId, addr cluster.NetworkAddress) bool {
	if s.Contains(id) {
		return false
	}
	idx := s.nextIndex()
	s.usedIdx[idx] = true
	s.servers[id] = cluster.KeyServerRecord{Address: addr, Index: idx}
	return true
}

// Update replaces id's address in place, keeping its index. Returns
// false if id is absent.
func (s *Set) Update(id cluster.KeyServerId, addr cluster.NetworkAddress) bool {
	r, ok := s.servers[id]
	if !ok {
		return false
	}
	r.Address = addr
	s.servers[id] = r
	return true
}

// Remove deletes id and frees its index slot for reuse. Returns false if
// id is absent.
func (s *Set) Remove(id cluster.KeyServerId) bool {
	r, ok := s.servers[id]
	if !ok {
		return false
	}
	delete(s.servers, id)
	delete(s.usedIdx, r.Index)
	return true
}

// Enumerate returns every entry in ascending id order, for deterministic
// iteration (fee splitting, snapshots, master-candidate search).
func (s *Set) Enumerate() []cluster.KeyServerEntry {
	out := make([]cluster.KeyServerEntry, 0, len(s.servers))
	for id, rec := range s.servers {
		out = append(out, cluster.KeyServerEntry{ID: id, Record: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

func (s *Set) IDs() []cluster.KeyServerId {
	entries := s.Enumerate()
	ids := make([]cluster.KeyServerId, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// Clone returns a deep, independent copy -- used to snapshot New into
// Migration at start_migration, per §4.4 ("snapshot new into migration_set").
func (s *Set) Clone() *Set {
	dst := NewSet()
	for id, rec := range s.servers {
		dst.servers[id] = rec
	}
	for idx := range s.usedIdx {
		dst.usedIdx[idx] = true
	}
	return dst
}

// Equal reports whether two sets hold the same (id, address) pairs,
// ignoring index assignment (indices are allowed to differ between the
// three sets for the same id per §4.3). Used by start_migration's
// "current == new: nothing to migrate" check.
func (s *Set) Equal(other *Set) bool {
	if len(s.servers) != len(other.servers) {
		return false
	}
	for id, rec := range s.servers {
		oRec, ok := other.servers[id]
		if !ok || !rec.Address.Equal(oRec.Address) {
			return false
		}
	}
	return true
}

// Intersect returns the ids present in both sets, ascending order --
// used to find migration-master candidates (current ∩ migration_set).
func (s *Set) Intersect(other *Set) []cluster.KeyServerId {
	var out []cluster.KeyServerId
	for id := range s.servers {
		if other.Contains(id) {
			out = append(out, id)
		}
	}
	ids := cluster.SortEntityIds(out)
	return ids
}
