// Package migration implements the Migration State Machine (§4.4): admin
// edits to the staging (new) key-server set, and the start/confirm
// lifecycle that snapshots new into migration, elects a master, collects
// confirmations, and atomically rotates current on completion.
//
// electMaster is deterministic primary-candidate selection: the
// lexicographically smallest KeyServerId in the intersection of two
// sets. CurrentSetChangeBlock bumps on every membership change, the same
// way an epoch counter would. StartMigration and ConfirmMigration follow a
// two-phase sequence: snapshot new into migration, collect
// confirmations, then atomically rotate. There is no abort path.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package migration

import (
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn"
	"github.com/ssmgr/ssmgr/events"
	"github.com/ssmgr/ssmgr/keystore"
	"github.com/ssmgr/ssmgr/storage"
)

// Machine drives the key-server-set state held in a storage.Store. It
// holds no state of its own; every call reads and mutates store.Sets()
// directly, matching the host's single-threaded, all-or-nothing
// transaction model (§5): a returned error means nothing was mutated.
type Machine struct {
	store storage.Store
}

func New(store storage.Store) *Machine {
	return &Machine{store: store}
}

func (m *Machine) requireOwner(origin cluster.AccountId, sets *storage.SetsState) error {
	if sets.Owner != origin {
		return cmn.NewError(cmn.ErrInvalidOrigin, "origin is not the owner")
	}
	return nil
}

// CompleteInitialization transitions Uninitialized -> Idle. Permitted
// exactly once.
func (m *Machine) CompleteInitialization(origin cluster.AccountId) error {
	sets := m.store.Sets()
	if err := m.requireOwner(origin, sets); err != nil {
		return err
	}
	if sets.IsInitialized {
		return cmn.NewError(cmn.ErrMigrationInvariant, "already initialized")
	}
	sets.IsInitialized = true
	return nil
}

// AddKeyServer inserts id into the new set. Rejected while a migration is
// in progress (new is frozen, per the Migrating state description) or if
// id is already present.
func (m *Machine) AddKeyServer(origin cluster.AccountId, id cluster.KeyServerId, addr cluster.NetworkAddress) error {
	sets := m.store.Sets()
	if err := m.requireOwner(origin, sets); err != nil {
		return err
	}
	if sets.Migrating != nil {
		return cmn.NewError(cmn.ErrSetInvariant, "new set is frozen during migration")
	}
	if !sets.New.Insert(id, addr) {
		return cmn.NewError(cmn.ErrSetInvariant, "key server %s already present in new set", id)
	}
	m.store.Events().DepositEvent(events.KeyServerAdded{ID: id})
	return nil
}

// UpdateKeyServer replaces id's address in the new set. Rejected if
// migrating or if id is absent.
func (m *Machine) UpdateKeyServer(origin cluster.AccountId, id cluster.KeyServerId, addr cluster.NetworkAddress) error {
	sets := m.store.Sets()
	if err := m.requireOwner(origin, sets); err != nil {
		return err
	}
	if sets.Migrating != nil {
		return cmn.NewError(cmn.ErrSetInvariant, "new set is frozen during migration")
	}
	if !sets.New.Update(id, addr) {
		return cmn.NewError(cmn.ErrSetInvariant, "key server %s not present in new set", id)
	}
	m.store.Events().DepositEvent(events.KeyServerUpdated{ID: id})
	return nil
}

// RemoveKeyServer removes id from the new set. A subsequent migration
// carries the deletion into current. Rejected if migrating or if id is
// absent.
func (m *Machine) RemoveKeyServer(origin cluster.AccountId, id cluster.KeyServerId) error {
	sets := m.store.Sets()
	if err := m.requireOwner(origin, sets); err != nil {
		return err
	}
	if sets.Migrating != nil {
		return cmn.NewError(cmn.ErrSetInvariant, "new set is frozen during migration")
	}
	if !sets.New.Remove(id) {
		return cmn.NewError(cmn.ErrSetInvariant, "key server %s not present in new set", id)
	}
	m.store.Events().DepositEvent(events.KeyServerRemoved{ID: id})
	return nil
}

// StartMigration snapshots new into migration, elects a master, and
// records migration_state. The caller must resolve to an entity that is a
// member of current ∪ new.
func (m *Machine) StartMigration(origin cluster.AccountId, migrationID cluster.MigrationId) error {
	sets := m.store.Sets()
	if !sets.IsInitialized {
		return cmn.NewError(cmn.ErrMigrationInvariant, "key server set is not initialized")
	}
	if sets.Migrating != nil {
		return cmn.NewError(cmn.ErrMigrationInvariant, "a migration is already in progress")
	}
	entityID, err := m.store.Registry().ResolveEntityId(origin)
	if err != nil {
		return err
	}
	if !sets.Current.Contains(entityID) && !sets.New.Contains(entityID) {
		return cmn.NewError(cmn.ErrInvalidOrigin, "caller is not a member of the current or new set")
	}
	if sets.Current.Equal(sets.New) {
		return cmn.NewError(cmn.ErrMigrationInvariant, "current and new sets are identical: nothing to migrate")
	}

	if sets.Current.Len() == 0 {
		return cmn.NewError(cmn.ErrMigrationInvariant, "current key-server set is empty: no master candidate")
	}

	migrationSet := sets.New.Clone()
	sets.Migration = migrationSet
	master := electMaster(sets.Current, migrationSet)
	sets.Migrating = &storage.MigrationState{
		ID:        migrationID,
		Master:    master,
		Confirmed: make(map[cluster.KeyServerId]bool),
	}
	m.store.Events().DepositEvent(events.MigrationStarted{MigrationID: migrationID, Master: master})
	return nil
}

// electMaster picks the lexicographically smallest id in current ∩
// migrationSet, falling back to the smallest id in current if that
// intersection is empty (§4.4).
func electMaster(current, migrationSet *keystore.Set) cluster.KeyServerId {
	if candidates := current.Intersect(migrationSet); len(candidates) > 0 {
		return candidates[0]
	}
	// current is non-empty here: StartMigration rejects an empty current
	// set before electing a master.
	return current.IDs()[0]
}

// ConfirmMigration records origin's confirmation. Idempotent per caller;
// when every member of migration_set has confirmed, rotates current to
// migration_set, clears migration state, and bumps the epoch.
func (m *Machine) ConfirmMigration(origin cluster.AccountId, migrationID cluster.MigrationId) error {
	sets := m.store.Sets()
	if sets.Migrating == nil {
		return cmn.NewError(cmn.ErrMigrationInvariant, "no migration in progress")
	}
	if sets.Migrating.ID != migrationID {
		return cmn.NewError(cmn.ErrMigrationInvariant, "migration id does not match the in-progress migration")
	}
	entityID, err := m.store.Registry().ResolveEntityId(origin)
	if err != nil {
		return err
	}
	if !sets.Migration.Contains(entityID) {
		return cmn.NewError(cmn.ErrInvalidOrigin, "caller is not a member of the migration set")
	}

	if sets.Migrating.Confirmed[entityID] {
		return nil // idempotent per caller
	}
	sets.Migrating.Confirmed[entityID] = true

	if len(sets.Migrating.Confirmed) < sets.Migration.Len() {
		return nil
	}

	completedID := sets.Migrating.ID
	sets.Current = sets.Migration
	sets.Migration = nil
	sets.Migrating = nil
	sets.CurrentSetChangeBlock = m.store.BlockNumber()
	m.store.Events().DepositEvent(events.MigrationCompleted{MigrationID: completedID})
	return nil
}

// Snapshot returns the read-only key_server_set_snapshot query result
// (§6).
func (m *Machine) Snapshot() cluster.KeyServerSetSnapshot {
	sets := m.store.Sets()
	snap := cluster.KeyServerSetSnapshot{
		Current: sets.Current.Enumerate(),
		New:     sets.New.Enumerate(),
	}
	if sets.Migrating != nil {
		confirmed := make([]cluster.KeyServerId, 0, len(sets.Migrating.Confirmed))
		for id := range sets.Migrating.Confirmed {
			confirmed = append(confirmed, id)
		}
		snap.Migration = &cluster.MigrationSnapshot{
			ID:        sets.Migrating.ID,
			Set:       sets.Migration.Enumerate(),
			Master:    sets.Migrating.Master,
			Confirmed: cluster.SortEntityIds(confirmed),
		}
	}
	return snap
}
