package migration

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/memstore"
)

const owner = cluster.AccountId("owner")

func ksID(b byte) cluster.KeyServerId {
	var id cluster.KeyServerId
	id[0] = b
	return id
}

func migrationID(b byte) cluster.MigrationId {
	var id cluster.MigrationId
	id[0] = b
	return id
}

func genesisEntry(id cluster.KeyServerId) cluster.KeyServerEntry {
	return cluster.KeyServerEntry{ID: id, Record: cluster.KeyServerRecord{Address: cluster.NetworkAddress("addr")}}
}

func newMachine(genesis ...cluster.KeyServerEntry) (*Machine, *memstore.Store) {
	store := memstore.New(owner, genesis)
	return New(store), store
}

var _ = Describe("CompleteInitialization", func() {
	It("transitions Uninitialized to Idle exactly once", func() {
		m, store := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(store.Sets().IsInitialized).To(BeTrue())
		Expect(m.CompleteInitialization(owner)).To(HaveOccurred())
	})

	It("rejects a caller that is not the owner", func() {
		m, _ := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization("someone-else")).To(HaveOccurred())
	})
})

var _ = Describe("New-set admin edits", func() {
	It("adds, updates, and removes from the new set without touching current", func() {
		m, store := newMachine(genesisEntry(ksID(1)))

		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Sets().New.Contains(ksID(2))).To(BeTrue())
		Expect(store.Sets().Current.Contains(ksID(2))).To(BeFalse())

		Expect(m.UpdateKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2b"))).To(Succeed())
		rec, _ := store.Sets().New.Get(ksID(2))
		Expect(rec.Address).To(Equal(cluster.NetworkAddress("addr-2b")))

		Expect(m.RemoveKeyServer(owner, ksID(2))).To(Succeed())
		Expect(store.Sets().New.Contains(ksID(2))).To(BeFalse())
	})

	It("rejects edits to the new set while a migration is in progress", func() {
		m, store := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller", ksID(1))).To(Succeed())
		Expect(m.StartMigration("caller", migrationID(1))).To(Succeed())

		Expect(m.AddKeyServer(owner, ksID(3), cluster.NetworkAddress("addr-3"))).To(HaveOccurred())
	})
})

var _ = Describe("StartMigration", func() {
	It("rejects starting when current and new sets are identical", func() {
		m, store := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(store.Registry().ClaimId("caller", ksID(1))).To(Succeed())

		Expect(m.StartMigration("caller", migrationID(1))).To(HaveOccurred())
	})

	It("elects the lexicographically smallest id in current intersect new", func() {
		m, store := newMachine(genesisEntry(ksID(5)), genesisEntry(ksID(9)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.RemoveKeyServer(owner, ksID(9))).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller", ksID(5))).To(Succeed())

		Expect(m.StartMigration("caller", migrationID(1))).To(Succeed())
		Expect(store.Sets().Migrating.Master).To(Equal(ksID(5)))
	})

	It("falls back to the smallest id in current when the intersection is empty", func() {
		m, store := newMachine(genesisEntry(ksID(7)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.RemoveKeyServer(owner, ksID(7))).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller", ksID(7))).To(Succeed())

		Expect(m.StartMigration("caller", migrationID(1))).To(Succeed())
		Expect(store.Sets().Migrating.Master).To(Equal(ksID(7)))
	})

	It("rejects starting a second migration while one is already in progress", func() {
		m, store := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller", ksID(1))).To(Succeed())
		Expect(m.StartMigration("caller", migrationID(1))).To(Succeed())

		Expect(m.StartMigration("caller", migrationID(2))).To(HaveOccurred())
	})
})

var _ = Describe("ConfirmMigration", func() {
	It("is idempotent per caller", func() {
		m, store := newMachine(genesisEntry(ksID(1)), genesisEntry(ksID(2)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.RemoveKeyServer(owner, ksID(2))).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(3), cluster.NetworkAddress("addr-3"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller1", ksID(1))).To(Succeed())
		Expect(store.Registry().ClaimId("caller3", ksID(3))).To(Succeed())
		Expect(m.StartMigration("caller1", migrationID(1))).To(Succeed())

		Expect(m.ConfirmMigration("caller1", migrationID(1))).To(Succeed())
		Expect(m.ConfirmMigration("caller1", migrationID(1))).To(Succeed())
		Expect(store.Sets().Migrating).NotTo(BeNil())
	})

	It("rotates current and bumps the epoch once every migration-set member has confirmed", func() {
		m, store := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.RemoveKeyServer(owner, ksID(1))).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller1", ksID(1))).To(Succeed())
		Expect(store.Registry().ClaimId("caller2", ksID(2))).To(Succeed())
		Expect(m.StartMigration("caller1", migrationID(1))).To(Succeed())

		store.SetBlockNumber(42)
		Expect(m.ConfirmMigration("caller2", migrationID(1))).To(Succeed())

		Expect(store.Sets().Migrating).To(BeNil())
		Expect(store.Sets().Current.Contains(ksID(2))).To(BeTrue())
		Expect(store.Sets().Current.Contains(ksID(1))).To(BeFalse())
		Expect(store.Sets().CurrentSetChangeBlock).To(Equal(uint64(42)))
	})

	It("rejects a migration id that does not match the in-progress migration", func() {
		m, store := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller1", ksID(1))).To(Succeed())
		Expect(m.StartMigration("caller1", migrationID(1))).To(Succeed())

		Expect(m.ConfirmMigration("caller1", migrationID(2))).To(HaveOccurred())
	})
})

var _ = Describe("Snapshot", func() {
	It("reports the in-progress migration", func() {
		m, store := newMachine(genesisEntry(ksID(1)))
		Expect(m.CompleteInitialization(owner)).To(Succeed())
		Expect(m.AddKeyServer(owner, ksID(2), cluster.NetworkAddress("addr-2"))).To(Succeed())
		Expect(store.Registry().ClaimId("caller1", ksID(1))).To(Succeed())
		Expect(m.StartMigration("caller1", migrationID(1))).To(Succeed())

		snap := m.Snapshot()
		Expect(snap.Migration).NotTo(BeNil())
		Expect(snap.Migration.ID).To(Equal(migrationID(1)))
		Expect(snap.Current).To(HaveLen(1))
		Expect(snap.New).To(HaveLen(2))
	})
})
