package keystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssmgr/ssmgr/cluster"
)

func id(b byte) cluster.EntityId {
	var e cluster.EntityId
	e[0] = b
	return e
}

func TestInsertAssignsSmallestFreeIndex(t *testing.T) {
	s := NewSet()
	require.True(t, s.Insert(id(1), cluster.NetworkAddress("a")))
	require.True(t, s.Insert(id(2), cluster.NetworkAddress("b")))

	r1, _ := s.Get(id(1))
	r2, _ := s.Get(id(2))
	assert.Equal(t, uint8(0), r1.Index)
	assert.Equal(t, uint8(1), r2.Index)

	require.True(t, s.Remove(id(1)))
	require.True(t, s.Insert(id(3), cluster.NetworkAddress("c")))
	r3, _ := s.Get(id(3))
	assert.Equal(t, uint8(0), r3.Index, "freed index 0 should be reused")
}

func TestInsertRejectsDuplicate(t *testing.T) {
	s := NewSet()
	require.True(t, s.Insert(id(1), cluster.NetworkAddress("a")))
	assert.False(t, s.Insert(id(1), cluster.NetworkAddress("b")))
}

func TestUpdateKeepsIndex(t *testing.T) {
	s := NewSet()
	require.True(t, s.Insert(id(1), cluster.NetworkAddress("a")))
	before, _ := s.Get(id(1))

	require.True(t, s.Update(id(1), cluster.NetworkAddress("z")))
	after, _ := s.Get(id(1))

	assert.Equal(t, before.Index, after.Index)
	assert.Equal(t, cluster.NetworkAddress("z"), after.Address)
}

func TestUpdateAbsentIdFails(t *testing.T) {
	s := NewSet()
	assert.False(t, s.Update(id(1), cluster.NetworkAddress("a")))
}

func TestRemoveAbsentIdFails(t *testing.T) {
	s := NewSet()
	assert.False(t, s.Remove(id(1)))
}

func TestEnumerateIsSortedById(t *testing.T) {
	s := NewSet()
	require.True(t, s.Insert(id(3), cluster.NetworkAddress("c")))
	require.True(t, s.Insert(id(1), cluster.NetworkAddress("a")))
	require.True(t, s.Insert(id(2), cluster.NetworkAddress("b")))

	entries := s.Enumerate()
	require.Len(t, entries, 3)
	assert.Equal(t, id(1), entries[0].ID)
	assert.Equal(t, id(2), entries[1].ID)
	assert.Equal(t, id(3), entries[2].ID)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSet()
	require.True(t, s.Insert(id(1), cluster.NetworkAddress("a")))

	clone := s.Clone()
	require.True(t, clone.Insert(id(2), cluster.NetworkAddress("b")))

	assert.False(t, s.Contains(id(2)), "mutating the clone must not affect the original")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, clone.Len())
}

func TestEqualIgnoresIndex(t *testing.T) {
	a := NewSet()
	b := NewSet()
	require.True(t, a.Insert(id(1), cluster.NetworkAddress("x")))
	require.True(t, b.Insert(id(1), cluster.NetworkAddress("x")))
	// Force a different index assignment in b.
	require.True(t, b.Insert(id(2), cluster.NetworkAddress("y")))
	require.True(t, b.Remove(id(2)))

	assert.True(t, a.Equal(b))
}

func TestIntersectReturnsSortedCommonIds(t *testing.T) {
	a := NewSet()
	b := NewSet()
	require.True(t, a.Insert(id(1), cluster.NetworkAddress("a")))
	require.True(t, a.Insert(id(2), cluster.NetworkAddress("a")))
	require.True(t, b.Insert(id(2), cluster.NetworkAddress("b")))
	require.True(t, b.Insert(id(3), cluster.NetworkAddress("b")))

	common := a.Intersect(b)
	require.Len(t, common, 1)
	assert.Equal(t, id(2), common[0])
}

func TestIDsMatchesEnumerateOrder(t *testing.T) {
	s := NewSet()
	require.True(t, s.Insert(id(2), cluster.NetworkAddress("b")))
	require.True(t, s.Insert(id(1), cluster.NetworkAddress("a")))

	ids := s.IDs()
	require.Len(t, ids, 2)
	assert.Equal(t, id(1), ids[0])
	assert.Equal(t, id(2), ids[1])
}
