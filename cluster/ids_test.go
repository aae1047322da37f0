package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLessIsLexicographic(t *testing.T) {
	var a, b EntityId
	a[0] = 1
	b[0] = 2
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestIsZero(t *testing.T) {
	var a EntityId
	assert.True(t, a.IsZero())
	a[31] = 1
	assert.False(t, a.IsZero())
}

func TestSortEntityIdsAscendingAndNonDestructive(t *testing.T) {
	var a, b, c EntityId
	a[0], b[0], c[0] = 3, 1, 2
	in := []EntityId{a, b, c}

	out := SortEntityIds(in)
	assert.Equal(t, []EntityId{b, c, a}, out)
	assert.Equal(t, []EntityId{a, b, c}, in, "input slice must be untouched")
}

func TestNetworkAddressEqual(t *testing.T) {
	assert.True(t, NetworkAddress("x").Equal(NetworkAddress("x")))
	assert.False(t, NetworkAddress("x").Equal(NetworkAddress("y")))
}
