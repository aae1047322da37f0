package cluster

import "github.com/ssmgr/ssmgr/cmn"

const maskWords = cmn.MaxKeyServers / 64 // 4 uint64 words = 256 bits

// KeyServersMask is a fixed 256-bit bitset over key-server ordinals
// (§4.1). It is deliberately narrow: the only operations its consumers
// need are "the bit for this index", "is this bit set", and "union two
// masks", rather than a general bit-vector API.
type KeyServersMask [maskWords]uint64

// FromIndex returns a mask with only bit i set. i must be < cmn.MaxKeyServers;
// callers are expected to have already validated the index (key-server
// ordinals are assigned by keystore.Set and never exceed the mask width).
func FromIndex(i uint8) KeyServersMask {
	var m KeyServersMask
	m[i/64] |= 1 << (i % 64)
	return m
}

func (m KeyServersMask) IsSet(i uint8) bool {
	return m[i/64]&(1<<(i%64)) != 0
}

func (m KeyServersMask) Union(other KeyServersMask) KeyServersMask {
	var out KeyServersMask
	for w := range out {
		out[w] = m[w] | other[w]
	}
	return out
}

func (m KeyServersMask) Equal(other KeyServersMask) bool {
	return m == other
}

// PopCount returns the number of set bits, used only to check the
// responded_count == popcount(responded_mask) invariant in tests.
func (m KeyServersMask) PopCount() int {
	n := 0
	for _, w := range m {
		for w != 0 {
			w &= w - 1
			n++
		}
	}
	return n
}
