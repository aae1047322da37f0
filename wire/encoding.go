// Package wire implements the canonical binary encoding spec.md §6 calls
// for ("persisted storage layout ... encoding is the host chain's
// canonical ... binary encoding of the declared record types"). Records
// are encoded by hand against the msgp runtime (github.com/tinylib/msgp/msgp)
// rather than through `go generate`-produced (Un)MarshalMsg methods,
// since this repo's tooling never invokes code generation.
package wire

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/ssmgr/ssmgr/cluster"
)

// EncodeKeyServerEntry writes a KeyServerEntry as a three-element msgp
// array: [id, address, index].
func EncodeKeyServerEntry(e cluster.KeyServerEntry) ([]byte, error) {
	var b []byte
	b = msgp.AppendArrayHeader(b, 3)
	b = msgp.AppendBytes(b, e.ID[:])
	b = msgp.AppendBytes(b, e.Record.Address)
	b = msgp.AppendUint8(b, e.Record.Index)
	return b, nil
}

// DecodeKeyServerEntry reads back a value written by EncodeKeyServerEntry.
func DecodeKeyServerEntry(b []byte) (cluster.KeyServerEntry, []byte, error) {
	var entry cluster.KeyServerEntry

	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return entry, b, err
	}
	if n != 3 {
		return entry, b, msgp.ArrayError{Wanted: 3, Got: n}
	}

	idBytes, b, err := msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return entry, b, err
	}
	copy(entry.ID[:], idBytes)

	addr, b, err := msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return entry, b, err
	}
	entry.Record.Address = cluster.NetworkAddress(addr)

	idx, b, err := msgp.ReadUint8Bytes(b)
	if err != nil {
		return entry, b, err
	}
	entry.Record.Index = idx

	return entry, b, nil
}

// EncodeKeyServerEntries encodes a whole set snapshot as a msgp array of
// entries, the shape memstore persists the three key-server sets as.
func EncodeKeyServerEntries(entries []cluster.KeyServerEntry) ([]byte, error) {
	var b []byte
	b = msgp.AppendArrayHeader(b, uint32(len(entries)))
	for _, e := range entries {
		enc, err := EncodeKeyServerEntry(e)
		if err != nil {
			return nil, err
		}
		b = append(b, enc...)
	}
	return b, nil
}

// DecodeKeyServerEntries reads back a value written by
// EncodeKeyServerEntries.
func DecodeKeyServerEntries(b []byte) ([]cluster.KeyServerEntry, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, err
	}
	entries := make([]cluster.KeyServerEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		var entry cluster.KeyServerEntry
		entry, b, err = DecodeKeyServerEntry(b)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
