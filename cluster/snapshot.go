package cluster

// KeyServerRecord is what a key-server set maps a KeyServerId to: its
// off-chain network address and its stable ordinal index (§3, §4.3). The
// index is the bit position the record occupies in a KeyServersMask for
// as long as the record stays in the current set.
type KeyServerRecord struct {
	Address NetworkAddress
	Index   uint8
}

// KeyServerEntry pairs an id with its record, used wherever an ordered
// enumeration of a set is returned to a caller (snapshots, master
// selection, fee splitting).
type KeyServerEntry struct {
	ID     KeyServerId
	Record KeyServerRecord
}

// MigrationSnapshot is the read-only view of an in-progress migration
// (§6 query surface). It keeps both the confirming set (as an ordered
// slice, for display) and exposes the same information the state
// machine tracks internally as a set.
type MigrationSnapshot struct {
	ID         MigrationId
	Set        []KeyServerEntry
	Master     KeyServerId
	Confirmed  []KeyServerId
}

// KeyServerSetSnapshot is the value returned by the key_server_set_snapshot
// query (§6): the current and new sets, plus the in-progress migration
// if any.
type KeyServerSetSnapshot struct {
	Current   []KeyServerEntry
	New       []KeyServerEntry
	Migration *MigrationSnapshot
}
