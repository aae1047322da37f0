package cmn

// Mask width: key server ordinals are assigned 0..MaxKeyServers-1 and used
// directly as bit positions in a KeyServersMask.
const MaxKeyServers = 256

// Default per-kind queue capacities, carried over from the source runtime
// module (MAX_REQUESTS constants in server_key_generation.rs / document_key_storing.rs).
const (
	DefaultServerKeyGenerationQueueCap       = 4
	DefaultServerKeyRetrievalQueueCap        = 4
	DefaultDocumentKeyStoreQueueCap          = 8
	DefaultDocumentKeyShadowRetrievalQueueCap = 8
)

// TransactionRetryIntervalBlocks is the off-chain daemon's retry floor for
// re-submitting a start/confirm migration transaction for the same
// migration id (see txretry). It lives here, not in migration, because it
// is a property of the external transaction-submission collaborator, not
// of the state machine itself.
const TransactionRetryIntervalBlocks = 30
