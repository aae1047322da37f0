// Package acl [EXPANSION] gates document-key-shadow-retrieval admission
// on an access-control lookup, mirroring
// original_source/secret-store/primitives/src/acl_storage.rs: the
// aggregator and queue templates are reused verbatim (spec.md §1), but
// shadow retrieval additionally asks "is requester allowed to read key K's
// shadow" before admission proceeds.
package acl

import "github.com/ssmgr/ssmgr/cluster"

// Storage answers whether requester may retrieve the document-key shadow
// for key. Concrete chain storage would back this with a real ACL
// contract; this repo ships AlwaysAllow as the stand-in used by
// memstore/chainsim and the demo CLI.
type Storage interface {
	IsAllowed(requester cluster.EntityId, key cluster.ServerKeyId) bool
}

// AlwaysAllow grants every request. It exists so ssmod has a concrete
// collaborator to wire without committing this repo to any particular
// access-control policy -- that policy lives outside this module's scope,
// same as the off-chain key-server daemons and the transaction-submission
// helper.
type AlwaysAllow struct{}

func (AlwaysAllow) IsAllowed(cluster.EntityId, cluster.ServerKeyId) bool { return true }
