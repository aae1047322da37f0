// Package registry implements the entity registry (§4.2): the
// bidirectional, injective binding between a host-chain AccountId and an
// off-chain EntityId.
//
// Follows the same sentinel-error idiom a permission/token binding would
// use to guard against conflicting claims, narrowed to this package's
// binding: one account, one id, claimed exactly once.
/*
 * Copyright (c) 2018-2022, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn"
)

// Registry holds the two inverse maps described in spec.md §3. Both maps
// are always kept in agreement; ClaimId is the only mutator and installs
// both atomically.
type Registry struct {
	claimedID map[cluster.AccountId]cluster.EntityId
	claimedBy map[cluster.EntityId]cluster.AccountId
}

func New() *Registry {
	return &Registry{
		claimedID: make(map[cluster.AccountId]cluster.EntityId),
		claimedBy: make(map[cluster.EntityId]cluster.AccountId),
	}
}

// ClaimId binds origin to id. Fails with cmn.ErrIDConflict if id is
// already claimed by anyone, or if origin has already claimed a
// (possibly different) id -- an account may claim at most one id, ever.
func (r *Registry) ClaimId(origin cluster.AccountId, id cluster.EntityId) error {
	if _, taken := r.claimedBy[id]; taken {
		return cmn.NewError(cmn.ErrIDConflict, "id %s is already claimed", id)
	}
	if _, already := r.claimedID[origin]; already {
		return cmn.NewError(cmn.ErrIDConflict, "account has already claimed an id")
	}
	r.claimedBy[id] = origin
	r.claimedID[origin] = id
	return nil
}

// ResolveEntityId returns the EntityId origin has claimed. Fails with
// cmn.ErrInvalidOrigin if origin has no claim -- this is the check every
// service-request admission path runs before accepting a "from" entity.
func (r *Registry) ResolveEntityId(origin cluster.AccountId) (cluster.EntityId, error) {
	id, ok := r.claimedID[origin]
	if !ok {
		return cluster.EntityId{}, cmn.NewError(cmn.ErrInvalidOrigin, "account has not claimed any id")
	}
	return id, nil
}

// AccountOf returns the account that claimed id, used to pay out a
// key-server's share of a service fee. Fails with cmn.ErrInvalidOrigin
// if id has never been claimed.
func (r *Registry) AccountOf(id cluster.EntityId) (cluster.AccountId, error) {
	acct, ok := r.claimedBy[id]
	if !ok {
		return "", cmn.NewError(cmn.ErrInvalidOrigin, "key server %s has not claimed an id", id)
	}
	return acct, nil
}

// IsClaimed reports whether id has already been bound to an account.
func (r *Registry) IsClaimed(id cluster.EntityId) bool {
	_, ok := r.claimedBy[id]
	return ok
}
