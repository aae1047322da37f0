// Package ssmod wires the migration state machine, the service queues,
// and the entity registry behind the external API surface named in §6:
// one method per dispatchable, a typed event vocabulary, and the
// read-only query functions.
//
// Module.New plays the role a daemon's startup wiring plays, and
// GenesisConfig plays the role of a parsed config section layered over
// genesis defaults.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package ssmod

import (
	"encoding/binary"

	"github.com/rs/zerolog"

	"github.com/ssmgr/ssmgr/acl"
	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn"
	"github.com/ssmgr/ssmgr/cmn/log"
	"github.com/ssmgr/ssmgr/events"
	"github.com/ssmgr/ssmgr/metrics"
	"github.com/ssmgr/ssmgr/migration"
	"github.com/ssmgr/ssmgr/servicequeue"
	"github.com/ssmgr/ssmgr/storage"
)

// Fees holds the per-service-kind fee charged on admission (§6 genesis
// configuration: "per-service fee values").
type Fees struct {
	ServerKeyGeneration        uint64
	ServerKeyRetrieval         uint64
	DocumentKeyStore           uint64
	DocumentKeyShadowRetrieval uint64
}

// GenesisConfig is the non-storage half of genesis (§6): the sets
// themselves are seeded directly into the storage.Store (see
// storage.NewSetsState) before New is called.
type GenesisConfig struct {
	Owner                     cluster.AccountId
	Fees                      Fees
	SeedClaims                map[cluster.AccountId]cluster.EntityId
	IsInitializationCompleted bool
	ACL                       acl.Storage // nil defaults to acl.AlwaysAllow{}
}

// Module is the external API surface: one method per dispatchable, plus
// the read-only query methods under "queries" below.
type Module struct {
	store   storage.Store
	machine *migration.Machine
	acl     acl.Storage
	fees    Fees

	generation      *servicequeue.Queue[servicequeue.GenerationPayload]
	retrieval       *servicequeue.Queue[servicequeue.RetrievalPayload]
	docStore        *servicequeue.Queue[servicequeue.StorePayload]
	shadowRetrieval *servicequeue.Queue[servicequeue.ShadowRetrievalPayload]

	// keyThresholds records the threshold a server key was generated
	// with, looked up by the [EXPANSION] retrieval/store/shadow
	// dispatchables (their requests have no threshold field of their
	// own -- they reuse the threshold fixed at generation time, same as
	// the original source's server-key-threshold lookup).
	keyThresholds map[cluster.ServerKeyId]uint8

	logger zerolog.Logger
}

func New(store storage.Store, genesis GenesisConfig) (*Module, error) {
	sets := store.Sets()
	sets.Owner = genesis.Owner
	if genesis.IsInitializationCompleted {
		sets.IsInitialized = true
	}

	reg := store.Registry()
	for account, id := range genesis.SeedClaims {
		if err := reg.ClaimId(account, id); err != nil {
			return nil, err
		}
	}

	aclStorage := genesis.ACL
	if aclStorage == nil {
		aclStorage = acl.AlwaysAllow{}
	}

	module := &Module{
		store:           store,
		machine:         migration.New(store),
		acl:             aclStorage,
		fees:            genesis.Fees,
		generation:      servicequeue.NewQueue[servicequeue.GenerationPayload](cmn.DefaultServerKeyGenerationQueueCap, servicequeue.KindGeneration),
		retrieval:       servicequeue.NewQueue[servicequeue.RetrievalPayload](cmn.DefaultServerKeyRetrievalQueueCap, servicequeue.KindRetrieval),
		docStore:        servicequeue.NewQueue[servicequeue.StorePayload](cmn.DefaultDocumentKeyStoreQueueCap, servicequeue.KindDocumentStore),
		shadowRetrieval: servicequeue.NewQueue[servicequeue.ShadowRetrievalPayload](cmn.DefaultDocumentKeyShadowRetrievalQueueCap, servicequeue.KindShadowRetrieval),
		keyThresholds:   make(map[cluster.ServerKeyId]uint8),
		logger:          log.WithComponent("ssmod"),
	}

	metrics.QueueCapacity.WithLabelValues(metrics.KindServerKeyGeneration).Set(float64(module.generation.Cap()))
	metrics.QueueCapacity.WithLabelValues(metrics.KindServerKeyRetrieval).Set(float64(module.retrieval.Cap()))
	metrics.QueueCapacity.WithLabelValues(metrics.KindDocumentKeyStore).Set(float64(module.docStore.Cap()))
	metrics.QueueCapacity.WithLabelValues(metrics.KindDocumentKeyShadowRetrieval).Set(float64(module.shadowRetrieval.Cap()))

	return module, nil
}

// --- admin / membership dispatchables ---

func (m *Module) ClaimID(origin cluster.AccountId, id cluster.EntityId) error {
	return m.store.Registry().ClaimId(origin, id)
}

func (m *Module) CompleteInitialization(origin cluster.AccountId) error {
	return m.machine.CompleteInitialization(origin)
}

func (m *Module) AddKeyServer(origin cluster.AccountId, id cluster.KeyServerId, addr cluster.NetworkAddress) error {
	return m.machine.AddKeyServer(origin, id, addr)
}

func (m *Module) UpdateKeyServer(origin cluster.AccountId, id cluster.KeyServerId, addr cluster.NetworkAddress) error {
	return m.machine.UpdateKeyServer(origin, id, addr)
}

func (m *Module) RemoveKeyServer(origin cluster.AccountId, id cluster.KeyServerId) error {
	return m.machine.RemoveKeyServer(origin, id)
}

func (m *Module) StartMigration(origin cluster.AccountId, migrationID cluster.MigrationId) error {
	if err := m.machine.StartMigration(origin, migrationID); err != nil {
		log.Rejected(m.logger, "start_migration", err)
		return err
	}
	metrics.MigrationsInProgress.Set(1)
	log.Applied(m.logger, "start_migration", map[string]interface{}{"migration_id": migrationID.String()})
	return nil
}

func (m *Module) ConfirmMigration(origin cluster.AccountId, migrationID cluster.MigrationId) error {
	if err := m.machine.ConfirmMigration(origin, migrationID); err != nil {
		log.Rejected(m.logger, "confirm_migration", err)
		return err
	}
	if m.store.Sets().Migrating == nil {
		metrics.MigrationsInProgress.Set(0)
		metrics.MigrationEpoch.Set(float64(m.store.Sets().CurrentSetChangeBlock))
		metrics.KeyServerSetSize.WithLabelValues("current").Set(float64(m.store.Sets().Current.Len()))
		log.Applied(m.logger, "confirm_migration", map[string]interface{}{
			"migration_id": migrationID.String(), "rotated": true,
		})
	}
	return nil
}

// --- service request admission dispatchables ---

func (m *Module) GenerateServerKey(origin cluster.AccountId, key cluster.ServerKeyId, threshold uint8) error {
	validate := func(n int) error {
		if int(threshold)+1 > n {
			return cmn.NewError(cmn.ErrBadParameters, "threshold %d too large for a set of size %d", threshold, n)
		}
		return nil
	}
	err := servicequeue.Admit(
		m.generation, m.store, origin, key, m.fees.ServerKeyGeneration,
		servicequeue.GenerationPayload{Threshold: threshold}, validate,
		func(author cluster.EntityId) events.Event {
			return events.ServerKeyGenerationRequested{Key: key, Author: author, Threshold: threshold}
		},
	)
	if err != nil {
		log.Rejected(m.logger, "generate_server_key", err)
		return err
	}
	m.keyThresholds[key] = threshold
	metrics.RequestsAdmitted.WithLabelValues(metrics.KindServerKeyGeneration).Inc()
	metrics.QueueLength.WithLabelValues(metrics.KindServerKeyGeneration).Set(float64(m.generation.Len()))
	return nil
}

// RetrieveServerKey [EXPANSION]: the admission entry point that must
// exist for ServerKeyRetrievalRequested (named in spec.md §6's event
// list) to ever fire.
func (m *Module) RetrieveServerKey(origin cluster.AccountId, key cluster.ServerKeyId) error {
	if _, ok := m.keyThresholds[key]; !ok {
		return cmn.NewError(cmn.ErrBadParameters, "server key %s has not been generated", key)
	}
	err := servicequeue.Admit(
		m.retrieval, m.store, origin, key, m.fees.ServerKeyRetrieval,
		servicequeue.RetrievalPayload{}, nil,
		func(author cluster.EntityId) events.Event {
			return events.ServerKeyRetrievalRequested{Key: key}
		},
	)
	if err != nil {
		log.Rejected(m.logger, "retrieve_server_key", err)
		return err
	}
	metrics.RequestsAdmitted.WithLabelValues(metrics.KindServerKeyRetrieval).Inc()
	metrics.QueueLength.WithLabelValues(metrics.KindServerKeyRetrieval).Set(float64(m.retrieval.Len()))
	return nil
}

// StoreDocumentKey [EXPANSION]: the admission entry point that must
// exist for DocumentKeyStoreRequested to ever fire.
func (m *Module) StoreDocumentKey(origin cluster.AccountId, key cluster.ServerKeyId, commonPoint, encryptedPoint []byte) error {
	if _, ok := m.keyThresholds[key]; !ok {
		return cmn.NewError(cmn.ErrBadParameters, "server key %s has not been generated", key)
	}
	payload := servicequeue.StorePayload{CommonPoint: commonPoint, EncryptedPoint: encryptedPoint}
	err := servicequeue.Admit(
		m.docStore, m.store, origin, key, m.fees.DocumentKeyStore, payload, nil,
		func(author cluster.EntityId) events.Event {
			return events.DocumentKeyStoreRequested{Key: key, Author: author, CommonPoint: commonPoint, EncryptedPoint: encryptedPoint}
		},
	)
	if err != nil {
		log.Rejected(m.logger, "store_document_key", err)
		return err
	}
	metrics.RequestsAdmitted.WithLabelValues(metrics.KindDocumentKeyStore).Inc()
	metrics.QueueLength.WithLabelValues(metrics.KindDocumentKeyStore).Set(float64(m.docStore.Len()))
	return nil
}

// RetrieveDocumentKeyShadow [EXPANSION]: gated by acl.Storage in addition
// to the ordinary admission template (spec.md §1: "surface-level request
// types ... that reuse the aggregator verbatim").
func (m *Module) RetrieveDocumentKeyShadow(origin cluster.AccountId, key cluster.ServerKeyId) error {
	if _, ok := m.keyThresholds[key]; !ok {
		return cmn.NewError(cmn.ErrBadParameters, "server key %s has not been generated", key)
	}
	entityID, err := m.store.Registry().ResolveEntityId(origin)
	if err != nil {
		return err
	}
	if !m.acl.IsAllowed(entityID, key) {
		return cmn.NewError(cmn.ErrInvalidOrigin, "requester is not permitted to retrieve the shadow for key %s", key)
	}
	err = servicequeue.Admit(
		m.shadowRetrieval, m.store, origin, key, m.fees.DocumentKeyShadowRetrieval,
		servicequeue.ShadowRetrievalPayload{}, nil,
		func(author cluster.EntityId) events.Event {
			return events.DocumentKeyShadowRetrievalRequested{Key: key}
		},
	)
	if err != nil {
		log.Rejected(m.logger, "retrieve_document_key_shadow", err)
		return err
	}
	metrics.RequestsAdmitted.WithLabelValues(metrics.KindDocumentKeyShadowRetrieval).Inc()
	metrics.QueueLength.WithLabelValues(metrics.KindDocumentKeyShadowRetrieval).Set(float64(m.shadowRetrieval.Len()))
	return nil
}

// ResponseKind identifies which queue a ServiceResponse targets.
type ResponseKind int

const (
	KindServerKeyGeneration ResponseKind = iota
	KindServerKeyRetrieval
	KindDocumentKeyStore
	KindDocumentKeyShadowRetrieval
)

// ServiceResponse is the single key-server-submitted response dispatch
// (§6: "service_response(ServiceResponse) -- key-server only; dispatches
// to the matching confirmation or error callback").
type ServiceResponse struct {
	Kind    ResponseKind
	Key     cluster.ServerKeyId
	IsError bool
	Pub     []byte   // success payload for generation/retrieval
	Shadows [][]byte // success payload for shadow retrieval
}

func (m *Module) ServiceResponse(origin cluster.AccountId, resp ServiceResponse) error {
	var kindLabel string
	var queueLen func() int
	switch resp.Kind {
	case KindServerKeyGeneration:
		kindLabel, queueLen = metrics.KindServerKeyGeneration, m.generation.Len
	case KindServerKeyRetrieval:
		kindLabel, queueLen = metrics.KindServerKeyRetrieval, m.retrieval.Len
	case KindDocumentKeyStore:
		kindLabel, queueLen = metrics.KindDocumentKeyStore, m.docStore.Len
	case KindDocumentKeyShadowRetrieval:
		kindLabel, queueLen = metrics.KindDocumentKeyShadowRetrieval, m.shadowRetrieval.Len
	default:
		return cmn.NewError(cmn.ErrBadParameters, "unknown service response kind")
	}

	before := queueLen()
	var err error
	switch resp.Kind {
	case KindServerKeyGeneration:
		err = m.respondGeneration(origin, resp)
	case KindServerKeyRetrieval:
		err = m.respondRetrieval(origin, resp)
	case KindDocumentKeyStore:
		err = m.respondStore(origin, resp)
	case KindDocumentKeyShadowRetrieval:
		err = m.respondShadow(origin, resp)
	}
	if err != nil {
		log.Rejected(m.logger, "service_response", err)
		return err
	}
	after := queueLen()
	if after < before {
		// The queue only shrinks on Confirmed, Impossible, or a reported
		// key-server error; resp.IsError distinguishes the error path,
		// the other two both count as a settled (non-error) outcome.
		if resp.IsError {
			metrics.RequestsFailed.WithLabelValues(kindLabel).Inc()
		} else {
			metrics.RequestsConfirmed.WithLabelValues(kindLabel).Inc()
		}
	}
	metrics.QueueLength.WithLabelValues(kindLabel).Set(float64(after))
	return nil
}

func (m *Module) respondGeneration(origin cluster.AccountId, resp ServiceResponse) error {
	req, ok := m.generation.Get(resp.Key)
	if !ok {
		return nil // stale
	}
	if resp.IsError {
		return servicequeue.RespondError(m.generation, m.store, origin, resp.Key,
			func(*servicequeue.Request[servicequeue.GenerationPayload]) events.Event {
				return events.ServerKeyGenerationError{Key: resp.Key}
			})
	}
	return servicequeue.Respond(
		m.generation, m.store, origin, resp.Key, req.Payload.Threshold, resp.Pub,
		func(*servicequeue.Request[servicequeue.GenerationPayload]) events.Event {
			return events.ServerKeyGenerated{Key: resp.Key, Pub: resp.Pub}
		},
		func(*servicequeue.Request[servicequeue.GenerationPayload]) events.Event {
			return events.ServerKeyGenerationError{Key: resp.Key}
		},
	)
}

func (m *Module) respondRetrieval(origin cluster.AccountId, resp ServiceResponse) error {
	threshold, ok := m.keyThresholds[resp.Key]
	if !ok {
		return nil // stale
	}
	if resp.IsError {
		return servicequeue.RespondError(m.retrieval, m.store, origin, resp.Key,
			func(*servicequeue.Request[servicequeue.RetrievalPayload]) events.Event {
				return events.ServerKeyRetrievalError{Key: resp.Key}
			})
	}
	return servicequeue.Respond(
		m.retrieval, m.store, origin, resp.Key, threshold, resp.Pub,
		func(*servicequeue.Request[servicequeue.RetrievalPayload]) events.Event {
			return events.ServerKeyRetrieved{Key: resp.Key, Pub: resp.Pub}
		},
		func(*servicequeue.Request[servicequeue.RetrievalPayload]) events.Event {
			return events.ServerKeyRetrievalError{Key: resp.Key}
		},
	)
}

func (m *Module) respondStore(origin cluster.AccountId, resp ServiceResponse) error {
	threshold, ok := m.keyThresholds[resp.Key]
	if !ok {
		return nil // stale
	}
	if resp.IsError {
		return servicequeue.RespondError(m.docStore, m.store, origin, resp.Key,
			func(*servicequeue.Request[servicequeue.StorePayload]) events.Event {
				return events.DocumentKeyStoreError{Key: resp.Key}
			})
	}
	// Document-key-store responses carry no payload of their own: every
	// confirming key server is attesting the same fixed request, so the
	// response value is the request key itself.
	return servicequeue.Respond(
		m.docStore, m.store, origin, resp.Key, threshold, resp.Key[:],
		func(*servicequeue.Request[servicequeue.StorePayload]) events.Event {
			return events.DocumentKeyStored{Key: resp.Key}
		},
		func(*servicequeue.Request[servicequeue.StorePayload]) events.Event {
			return events.DocumentKeyStoreError{Key: resp.Key}
		},
	)
}

func (m *Module) respondShadow(origin cluster.AccountId, resp ServiceResponse) error {
	threshold, ok := m.keyThresholds[resp.Key]
	if !ok {
		return nil // stale
	}
	if resp.IsError {
		return servicequeue.RespondError(m.shadowRetrieval, m.store, origin, resp.Key,
			func(*servicequeue.Request[servicequeue.ShadowRetrievalPayload]) events.Event {
				return events.DocumentKeyShadowRetrievalError{Key: resp.Key}
			})
	}
	return servicequeue.Respond(
		m.shadowRetrieval, m.store, origin, resp.Key, threshold, encodeShadows(resp.Shadows),
		func(*servicequeue.Request[servicequeue.ShadowRetrievalPayload]) events.Event {
			return events.DocumentKeyShadowRetrieved{Key: resp.Key, Shadows: resp.Shadows}
		},
		func(*servicequeue.Request[servicequeue.ShadowRetrievalPayload]) events.Event {
			return events.DocumentKeyShadowRetrievalError{Key: resp.Key}
		},
	)
}

// encodeShadows gives a set of shadow byte strings a single, order- and
// content-sensitive tally key: length-prefixed concatenation. It need not
// be reversible, only collision-free for distinct shadow sets.
func encodeShadows(shadows [][]byte) []byte {
	var buf []byte
	var lenBuf [4]byte
	for _, s := range shadows {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, s...)
	}
	return buf
}

// --- queries (§6) ---

func (m *Module) KeyServerSetSnapshot() cluster.KeyServerSetSnapshot {
	return m.machine.Snapshot()
}

func (m *Module) IsServerKeyGenerationResponseRequired(server cluster.KeyServerId, key cluster.ServerKeyId) bool {
	return servicequeue.IsResponseRequired(m.generation, m.store, server, key)
}

func (m *Module) IsServerKeyRetrievalResponseRequired(server cluster.KeyServerId, key cluster.ServerKeyId) bool {
	return servicequeue.IsResponseRequired(m.retrieval, m.store, server, key)
}

func (m *Module) IsDocumentKeyStoreResponseRequired(server cluster.KeyServerId, key cluster.ServerKeyId) bool {
	return servicequeue.IsResponseRequired(m.docStore, m.store, server, key)
}

// IsDocumentKeyShadowRetrievalResponseRequired [EXPANSION]: same template,
// reused per spec.md §1's "reuse the aggregator verbatim".
func (m *Module) IsDocumentKeyShadowRetrievalResponseRequired(server cluster.KeyServerId, key cluster.ServerKeyId) bool {
	return servicequeue.IsResponseRequired(m.shadowRetrieval, m.store, server, key)
}
