package agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertResponseConfirmsAtThresholdPlusOne(t *testing.T) {
	tally := NewMapTally()
	var responses Responses
	requestKey := []byte("req-1")

	support := InsertResponse(tally, 10, 3, 0, 1, &responses, requestKey, []byte("value-a"))
	assert.Equal(t, Unconfirmed, support)

	support = InsertResponse(tally, 10, 3, 1, 1, &responses, requestKey, []byte("value-a"))
	assert.Equal(t, Confirmed, support)
}

func TestInsertResponseGoesImpossibleOnIrreconcilableSplit(t *testing.T) {
	tally := NewMapTally()
	var responses Responses
	requestKey := []byte("req-2")

	assert.Equal(t, Unconfirmed, InsertResponse(tally, 10, 3, 0, 1, &responses, requestKey, []byte("a")))
	assert.Equal(t, Unconfirmed, InsertResponse(tally, 10, 3, 1, 1, &responses, requestKey, []byte("b")))
	// Third and last server disagrees too: no value can reach threshold+1=2.
	assert.Equal(t, Impossible, InsertResponse(tally, 10, 3, 2, 1, &responses, requestKey, []byte("c")))
}

func TestInsertResponseIgnoresDuplicateFromSameServer(t *testing.T) {
	tally := NewMapTally()
	var responses Responses
	requestKey := []byte("req-3")

	InsertResponse(tally, 10, 3, 0, 1, &responses, requestKey, []byte("a"))
	before := responses.RespondedCount

	support := InsertResponse(tally, 10, 3, 0, 1, &responses, requestKey, []byte("a"))
	assert.Equal(t, Unconfirmed, support)
	assert.Equal(t, before, responses.RespondedCount, "a duplicate response must not be recorded twice")
}

func TestInsertResponseResetsOnEpochChange(t *testing.T) {
	tally := NewMapTally()
	var responses Responses
	requestKey := []byte("req-4")

	InsertResponse(tally, 10, 3, 0, 1, &responses, requestKey, []byte("a"))
	assert.Equal(t, uint8(1), responses.RespondedCount)

	// A key-server-set rotation bumps the epoch; the same server
	// responding again under the new epoch must count as fresh.
	support := InsertResponse(tally, 20, 3, 0, 1, &responses, requestKey, []byte("a"))
	assert.Equal(t, Unconfirmed, support)
	assert.Equal(t, uint8(1), responses.RespondedCount)
	assert.Equal(t, uint64(20), responses.KeyServersChangeBlock)
}

func TestInsertResponseUnconfirmedWhileStillReconcilable(t *testing.T) {
	tally := NewMapTally()
	var responses Responses
	requestKey := []byte("req-5")

	support := InsertResponse(tally, 10, 5, 0, 2, &responses, requestKey, []byte("a"))
	assert.Equal(t, Unconfirmed, support)
}

func TestResponseSupportString(t *testing.T) {
	assert.Equal(t, "Confirmed", Confirmed.String())
	assert.Equal(t, "Impossible", Impossible.String())
	assert.Equal(t, "Unconfirmed", Unconfirmed.String())
}
