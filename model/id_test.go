package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewExecutionID(), NewExecutionID())
	assert.NotEqual(t, NewObservationID(), NewObservationID())
	assert.NotEqual(t, NewPayloadID(), NewPayloadID())
}

func TestIDStringForm(t *testing.T) {
	id := NewObservationID()
	s := id.String()
	require.Len(t, s, 32)
	assert.NotContains(t, s, "-")

	parsed, err := ParseObservationID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestIDsAreTimeOrdered(t *testing.T) {
	first := NewObservationID()
	time.Sleep(2 * time.Millisecond)
	second := NewObservationID()
	assert.Less(t, first.String(), second.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseExecutionID("not-an-id")
	assert.Error(t, err)

	_, err = ParseObservationID("")
	assert.Error(t, err)
}

func TestParseAcceptsDashedForm(t *testing.T) {
	id := NewExecutionID()
	s := id.String()
	dashed := s[:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:]

	parsed, err := ParseExecutionID(dashed)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestIDJSONRoundTrip(t *testing.T) {
	id := NewExecutionID()
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+id.String()+`"`, string(data))

	var decoded ExecutionID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}
