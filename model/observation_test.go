package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionCreation(t *testing.T) {
	e := NewExecution("demo")
	assert.Equal(t, "demo", e.Name)
	assert.Empty(t, e.Metadata)
	assert.False(t, e.ID.IsNil())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)
}

func TestObservationTypeCodes(t *testing.T) {
	for _, typ := range []ObservationType{TypeLogEntry, TypePayload, TypeSpan, TypeGroup} {
		assert.Equal(t, typ, ObservationTypeFromCode(typ.Code()))
	}
	// Unknown codes fall back to Payload.
	assert.Equal(t, TypePayload, ObservationTypeFromCode(99))
}

func TestLogLevelCodes(t *testing.T) {
	for _, lvl := range []LogLevel{LevelTrace, LevelDebug, LevelInfo, LevelWarning, LevelError} {
		assert.Equal(t, lvl, LogLevelFromCode(lvl.Code()))
	}
	assert.Equal(t, LevelInfo, LogLevelFromCode(-1))
}

func TestGroupIDAccessor(t *testing.T) {
	gid := NewGroupID()
	obs := Observation{
		ObservationType: TypeGroup,
		GroupIDs:        []GroupID{gid},
	}
	assert.Equal(t, gid, obs.GroupID())

	obs.ObservationType = TypePayload
	assert.Equal(t, GroupID(""), obs.GroupID())
}

func TestObservationJSONShape(t *testing.T) {
	obs := Observation{
		ID:              NewObservationID(),
		ExecutionID:     NewExecutionID(),
		Name:            "hello",
		ObservationType: TypePayload,
		LogLevel:        LevelInfo,
		Metadata:        map[string]string{"k": "v"},
		GroupIDs:        []GroupID{},
	}

	data, err := json.Marshal(obs)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Payload", raw["observation_type"])
	assert.Equal(t, "Info", raw["log_level"])
	// Optional fields stay off the wire when unset.
	assert.NotContains(t, raw, "parent_group_id")
	assert.NotContains(t, raw, "parent_span_id")
	assert.NotContains(t, raw, "source")

	var decoded Observation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obs.ID, decoded.ID)
	assert.Equal(t, obs.Metadata, decoded.Metadata)
}

func TestPayloadConstructors(t *testing.T) {
	p := TextPayload("hi")
	assert.Equal(t, MimeTextPlain, p.MimeType)
	assert.Equal(t, uint64(2), p.Size)
	assert.Equal(t, DefaultPayloadName, p.Name)
	assert.True(t, p.Inline())

	j, err := JSONPayload(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, MimeJSON, j.MimeType)
	assert.JSONEq(t, `{"a":1}`, string(j.Data))

	_, err = JSONPayload(make(chan int))
	assert.Error(t, err)
}

func TestPrimaryPayload(t *testing.T) {
	owp := ObservationWithPayloads{}
	_, ok := owp.PrimaryPayload()
	assert.False(t, ok)

	owp.Payloads = []Payload{TextPayload("a"), TextPayload("b")}
	p, ok := owp.PrimaryPayload()
	require.True(t, ok)
	assert.Equal(t, []byte("a"), p.Data)
}
