package observe

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observation-tools/observation-tools/model"
)

func TestGroupSendEmitsGroupObservation(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, nil)

	h, err := c.BeginExecution("demo")
	require.NoError(t, err)

	group, send := NewGroup("http-request").Metadata("method", "GET").SendTo(h)
	go func() { _ = c.Shutdown(context.Background()) }()
	require.NoError(t, send.Wait(context.Background()))

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Len(t, ts.batches, 1)
	obs := ts.batches[0][0]
	assert.Equal(t, model.TypeGroup, obs.ObservationType)
	require.NotEmpty(t, obs.GroupIDs)
	assert.Equal(t, group.ID(), obs.GroupIDs[0])
	assert.Equal(t, "GET", obs.Metadata["method"])
	assert.Empty(t, obs.ParentGroupID)

	// The group's metadata doubles as its JSON payload.
	require.Len(t, ts.manifests, 1)
	assert.Equal(t, model.MimeJSON, ts.manifests[0].MimeType)
}

func TestChildGroupCarriesParent(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, nil)

	h, err := c.BeginExecution("demo")
	require.NoError(t, err)

	parent, parentSend := NewGroup("outer").SendTo(h)
	child, childSend := parent.Child("inner").SendTo(h)

	go func() { _ = c.Shutdown(context.Background()) }()
	require.NoError(t, parentSend.Wait(context.Background()))
	require.NoError(t, childSend.Wait(context.Background()))
	assert.NotEqual(t, parent.ID(), child.ID())

	ts.mu.Lock()
	defer ts.mu.Unlock()
	var childObs *model.Observation
	for i := range ts.batches[0] {
		if ts.batches[0][i].Name == "inner" {
			childObs = &ts.batches[0][i]
		}
	}
	require.NotNil(t, childObs)
	assert.Equal(t, parent.ID(), childObs.ParentGroupID)
	assert.Equal(t, child.ID(), childObs.GroupIDs[0])
}

func TestCustomGroupID(t *testing.T) {
	g := NewGroup("span").ID("span-1234").Start(context.Background())
	assert.Equal(t, model.GroupID("span-1234"), g.Handle().ID())
}

func TestGroupSpanEndRecordsDuration(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, nil)

	h, err := c.BeginExecution("demo")
	require.NoError(t, err)
	ctx := WithExecution(context.Background(), h)

	span := NewGroup("timed").Metadata("kind", "work").Start(ctx)
	send := span.End()

	go func() { _ = c.Shutdown(context.Background()) }()
	require.NoError(t, send.Wait(context.Background()))

	// Ending twice is a no-op.
	require.NoError(t, span.End().Wait(context.Background()))

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Len(t, ts.batches, 1)
	require.Len(t, ts.batches[0], 1)
	obs := ts.batches[0][0]
	assert.Equal(t, "work", obs.Metadata["kind"])
	assert.Contains(t, obs.Metadata, "duration_s")
	assert.Contains(t, obs.Metadata, "duration_ns")

	// The payload carries the same metadata as JSON.
	entry := ts.manifests[0]
	key := obs.ID.String() + ":" + entry.PayloadID.String() + ":default"
	var payloadMeta map[string]string
	require.NoError(t, json.Unmarshal(ts.payloads[key], &payloadMeta))
	assert.Equal(t, obs.Metadata["duration_ns"], payloadMeta["duration_ns"])
}

func TestGroupHandleFromID(t *testing.T) {
	h := testHandle()
	g := GroupHandleFromID("external-span", h)
	assert.Equal(t, model.GroupID("external-span"), g.ID())

	builder := g.Child("nested")
	assert.Equal(t, model.GroupID("external-span"), builder.parent)
}

func TestGroupWithoutExecution(t *testing.T) {
	_, send := NewGroup("lost").Send(context.Background())
	assert.ErrorIs(t, send.Wait(context.Background()), ErrNoExecutionContext)
}
