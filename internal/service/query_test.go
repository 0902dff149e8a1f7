package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/observation-tools/observation-tools/internal/pkg/errors"
	"github.com/observation-tools/observation-tools/internal/storage"
	"github.com/observation-tools/observation-tools/model"
)

func ingestSimple(t *testing.T, env *testEnv, executionID model.ExecutionID, name, data string) model.ObservationID {
	t.Helper()
	obs := newObservation(executionID, name)
	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{obs})
	body.addPayload(t, obs.ID.String(), []byte(data))
	require.NoError(t, env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t)))
	return obs.ID
}

func TestListExecutionsPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, env.ingestion.IngestExecution(model.NewExecution(fmt.Sprintf("run-%d", i))))
	}

	page, hasNext, err := env.query.ListExecutions(3, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.True(t, hasNext)

	page, hasNext, err = env.query.ListExecutions(3, 3)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.False(t, hasNext)

	// Exactly limit rows left: no next page.
	page, hasNext, err = env.query.ListExecutions(5, 0)
	require.NoError(t, err)
	assert.Len(t, page, 5)
	assert.False(t, hasNext)
}

func TestListObservationsHasNextPage(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	for i := 0; i < 4; i++ {
		ingestSimple(t, env, executionID, fmt.Sprintf("obs-%d", i), "x")
	}

	page, hasNext, err := env.query.ListObservations(executionID, storage.ListOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.True(t, hasNext)

	page, hasNext, err = env.query.ListObservations(executionID, storage.ListOptions{Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.False(t, hasNext)

	// An empty execution lists cleanly.
	page, hasNext, err = env.query.ListObservations(model.NewExecutionID(), storage.ListOptions{Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.False(t, hasNext)
	assert.NotNil(t, page)
}

func TestGetContentNamedPayload(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	obs := newObservation(executionID, "exchange")

	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{obs})
	body.addPayload(t, obs.ID.String()+":headers", []byte(`{"h":1}`))
	body.addPayload(t, obs.ID.String()+":body", []byte("the-body"))
	require.NoError(t, env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t)))

	content, err := env.query.GetContent(context.Background(), obs.ID, "body")
	require.NoError(t, err)
	defer content.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(content.Body)
	require.NoError(t, err)
	assert.Equal(t, "the-body", buf.String())

	_, err = env.query.GetContent(context.Background(), obs.ID, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetContentUnknownObservation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.query.GetContent(context.Background(), model.NewObservationID(), "")
	assert.True(t, apperrors.IsNotFound(err))
}
