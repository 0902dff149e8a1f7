package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observation-tools/observation-tools/model"
)

func TestFilesystemRoundTrip(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	obsID := model.NewObservationID()
	payloadID := model.NewPayloadID()
	data := bytes.Repeat([]byte("x"), 70000)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, obsID, payloadID, bytes.NewReader(data), int64(len(data))))

	r, err := store.Get(ctx, obsID, payloadID)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFilesystemOverwrite(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	obsID := model.NewObservationID()
	payloadID := model.NewPayloadID()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, obsID, payloadID, strings.NewReader("first"), 5))
	require.NoError(t, store.Put(ctx, obsID, payloadID, strings.NewReader("second"), 6))

	r, err := store.Get(ctx, obsID, payloadID)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestFilesystemNotFound(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), model.NewObservationID(), model.NewPayloadID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemSeparatesObservations(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	payloadID := model.NewPayloadID()
	a, b := model.NewObservationID(), model.NewObservationID()
	require.NoError(t, store.Put(ctx, a, payloadID, strings.NewReader("aaa"), 3))

	_, err = store.Get(ctx, b, payloadID)
	assert.ErrorIs(t, err, ErrNotFound)
}
