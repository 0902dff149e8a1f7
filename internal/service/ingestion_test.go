package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/observation-tools/observation-tools/internal/pkg/errors"
	"github.com/observation-tools/observation-tools/internal/storage"
	"github.com/observation-tools/observation-tools/internal/storage/blob"
	"github.com/observation-tools/observation-tools/model"
)

type testEnv struct {
	store     *storage.Store
	blobs     blob.Store
	ingestion *Ingestion
	query     *Query
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "metadata.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	blobs, err := blob.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	return &testEnv{
		store:     store,
		blobs:     blobs,
		ingestion: NewIngestion(store, blobs, zap.NewNop()),
		query:     NewQuery(store, blobs, zap.NewNop()),
	}
}

// multipartBody builds a multipart batch the way the client transport
// does.
type multipartBody struct {
	buf *bytes.Buffer
	w   *multipart.Writer
}

func newMultipartBody() *multipartBody {
	buf := &bytes.Buffer{}
	return &multipartBody{buf: buf, w: multipart.NewWriter(buf)}
}

func (m *multipartBody) addJSON(t *testing.T, field string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	part, err := m.w.CreateFormField(field)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
}

func (m *multipartBody) addPayload(t *testing.T, key string, data []byte) {
	t.Helper()
	part, err := m.w.CreateFormField(key)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
}

func (m *multipartBody) reader(t *testing.T) *multipart.Reader {
	t.Helper()
	require.NoError(t, m.w.Close())
	return multipart.NewReader(m.buf, m.w.Boundary())
}

func newObservation(executionID model.ExecutionID, name string) model.Observation {
	return model.Observation{
		ID:              model.NewObservationID(),
		ExecutionID:     executionID,
		Name:            name,
		ObservationType: model.TypePayload,
		LogLevel:        model.LevelInfo,
		Metadata:        map[string]string{},
		GroupIDs:        []model.GroupID{},
		CreatedAt:       time.Now().UTC(),
	}
}

func TestIngestInlinePayload(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	obs := newObservation(executionID, "hello")
	payloadID := model.NewPayloadID()
	data := []byte(strings.Repeat("x", 1024))

	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{obs})
	body.addJSON(t, "payload_manifest", []model.PayloadManifestEntry{{
		ObservationID: obs.ID,
		PayloadID:     payloadID,
		Name:          "default",
		MimeType:      model.MimeTextPlain,
		Size:          uint64(len(data)),
	}})
	body.addPayload(t, fmt.Sprintf("%s:%s:default", obs.ID, payloadID), data)

	require.NoError(t, env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t)))

	loaded, err := env.query.GetObservation(obs.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Payloads, 1)
	p := loaded.Payloads[0]
	assert.Equal(t, payloadID, p.ID)
	assert.False(t, p.IsBlob)
	assert.Equal(t, data, p.Data)
	assert.Equal(t, model.MimeTextPlain, p.MimeType)

	content, err := env.query.GetContent(context.Background(), obs.ID, "")
	require.NoError(t, err)
	defer content.Body.Close()
	got, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, model.MimeTextPlain, content.MimeType)
}

func TestIngestBlobPayload(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	obs := newObservation(executionID, "big")
	payloadID := model.NewPayloadID()
	data := bytes.Repeat([]byte("x"), 70000)

	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{obs})
	body.addPayload(t, fmt.Sprintf("%s:%s:default", obs.ID, payloadID), data)

	require.NoError(t, env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t)))

	// The manifest marks the payload blob-tier and the object exists.
	loaded, err := env.query.GetObservation(obs.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Payloads, 1)
	assert.True(t, loaded.Payloads[0].IsBlob)
	assert.Equal(t, uint64(70000), loaded.Payloads[0].Size)
	assert.Nil(t, loaded.Payloads[0].Data)

	r, err := env.blobs.Get(context.Background(), obs.ID, payloadID)
	require.NoError(t, err)
	stored, err := io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()
	assert.Len(t, stored, 70000)

	// Content comes back through the blob tier transparently.
	content, err := env.query.GetContent(context.Background(), obs.ID, "")
	require.NoError(t, err)
	defer content.Body.Close()
	got, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestIngestLegacyPayloadKeys(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	bare := newObservation(executionID, "bare")
	named := newObservation(executionID, "named")

	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{bare, named})
	body.addPayload(t, bare.ID.String(), []byte("bare-data"))
	body.addPayload(t, named.ID.String()+":headers", []byte(`{"a":1}`))

	require.NoError(t, env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t)))

	loaded, err := env.query.GetObservation(bare.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Payloads, 1)
	assert.Equal(t, model.DefaultPayloadName, loaded.Payloads[0].Name)
	assert.Equal(t, []byte("bare-data"), loaded.Payloads[0].Data)

	loaded, err = env.query.GetObservation(named.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Payloads, 1)
	assert.Equal(t, "headers", loaded.Payloads[0].Name)
	assert.Equal(t, model.MimeJSON, loaded.Payloads[0].MimeType)
}

func TestIngestMissingObservationsField(t *testing.T) {
	env := newTestEnv(t)
	body := newMultipartBody()
	body.addPayload(t, model.NewObservationID().String(), []byte("x"))

	err := env.ingestion.IngestObservations(context.Background(), model.NewExecutionID(), body.reader(t))
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestIngestObservationWithoutPayload(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	obs := newObservation(executionID, "empty")

	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{obs})

	err := env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t))
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestIngestDiscardsOrphanPayloads(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	obs := newObservation(executionID, "kept")

	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{obs})
	body.addPayload(t, obs.ID.String(), []byte("kept-data"))
	body.addPayload(t, model.NewObservationID().String(), []byte("orphan"))

	require.NoError(t, env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t)))

	loaded, err := env.query.GetObservation(obs.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Payloads, 1)
	assert.Equal(t, []byte("kept-data"), loaded.Payloads[0].Data)
}

func TestIngestBlobEndpoint(t *testing.T) {
	env := newTestEnv(t)
	executionID := model.NewExecutionID()
	obs := newObservation(executionID, "oob")
	payloadID := model.NewPayloadID()

	// Explicit payload id: no metadata required.
	data := bytes.Repeat([]byte("z"), 1000)
	require.NoError(t, env.ingestion.IngestBlob(context.Background(), obs.ID, &payloadID, bytes.NewReader(data), int64(len(data))))

	r, err := env.blobs.Get(context.Background(), obs.ID, payloadID)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()
	assert.Equal(t, data, got)

	// Without a payload id the observation's primary payload is the target.
	body := newMultipartBody()
	body.addJSON(t, "observations", []model.Observation{obs})
	body.addPayload(t, obs.ID.String(), []byte("inline"))
	require.NoError(t, env.ingestion.IngestObservations(context.Background(), executionID, body.reader(t)))

	require.NoError(t, env.ingestion.IngestBlob(context.Background(), obs.ID, nil, strings.NewReader("replacement"), 11))

	// Unknown observation without explicit payload id is not found.
	err = env.ingestion.IngestBlob(context.Background(), model.NewObservationID(), nil, strings.NewReader("x"), 1)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestParsePayloadKey(t *testing.T) {
	obsID := model.NewObservationID()
	payloadID := model.NewPayloadID()

	tests := []struct {
		name     string
		key      string
		wantID   *model.PayloadID
		wantName string
		wantErr  bool
	}{
		{name: "new format", key: fmt.Sprintf("%s:%s:body", obsID, payloadID), wantID: &payloadID, wantName: "body"},
		{name: "legacy named", key: obsID.String() + ":headers", wantName: "headers"},
		{name: "legacy bare", key: obsID.String(), wantName: model.DefaultPayloadName},
		{name: "name with colon but no id", key: obsID.String() + ":api:request", wantName: "api:request"},
		{name: "bad separator", key: obsID.String() + "xjunk", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, name, err := ParsePayloadKey(tt.key, obsID.String())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsBadRequest(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			if tt.wantID != nil {
				assert.Equal(t, *tt.wantID, id)
			} else {
				assert.False(t, id.IsNil())
			}
		})
	}
}

func TestDetectMimeType(t *testing.T) {
	obsID := model.NewObservationID()
	payloadID := model.NewPayloadID()
	manifest := map[manifestKey]model.PayloadManifestEntry{
		{obsID, payloadID}: {MimeType: "application/vnd.custom"},
	}

	// Manifest wins over probing.
	assert.Equal(t, "application/vnd.custom", detectMimeType(manifest, obsID, payloadID, []byte(`{"a":1}`)))

	none := map[manifestKey]model.PayloadManifestEntry{}
	assert.Equal(t, model.MimeJSON, detectMimeType(none, obsID, payloadID, []byte(`{"a":1}`)))
	assert.Equal(t, model.MimeTextPlain, detectMimeType(none, obsID, payloadID, []byte("plain text here")))

	// Binary data falls through to content sniffing.
	binary := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}
	detected := detectMimeType(none, obsID, payloadID, binary)
	assert.Equal(t, "image/png", detected)
}
