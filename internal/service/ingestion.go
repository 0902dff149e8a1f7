// Package service contains the ingestion and query logic between the HTTP
// handlers and the storage engines.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	apperrors "github.com/observation-tools/observation-tools/internal/pkg/errors"
	"github.com/observation-tools/observation-tools/internal/storage"
	"github.com/observation-tools/observation-tools/internal/storage/blob"
	"github.com/observation-tools/observation-tools/model"
)

// Ingestion persists incoming executions, observation batches and
// out-of-band blobs, routing each payload to its storage tier.
type Ingestion struct {
	store  *storage.Store
	blobs  blob.Store
	logger *zap.Logger
}

// NewIngestion creates an ingestion service.
func NewIngestion(store *storage.Store, blobs blob.Store, logger *zap.Logger) *Ingestion {
	return &Ingestion{store: store, blobs: blobs, logger: logger}
}

// IngestExecution stores one execution row.
func (s *Ingestion) IngestExecution(execution *model.Execution) error {
	if execution.ID.IsNil() {
		return apperrors.BadRequest("execution id is required")
	}
	return s.store.StoreExecution(execution)
}

// IngestObservations consumes a multipart observation batch. The reader
// is consumed part by part; payload parts are bounded by the endpoint's
// body limit. Parts:
//
//   - "observations":      JSON array of observation metadata (required)
//   - "payload_manifest":  JSON array of payload descriptors (optional)
//   - anything else:       payload bytes, keyed "{obs}:{payload}:{name}"
//     or one of the legacy formats "{obs}:{name}" / "{obs}"
//
// Payloads at or above model.BlobThresholdBytes go to the blob store; the
// rest are stored inline. Everything lands in one metadata batch write.
func (s *Ingestion) IngestObservations(ctx context.Context, executionID model.ExecutionID, form *multipart.Reader) error {
	var observations []model.Observation
	haveObservations := false
	var manifest []model.PayloadManifestEntry
	payloadParts := make(map[string][]byte)

	for {
		part, err := form.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return apperrors.BadRequest(fmt.Sprintf("failed to read multipart field: %v", err))
		}

		name := part.FormName()
		data, err := io.ReadAll(part)
		if err != nil {
			return apperrors.BadRequest(fmt.Sprintf("failed to read multipart field %q: %v", name, err))
		}

		switch name {
		case "observations":
			if err := json.Unmarshal(data, &observations); err != nil {
				return apperrors.BadRequest(fmt.Sprintf("failed to parse observations JSON: %v", err))
			}
			haveObservations = true
		case "payload_manifest":
			if err := json.Unmarshal(data, &manifest); err != nil {
				return apperrors.BadRequest(fmt.Sprintf("failed to parse payload manifest JSON: %v", err))
			}
		default:
			payloadParts[name] = data
		}
	}

	if !haveObservations {
		return apperrors.BadRequest("missing 'observations' field in multipart form")
	}

	s.logger.Debug("ingesting observation batch",
		zap.String("execution_id", executionID.String()),
		zap.Int("count", len(observations)),
		zap.Int("payload_count", len(payloadParts)))

	manifestLookup := make(map[manifestKey]model.PayloadManifestEntry, len(manifest))
	for _, entry := range manifest {
		manifestLookup[manifestKey{entry.ObservationID, entry.PayloadID}] = entry
	}

	batch := make([]model.ObservationWithPayloads, 0, len(observations))
	for i := range observations {
		obs := observations[i]
		obsIDStr := obs.ID.String()

		var payloads []model.Payload
		for key, data := range payloadParts {
			if !keyBelongsTo(key, obsIDStr) {
				continue
			}
			delete(payloadParts, key)

			payloadID, name, err := ParsePayloadKey(key, obsIDStr)
			if err != nil {
				return err
			}

			mimeType := detectMimeType(manifestLookup, obs.ID, payloadID, data)
			payload := model.Payload{
				ID:       payloadID,
				Name:     name,
				MimeType: mimeType,
				Size:     uint64(len(data)),
			}

			if len(data) >= model.BlobThresholdBytes {
				if err := s.blobs.Put(ctx, obs.ID, payloadID, bytes.NewReader(data), int64(len(data))); err != nil {
					return apperrors.Internal("store blob payload").WithError(err)
				}
				payload.IsBlob = true
			} else {
				payload.Data = data
			}
			payloads = append(payloads, payload)
		}

		if len(payloads) == 0 {
			return apperrors.BadRequest(fmt.Sprintf("missing payload data for observation %s", obs.ID))
		}

		batch = append(batch, model.ObservationWithPayloads{Observation: obs, Payloads: payloads})
	}

	for key := range payloadParts {
		s.logger.Warn("received payload for unknown observation id", zap.String("payload_key", key))
	}

	if err := s.store.StoreObservations(batch); err != nil {
		return err
	}

	s.logger.Info("observations ingested",
		zap.String("execution_id", executionID.String()),
		zap.Int("count", len(batch)))
	return nil
}

// IngestBlob stores raw bytes uploaded through the out-of-band blob
// endpoint. When payloadID is nil the target defaults to the
// observation's primary payload.
func (s *Ingestion) IngestBlob(ctx context.Context, observationID model.ObservationID, payloadID *model.PayloadID, body io.Reader, size int64) error {
	var target model.PayloadID
	if payloadID != nil {
		target = *payloadID
	} else {
		owp, err := s.store.GetObservation(observationID)
		if err != nil {
			return err
		}
		primary, ok := owp.PrimaryPayload()
		if !ok {
			return apperrors.BadRequest(fmt.Sprintf("observation %s has no payloads", observationID))
		}
		target = primary.ID
	}

	if err := s.blobs.Put(ctx, observationID, target, body, size); err != nil {
		return apperrors.Internal("store blob").WithError(err)
	}

	s.logger.Info("blob uploaded",
		zap.String("observation_id", observationID.String()),
		zap.String("payload_id", target.String()),
		zap.Int64("size", size))
	return nil
}

type manifestKey struct {
	observationID model.ObservationID
	payloadID     model.PayloadID
}

// keyBelongsTo reports whether a payload part key targets the
// observation: the key is the bare id or starts with "{id}:".
func keyBelongsTo(key, obsIDStr string) bool {
	if key == obsIDStr {
		return true
	}
	return strings.HasPrefix(key, obsIDStr) && len(key) > len(obsIDStr) && key[len(obsIDStr)] == ':'
}

// ParsePayloadKey parses a multipart payload part name into its payload
// id and name. Three formats are accepted:
//
//	"{obs_id}:{payload_id}:{name}"  new clients
//	"{obs_id}:{name}"               legacy; a payload id is generated
//	"{obs_id}"                      legacy; generated id, name "default"
func ParsePayloadKey(key, obsIDStr string) (model.PayloadID, string, error) {
	rest := key[len(obsIDStr):]
	if rest == "" {
		return model.NewPayloadID(), model.DefaultPayloadName, nil
	}
	if rest[0] != ':' {
		return model.PayloadID{}, "", apperrors.BadRequest(fmt.Sprintf("invalid payload key format: %s", key))
	}

	rest = rest[1:]
	idPart, namePart, found := strings.Cut(rest, ":")
	if !found {
		// Legacy "{obs_id}:{name}".
		return model.NewPayloadID(), rest, nil
	}

	if model.IsValidPayloadID(idPart) {
		payloadID, err := model.ParsePayloadID(idPart)
		if err != nil {
			return model.PayloadID{}, "", apperrors.BadRequest(fmt.Sprintf("invalid payload key format: %s", key))
		}
		return payloadID, namePart, nil
	}

	// Not a payload id; treat the whole remainder as a legacy name.
	return model.NewPayloadID(), rest, nil
}

// detectMimeType picks a payload's MIME type: manifest entries are
// authoritative; without one the bytes are probed (valid JSON, then valid
// UTF-8, then content sniffing).
func detectMimeType(manifest map[manifestKey]model.PayloadManifestEntry, observationID model.ObservationID, payloadID model.PayloadID, data []byte) string {
	if entry, ok := manifest[manifestKey{observationID, payloadID}]; ok && entry.MimeType != "" {
		return entry.MimeType
	}
	if json.Valid(data) {
		return model.MimeJSON
	}
	if utf8.Valid(data) {
		return model.MimeTextPlain
	}
	return mimetype.Detect(data).String()
}
