package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	apperrors "github.com/observation-tools/observation-tools/internal/pkg/errors"
	"github.com/observation-tools/observation-tools/internal/storage"
	"github.com/observation-tools/observation-tools/internal/storage/blob"
	"github.com/observation-tools/observation-tools/model"
)

// Query serves the read API over both storage tiers.
type Query struct {
	store  *storage.Store
	blobs  blob.Store
	logger *zap.Logger
}

// NewQuery creates a query service.
func NewQuery(store *storage.Store, blobs blob.Store, logger *zap.Logger) *Query {
	return &Query{store: store, blobs: blobs, logger: logger}
}

// ListExecutions returns one page of executions, newest first, plus
// whether a next page exists (detected by fetching limit+1 rows).
func (s *Query) ListExecutions(limit, offset int) ([]model.Execution, bool, error) {
	executions, err := s.store.ListExecutions(limit+1, offset)
	if err != nil {
		return nil, false, err
	}
	hasNextPage := len(executions) > limit
	if hasNextPage {
		executions = executions[:limit]
	}
	return executions, hasNextPage, nil
}

// GetExecution loads one execution.
func (s *Query) GetExecution(id model.ExecutionID) (*model.Execution, error) {
	return s.store.GetExecution(id)
}

// ListObservations returns one page of an execution's observations in
// creation order, payloads as manifest placeholders.
func (s *Query) ListObservations(executionID model.ExecutionID, opts storage.ListOptions) ([]model.ObservationWithPayloads, bool, error) {
	limit := opts.Limit
	opts.Limit = limit + 1
	observations, err := s.store.ListObservations(executionID, opts)
	if err != nil {
		return nil, false, err
	}
	hasNextPage := len(observations) > limit
	if hasNextPage {
		observations = observations[:limit]
	}
	if observations == nil {
		observations = []model.ObservationWithPayloads{}
	}
	return observations, hasNextPage, nil
}

// GetObservation loads one observation with inline payload bytes.
func (s *Query) GetObservation(id model.ObservationID) (*model.ObservationWithPayloads, error) {
	return s.store.GetObservation(id)
}

// GetGroup resolves a group id to the observation that represents it.
func (s *Query) GetGroup(id model.GroupID) (*model.ObservationWithPayloads, error) {
	return s.store.LookupGroup(id)
}

// Content is a payload's bytes with its stored MIME type.
type Content struct {
	Body     io.ReadCloser
	MimeType string
	Size     uint64
}

// GetContent returns the bytes of an observation's payload: the primary
// payload by default, or the named one when name is non-empty. Inline
// payloads come from the metadata engine, blob payloads from the blob
// store; metadata claiming a blob that is missing is an internal error.
func (s *Query) GetContent(ctx context.Context, observationID model.ObservationID, name string) (*Content, error) {
	owp, err := s.store.GetObservation(observationID)
	if err != nil {
		return nil, err
	}

	var payload *model.Payload
	if name == "" {
		if p, ok := owp.PrimaryPayload(); ok {
			payload = &p
		}
	} else {
		for i := range owp.Payloads {
			if owp.Payloads[i].Name == name {
				payload = &owp.Payloads[i]
				break
			}
		}
	}
	if payload == nil {
		return nil, apperrors.NotFound(fmt.Sprintf("payload for observation %s", observationID))
	}

	if payload.Inline() {
		return &Content{
			Body:     io.NopCloser(bytes.NewReader(payload.Data)),
			MimeType: payload.MimeType,
			Size:     payload.Size,
		}, nil
	}

	body, err := s.blobs.Get(ctx, observationID, payload.ID)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			// The manifest says blob tier; a missing object is corruption,
			// not a client error.
			s.logger.Error("blob missing for stored payload",
				zap.String("observation_id", observationID.String()),
				zap.String("payload_id", payload.ID.String()))
			return nil, apperrors.Internal("blob object missing").WithError(err)
		}
		return nil, apperrors.Internal("read blob").WithError(err)
	}

	return &Content{Body: body, MimeType: payload.MimeType, Size: payload.Size}, nil
}
