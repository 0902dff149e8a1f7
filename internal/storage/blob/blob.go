// Package blob implements the content-addressed object store for payloads
// that exceed the inline threshold. Objects are keyed by
// {observation_id}/{payload_id}. Two backends exist: the local filesystem
// (default) and an S3-compatible endpoint.
package blob

import (
	"context"
	"errors"
	"io"

	"github.com/observation-tools/observation-tools/model"
)

// ErrNotFound is returned when no object exists for the key.
var ErrNotFound = errors.New("blob: object not found")

// Store stores and retrieves payload objects.
type Store interface {
	// Put writes size bytes from r under the observation/payload key.
	Put(ctx context.Context, observationID model.ObservationID, payloadID model.PayloadID, r io.Reader, size int64) error

	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, observationID model.ObservationID, payloadID model.PayloadID) (io.ReadCloser, error)
}

func objectKey(observationID model.ObservationID, payloadID model.PayloadID) string {
	return observationID.String() + "/" + payloadID.String()
}
