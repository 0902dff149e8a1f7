package model

import "encoding/json"

// Well-known MIME types assigned by the payload constructors and the
// server-side probe.
const (
	MimeTextPlain   = "text/plain"
	MimeJSON        = "application/json"
	MimeMarkdown    = "text/markdown"
	MimeOctetStream = "application/octet-stream"
)

// DefaultPayloadName is used when a client sends payload data without an
// explicit name (legacy multipart key formats).
const DefaultPayloadName = "default"

// Payload is a named, typed byte sequence attached to an observation.
//
// Size always reflects the byte length of the original data regardless of
// where the bytes live. When IsBlob is true the bytes are stored in the
// blob store and Data is nil; an inline payload carries its bytes in Data.
type Payload struct {
	ID       PayloadID `json:"id"`
	Name     string    `json:"name"`
	MimeType string    `json:"mime_type"`
	Size     uint64    `json:"size"`
	Data     []byte    `json:"data,omitempty"`
	IsBlob   bool      `json:"is_blob"`
}

// Inline reports whether the payload carries its bytes directly.
func (p Payload) Inline() bool { return !p.IsBlob }

// TextPayload creates a text/plain payload.
func TextPayload(s string) Payload {
	return BytesPayload([]byte(s), MimeTextPlain)
}

// JSONPayload serializes v as an application/json payload.
func JSONPayload(v any) (Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	return BytesPayload(data, MimeJSON), nil
}

// BytesPayload creates a payload with an explicit MIME type.
func BytesPayload(data []byte, mimeType string) Payload {
	return Payload{
		ID:       NewPayloadID(),
		Name:     DefaultPayloadName,
		MimeType: mimeType,
		Size:     uint64(len(data)),
		Data:     data,
	}
}

// PayloadManifestEntry is one row of the payload_manifest multipart part:
// the client's authoritative description of a payload it is uploading.
type PayloadManifestEntry struct {
	ObservationID ObservationID `json:"observation_id"`
	PayloadID     PayloadID     `json:"payload_id"`
	Name          string        `json:"name"`
	MimeType      string        `json:"mime_type"`
	Size          uint64        `json:"size"`
}
