package model

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Ids are UUIDv7 so that their lexicographic order matches creation order.
// The canonical string form is the 32-hex-character simple representation
// with no dashes; that string is also what compound storage keys are built
// from.

// ExecutionID identifies one run of an instrumented program.
type ExecutionID uuid.UUID

// ObservationID identifies a single observation within an execution.
type ObservationID uuid.UUID

// PayloadID identifies a payload attached to an observation.
type PayloadID uuid.UUID

// GroupID identifies a group. Unlike the other ids it is string-backed:
// callers may supply their own ids (e.g. span ids from a tracing system).
type GroupID string

// NewExecutionID generates a new time-ordered execution id.
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.Must(uuid.NewV7()))
}

// NewObservationID generates a new time-ordered observation id.
func NewObservationID() ObservationID {
	return ObservationID(uuid.Must(uuid.NewV7()))
}

// NewPayloadID generates a new time-ordered payload id.
func NewPayloadID() PayloadID {
	return PayloadID(uuid.Must(uuid.NewV7()))
}

// NewGroupID generates a new time-ordered group id.
func NewGroupID() GroupID {
	return GroupID(NewObservationID().String())
}

func (id ExecutionID) String() string   { return simple(uuid.UUID(id)) }
func (id ObservationID) String() string { return simple(uuid.UUID(id)) }
func (id PayloadID) String() string     { return simple(uuid.UUID(id)) }
func (id GroupID) String() string       { return string(id) }

// IsNil reports whether the id is the zero value.
func (id ExecutionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ObservationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PayloadID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// ParseExecutionID parses an execution id from its canonical string form.
// The dashed UUID form is accepted as well.
func ParseExecutionID(s string) (ExecutionID, error) {
	u, err := parseID("execution", s)
	return ExecutionID(u), err
}

// ParseObservationID parses an observation id from its canonical string form.
func ParseObservationID(s string) (ObservationID, error) {
	u, err := parseID("observation", s)
	return ObservationID(u), err
}

// ParsePayloadID parses a payload id from its canonical string form.
func ParsePayloadID(s string) (PayloadID, error) {
	u, err := parseID("payload", s)
	return PayloadID(u), err
}

// IsValidPayloadID reports whether s parses as a payload id. Used when
// disambiguating the legacy multipart payload key formats.
func IsValidPayloadID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func (id ExecutionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ExecutionID) UnmarshalText(b []byte) error {
	parsed, err := ParseExecutionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ObservationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ObservationID) UnmarshalText(b []byte) error {
	parsed, err := ParseObservationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id PayloadID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *PayloadID) UnmarshalText(b []byte) error {
	parsed, err := ParsePayloadID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func simple(u uuid.UUID) string {
	return hex.EncodeToString(u[:])
}

func parseID(kind, s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}
	return u, nil
}
