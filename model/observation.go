package model

import "time"

// ObservationType classifies how an observation was produced and how the
// UI should render it. A Group observation is the physical record of a
// group scope: its first group id is the group's own id.
type ObservationType string

const (
	TypeLogEntry ObservationType = "LogEntry"
	TypePayload  ObservationType = "Payload"
	TypeSpan     ObservationType = "Span"
	TypeGroup    ObservationType = "Group"
)

// LogLevel is the severity attached to an observation.
type LogLevel string

const (
	LevelTrace   LogLevel = "Trace"
	LevelDebug   LogLevel = "Debug"
	LevelInfo    LogLevel = "Info"
	LevelWarning LogLevel = "Warning"
	LevelError   LogLevel = "Error"
)

// Code returns the stable integer code used in the stored encoding.
func (t ObservationType) Code() int32 {
	switch t {
	case TypeLogEntry:
		return 0
	case TypePayload:
		return 1
	case TypeSpan:
		return 2
	case TypeGroup:
		return 3
	default:
		return 1
	}
}

// ObservationTypeFromCode maps a stored integer code back to a type.
// Unknown codes decode as Payload.
func ObservationTypeFromCode(v int32) ObservationType {
	switch v {
	case 0:
		return TypeLogEntry
	case 1:
		return TypePayload
	case 2:
		return TypeSpan
	case 3:
		return TypeGroup
	default:
		return TypePayload
	}
}

// Code returns the stable integer code used in the stored encoding.
func (l LogLevel) Code() int32 {
	switch l {
	case LevelTrace:
		return 0
	case LevelDebug:
		return 1
	case LevelInfo:
		return 2
	case LevelWarning:
		return 3
	case LevelError:
		return 4
	default:
		return 2
	}
}

// LogLevelFromCode maps a stored integer code back to a level.
// Unknown codes decode as Info.
func LogLevelFromCode(v int32) LogLevel {
	switch v {
	case 0:
		return LevelTrace
	case 1:
		return LevelDebug
	case 2:
		return LevelInfo
	case 3:
		return LevelWarning
	case 4:
		return LevelError
	default:
		return LevelInfo
	}
}

// SourceInfo records the call site that produced an observation.
type SourceInfo struct {
	File   string  `json:"file"`
	Line   uint32  `json:"line"`
	Column *uint32 `json:"column,omitempty"`
}

// Observation is a single piece of collected data. Payload bytes travel
// separately (multipart parts on the wire, payload rows in storage); the
// observation record itself carries only metadata.
type Observation struct {
	ID              ObservationID     `json:"id"`
	ExecutionID     ExecutionID       `json:"execution_id"`
	Name            string            `json:"name"`
	ObservationType ObservationType   `json:"observation_type"`
	LogLevel        LogLevel          `json:"log_level"`
	Source          *SourceInfo       `json:"source,omitempty"`
	Metadata        map[string]string `json:"metadata"`

	// GroupIDs lists the groups this observation belongs to. For a Group
	// observation the first entry is the group's own id.
	GroupIDs []GroupID `json:"group_ids"`

	// ParentGroupID is the direct nesting parent, if any.
	ParentGroupID GroupID `json:"parent_group_id,omitempty"`

	// ParentSpanID links to an external tracing span, if any.
	ParentSpanID string `json:"parent_span_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// GroupID returns the group id a Group observation represents, or "" for
// other observation types.
func (o *Observation) GroupID() GroupID {
	if o.ObservationType == TypeGroup && len(o.GroupIDs) > 0 {
		return o.GroupIDs[0]
	}
	return ""
}

// ObservationWithPayloads pairs an observation with its payloads. Payloads
// whose Data slice is nil are placeholders: the bytes live in the blob
// store (or were not loaded, for listings).
type ObservationWithPayloads struct {
	Observation Observation `json:"observation"`
	Payloads    []Payload   `json:"payloads"`
}

// PrimaryPayload returns the first payload, which by convention is the
// observation's main content.
func (o *ObservationWithPayloads) PrimaryPayload() (Payload, bool) {
	if len(o.Payloads) == 0 {
		return Payload{}, false
	}
	return o.Payloads[0], true
}
