package observe

import (
	"context"
	"time"

	"github.com/observation-tools/observation-tools/model"
)

// ObservationBuilder assembles a single observation. Construction and
// validation errors are returned synchronously from Send; transport
// failures arrive later through the completion handle.
type ObservationBuilder struct {
	name          string
	obsType       model.ObservationType
	level         model.LogLevel
	metadata      map[string]string
	groupIDs      []model.GroupID
	parentGroupID model.GroupID
	parentSpanID  string
	source        *model.SourceInfo
	payloads      []model.Payload
	err           error
}

// NewObservation creates a builder for a Payload-type observation at Info
// level.
func NewObservation(name string) *ObservationBuilder {
	return &ObservationBuilder{
		name:    name,
		obsType: model.TypePayload,
		level:   model.LevelInfo,
	}
}

// Metadata adds a user metadata key-value pair.
func (b *ObservationBuilder) Metadata(key, value string) *ObservationBuilder {
	if b.metadata == nil {
		b.metadata = make(map[string]string)
	}
	b.metadata[key] = value
	return b
}

// Source records the call site that produced the observation.
func (b *ObservationBuilder) Source(file string, line uint32) *ObservationBuilder {
	b.source = &model.SourceInfo{File: file, Line: line}
	return b
}

// Level sets the log level.
func (b *ObservationBuilder) Level(level model.LogLevel) *ObservationBuilder {
	b.level = level
	return b
}

// Type sets the observation type.
func (b *ObservationBuilder) Type(t model.ObservationType) *ObservationBuilder {
	b.obsType = t
	return b
}

// Group attaches the observation to a group.
func (b *ObservationBuilder) Group(id model.GroupID) *ObservationBuilder {
	b.groupIDs = append(b.groupIDs, id)
	return b
}

// InGroup attaches the observation to a group handle, recording both the
// membership and the nesting parent.
func (b *ObservationBuilder) InGroup(g *GroupHandle) *ObservationBuilder {
	b.groupIDs = append(b.groupIDs, g.ID())
	b.parentGroupID = g.ID()
	return b
}

// ParentSpanID links the observation to an external tracing span.
func (b *ObservationBuilder) ParentSpanID(id string) *ObservationBuilder {
	b.parentSpanID = id
	return b
}

// Text attaches a text/plain payload.
func (b *ObservationBuilder) Text(s string) *ObservationBuilder {
	b.payloads = append(b.payloads, model.TextPayload(s))
	return b
}

// JSON serializes v and attaches it as an application/json payload.
func (b *ObservationBuilder) JSON(v any) *ObservationBuilder {
	p, err := model.JSONPayload(v)
	if err != nil {
		b.fail(err)
		return b
	}
	b.payloads = append(b.payloads, p)
	return b
}

// Bytes attaches raw bytes with an explicit MIME type.
func (b *ObservationBuilder) Bytes(data []byte, mimeType string) *ObservationBuilder {
	b.payloads = append(b.payloads, model.BytesPayload(data, mimeType))
	return b
}

// Payload attaches a payload produced by a Payloader.
func (b *ObservationBuilder) Payload(p Payloader) *ObservationBuilder {
	b.payloads = append(b.payloads, p.ToPayload())
	return b
}

// Named attaches a payload under an explicit name; unnamed payloads use
// model.DefaultPayloadName.
func (b *ObservationBuilder) Named(name string, p Payloader) *ObservationBuilder {
	payload := p.ToPayload()
	payload.Name = name
	b.payloads = append(b.payloads, payload)
	return b
}

func (b *ObservationBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Send submits the observation under the current execution from ctx (or
// the registered global). It never blocks on the network; the returned
// handle resolves when the enclosing batch has been uploaded.
func (b *ObservationBuilder) Send(ctx context.Context) *Send {
	execution := CurrentExecution(ctx)
	if execution == nil {
		return resolvedSend(model.ObservationID{}, ErrNoExecutionContext)
	}
	return b.SendTo(execution)
}

// SendTo submits the observation under an explicit execution handle.
func (b *ObservationBuilder) SendTo(h *ExecutionHandle) *Send {
	if h == nil {
		return resolvedSend(model.ObservationID{}, ErrNoExecutionContext)
	}
	if b.err != nil {
		return resolvedSend(model.ObservationID{}, b.err)
	}
	if len(b.payloads) == 0 {
		return resolvedSend(model.ObservationID{}, ErrMissingPayload)
	}

	obs := b.build(h)
	return h.Submit(obs, b.payloads)
}

func (b *ObservationBuilder) build(h *ExecutionHandle) *model.Observation {
	metadata := b.metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	groupIDs := b.groupIDs
	if groupIDs == nil {
		groupIDs = []model.GroupID{}
	}
	return &model.Observation{
		ID:              model.NewObservationID(),
		ExecutionID:     h.ID(),
		Name:            b.name,
		ObservationType: b.obsType,
		LogLevel:        b.level,
		Source:          b.source,
		Metadata:        metadata,
		GroupIDs:        groupIDs,
		ParentGroupID:   b.parentGroupID,
		ParentSpanID:    b.parentSpanID,
		CreatedAt:       time.Now().UTC(),
	}
}
