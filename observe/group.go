package observe

import (
	"context"
	"strconv"
	"time"

	"github.com/observation-tools/observation-tools/model"
)

// GroupBuilder assembles a group: a hierarchical container for
// observations. Physically a group is an observation of type Group whose
// first group id is the group's own id.
type GroupBuilder struct {
	name     string
	id       model.GroupID
	parent   model.GroupID
	metadata map[string]string
	source   *model.SourceInfo
	level    model.LogLevel
}

// NewGroup creates a group builder with the given name.
func NewGroup(name string) *GroupBuilder {
	return &GroupBuilder{name: name, level: model.LevelInfo}
}

// ID sets a custom group id. Useful when the id comes from an external
// system (e.g. a tracing span id).
func (g *GroupBuilder) ID(id string) *GroupBuilder {
	g.id = model.GroupID(id)
	return g
}

// Parent sets the nesting parent, making this a child group.
func (g *GroupBuilder) Parent(id model.GroupID) *GroupBuilder {
	g.parent = id
	return g
}

// Metadata adds a user metadata key-value pair.
func (g *GroupBuilder) Metadata(key, value string) *GroupBuilder {
	if g.metadata == nil {
		g.metadata = make(map[string]string)
	}
	g.metadata[key] = value
	return g
}

// Source records the call site that opened the group.
func (g *GroupBuilder) Source(file string, line uint32) *GroupBuilder {
	g.source = &model.SourceInfo{File: file, Line: line}
	return g
}

// Level sets the log level of the group observation.
func (g *GroupBuilder) Level(level model.LogLevel) *GroupBuilder {
	g.level = level
	return g
}

// Send emits the group observation under the current execution from ctx
// and returns the group handle plus the upload completion handle.
func (g *GroupBuilder) Send(ctx context.Context) (*GroupHandle, *Send) {
	return g.SendTo(CurrentExecution(ctx))
}

// SendTo emits the group observation under an explicit execution handle.
func (g *GroupBuilder) SendTo(h *ExecutionHandle) (*GroupHandle, *Send) {
	if h == nil {
		return &GroupHandle{groupID: g.groupID()}, resolvedSend(model.ObservationID{}, ErrNoExecutionContext)
	}

	groupID := g.groupID()
	handle := &GroupHandle{groupID: groupID, execution: h}
	return handle, g.emit(handle, g.metadata)
}

// Start resolves the execution now and defers emission until End, which
// stamps the group with its measured duration. The group id is available
// immediately through Handle, so children can reference it before End.
func (g *GroupBuilder) Start(ctx context.Context) *GroupSpan {
	execution := CurrentExecution(ctx)
	groupID := g.groupID()
	return &GroupSpan{
		builder:   g,
		handle:    &GroupHandle{groupID: groupID, execution: execution},
		startedAt: time.Now(),
	}
}

func (g *GroupBuilder) groupID() model.GroupID {
	if g.id != "" {
		return g.id
	}
	return model.NewGroupID()
}

// emit sends the group observation carrying metadata as its JSON payload.
func (g *GroupBuilder) emit(handle *GroupHandle, metadata map[string]string) *Send {
	if handle.execution == nil {
		return resolvedSend(model.ObservationID{}, ErrNoExecutionContext)
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	payload, err := model.JSONPayload(metadata)
	if err != nil {
		return resolvedSend(model.ObservationID{}, err)
	}

	builder := &ObservationBuilder{
		name:          g.name,
		obsType:       model.TypeGroup,
		level:         g.level,
		source:        g.source,
		groupIDs:      []model.GroupID{handle.groupID},
		parentGroupID: g.parent,
		metadata:      metadata,
		payloads:      []model.Payload{payload},
	}
	return builder.SendTo(handle.execution)
}

// GroupHandle refers to a created (or starting) group.
type GroupHandle struct {
	groupID   model.GroupID
	execution *ExecutionHandle
}

// GroupHandleFromID constructs a handle for a group whose id is already
// known, without emitting a group observation. Used by span bridges that
// manage their own ids.
func GroupHandleFromID(id model.GroupID, execution *ExecutionHandle) *GroupHandle {
	return &GroupHandle{groupID: id, execution: execution}
}

// ID returns the group id.
func (h *GroupHandle) ID() model.GroupID { return h.groupID }

// Child creates a builder for a nested group with this group as parent.
func (h *GroupHandle) Child(name string) *GroupBuilder {
	return NewGroup(name).Parent(h.groupID)
}

// GroupSpan is a group whose observation is emitted at End, carrying the
// measured duration in its metadata.
type GroupSpan struct {
	builder   *GroupBuilder
	handle    *GroupHandle
	startedAt time.Time
	ended     bool
}

// Handle returns the group handle; valid before End.
func (s *GroupSpan) Handle() *GroupHandle { return s.handle }

// End emits the group observation with duration_s and duration_ns
// metadata. Subsequent calls are no-ops.
func (s *GroupSpan) End() *Send {
	if s.ended {
		return resolvedSend(model.ObservationID{}, nil)
	}
	s.ended = true

	elapsed := time.Since(s.startedAt)
	metadata := make(map[string]string, len(s.builder.metadata)+2)
	for k, v := range s.builder.metadata {
		metadata[k] = v
	}
	metadata["duration_s"] = strconv.FormatFloat(elapsed.Seconds(), 'f', -1, 64)
	metadata["duration_ns"] = strconv.FormatInt(elapsed.Nanoseconds(), 10)

	return s.builder.emit(s.handle, metadata)
}
