package model

import "time"

// Execution is the root scope for data collection: one run of an
// instrumented program. All observations are associated with exactly one
// execution. Executions are immutable once uploaded.
type Execution struct {
	ID        ExecutionID       `json:"id"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewExecution creates a new execution with the given name.
func NewExecution(name string) *Execution {
	now := time.Now().UTC()
	return &Execution{
		ID:        NewExecutionID(),
		Name:      name,
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewExecutionWithMetadata creates a new execution with user metadata.
func NewExecutionWithMetadata(name string, metadata map[string]string) *Execution {
	e := NewExecution(name)
	if metadata != nil {
		e.Metadata = metadata
	}
	return e
}
