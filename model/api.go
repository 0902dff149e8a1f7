package model

// Request and response envelopes for the HTTP API.

// CreateExecutionRequest is the body of POST /api/exe.
type CreateExecutionRequest struct {
	Execution Execution `json:"execution"`
}

// CreateExecutionResponse is the (empty) response of POST /api/exe.
type CreateExecutionResponse struct{}

// ListExecutionsResponse is the response of GET /api/exe.
type ListExecutionsResponse struct {
	Executions  []Execution `json:"executions"`
	HasNextPage bool        `json:"has_next_page"`
}

// GetExecutionResponse is the response of GET /api/exe/{id}.
type GetExecutionResponse struct {
	Execution Execution `json:"execution"`
}

// CreateObservationsResponse is the (empty) response of the multipart
// observation creation endpoint.
type CreateObservationsResponse struct{}

// ListObservationsResponse is the response of GET /api/exe/{id}/obs.
// Payloads are manifest placeholders only; no payload bytes are included.
type ListObservationsResponse struct {
	Observations []ObservationWithPayloads `json:"observations"`
	HasNextPage  bool                      `json:"has_next_page"`
}

// GetObservationResponse is the response of GET /api/exe/{id}/obs/{obs}.
// Inline payload bytes are included; blob-tier payloads stay placeholders.
type GetObservationResponse struct {
	Observation ObservationWithPayloads `json:"observation"`
}

// ErrorResponse is the body returned on any 4xx/5xx.
type ErrorResponse struct {
	Error string `json:"error"`
}
