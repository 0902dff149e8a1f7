// Package errors provides application error types for the
// observation-tools server.
//
// This package defines:
//   - AppError type with error classification
//   - Error constructors for the status codes the API emits
//   - Helpers for mapping errors to HTTP responses
package errors
