package model

// BlobThresholdBytes is the payload size dividing line between storage
// tiers: payloads at or above it are written to the blob store, smaller
// ones are kept inline in the metadata engine.
const BlobThresholdBytes = 65536

// BatchSize is the number of observations the client buffers before
// uploading a batch.
const BatchSize = 100

// MaxObservationMetadataOverhead estimates the per-observation metadata
// cost in a JSON-encoded batch: name, ids, timestamps, group ids, user
// metadata and JSON structure.
const MaxObservationMetadataOverhead = 4096

// ByteArrayJSONExpansion is the worst-case expansion factor when payload
// bytes are serialized as a JSON number array: each byte can become up to
// four characters.
const ByteArrayJSONExpansion = 4

// MaxObservationSize bounds a single JSON-expanded observation.
const MaxObservationSize = BlobThresholdBytes*ByteArrayJSONExpansion + MaxObservationMetadataOverhead

// MaxObservationBatchSize is the request body limit for the observation
// creation endpoint.
const MaxObservationBatchSize = BatchSize * MaxObservationSize

// MaxBlobSize is the request body limit for raw blob uploads (500 MiB).
const MaxBlobSize = 500 * 1024 * 1024

// DisplayThresholdBytes governs UI iframe display only (5 MiB); it is not
// a storage limit.
const DisplayThresholdBytes = 5 * 1024 * 1024
