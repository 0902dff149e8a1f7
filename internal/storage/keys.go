package storage

import (
	"github.com/observation-tools/observation-tools/model"
)

// Key structure of the observations tree. Ids are stored as the bytes of
// their 32-hex string form, which preserves creation order:
//
//	{obs_id}\x00\x00              -> encoded observation metadata + manifest
//	{obs_id}\x00\x01{payload_id}  -> encoded inline payload bytes
//
// A scan over the prefix {obs_id}\x00 yields the metadata row and every
// inline payload of the observation in one pass.
const (
	keySep            = 0x00
	keyMetadataSuffix = 0x00
	keyPayloadSuffix  = 0x01
)

// rootGroupKey stands in for "no parent" in the group_observations tree so
// that an execution's top-level observations are scannable like any other
// group's children.
const rootGroupKey = "ROOT"

func metadataKey(id model.ObservationID) []byte {
	key := []byte(id.String())
	return append(key, keySep, keyMetadataSuffix)
}

func inlinePayloadKey(obsID model.ObservationID, payloadID model.PayloadID) []byte {
	key := []byte(obsID.String())
	key = append(key, keySep, keyPayloadSuffix)
	return append(key, payloadID.String()...)
}

func observationPrefix(id model.ObservationID) []byte {
	return append([]byte(id.String()), keySep)
}

// executionObservationKey indexes observations by execution:
// {execution_id}:{observation_id} -> {observation_id}.
func executionObservationKey(executionID model.ExecutionID, observationID model.ObservationID) []byte {
	return []byte(executionID.String() + ":" + observationID.String())
}

func executionPrefix(executionID model.ExecutionID) []byte {
	return []byte(executionID.String() + ":")
}

// groupObservationKey indexes direct descendants of a group:
// {execution_id}:{parent_group_or_ROOT}:{observation_id} -> {observation_id}.
func groupObservationKey(executionID model.ExecutionID, parent model.GroupID, observationID model.ObservationID) []byte {
	return []byte(executionID.String() + ":" + parentSegment(parent) + ":" + observationID.String())
}

func groupPrefix(executionID model.ExecutionID, parent model.GroupID) []byte {
	return []byte(executionID.String() + ":" + parentSegment(parent) + ":")
}

func parentSegment(parent model.GroupID) string {
	if parent == "" {
		return rootGroupKey
	}
	return parent.String()
}
