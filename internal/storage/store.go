// Package storage implements the metadata engine: an embedded ordered
// key-value store (bbolt) holding executions, observations with their
// inline payloads, and the secondary indices the read API scans.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	apperrors "github.com/observation-tools/observation-tools/internal/pkg/errors"
	"github.com/observation-tools/observation-tools/model"
)

// Tree (bucket) names. All trees share the single database file.
var (
	bucketExecutions            = []byte("executions")
	bucketObservations          = []byte("observations")
	bucketExecutionObservations = []byte("execution_observations")
	bucketGroupObservations     = []byte("group_observations")
	bucketGroupIDIndex          = []byte("group_id_index")
)

// ListOptions narrows an observation listing.
type ListOptions struct {
	Limit  int
	Offset int

	// Type filters by observation type when non-empty.
	Type model.ObservationType

	// Group restricts the listing to direct descendants of a group when
	// HasGroup is set; an empty Group means top-level (ROOT) observations.
	Group    model.GroupID
	HasGroup bool
}

// Store is the metadata engine. It is safe for concurrent use; bbolt
// serializes writers internally.
type Store struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open opens (or creates) the database file and its trees.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketExecutions,
			bucketObservations,
			bucketExecutionObservations,
			bucketGroupObservations,
			bucketGroupIDIndex,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create trees: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreExecution writes an execution row, keyed by its id string.
func (s *Store) StoreExecution(execution *model.Execution) error {
	value, err := json.Marshal(execution)
	if err != nil {
		return apperrors.Internal("encode execution").WithError(err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExecutions).Put([]byte(execution.ID.String()), value)
	})
	if err != nil {
		return apperrors.Internal("store execution").WithError(err)
	}
	return nil
}

// GetExecution loads an execution by id.
func (s *Store) GetExecution(id model.ExecutionID) (*model.Execution, error) {
	var execution model.Execution
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketExecutions).Get([]byte(id.String()))
		if value == nil {
			return apperrors.NotFound(fmt.Sprintf("execution %s", id))
		}
		return json.Unmarshal(value, &execution)
	})
	if err != nil {
		if apperrors.GetAppError(err) != nil {
			return nil, err
		}
		return nil, apperrors.Internal("load execution").WithError(err)
	}
	return &execution, nil
}

// ListExecutions returns executions sorted by created_at descending.
func (s *Store) ListExecutions(limit, offset int) ([]model.Execution, error) {
	var executions []model.Execution
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExecutions).ForEach(func(_, value []byte) error {
			var execution model.Execution
			if err := json.Unmarshal(value, &execution); err != nil {
				s.logger.Error("skipping undecodable execution row", zap.Error(err))
				return nil
			}
			executions = append(executions, execution)
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.Internal("list executions").WithError(err)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	return paginate(executions, limit, offset), nil
}

// CountExecutions returns the total number of executions.
func (s *Store) CountExecutions() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketExecutions).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, apperrors.Internal("count executions").WithError(err)
	}
	return count, nil
}

// StoreObservations persists a batch of observations in a single write
// transaction: for each observation its metadata row (with the complete
// payload manifest), one row per inline payload, and the index entries.
// Inline payload rows land before the metadata row inside the same
// transaction, so a visible observation always has its payloads.
func (s *Store) StoreObservations(batch []model.ObservationWithPayloads) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		observations := tx.Bucket(bucketObservations)
		executionIndex := tx.Bucket(bucketExecutionObservations)
		groupIndex := tx.Bucket(bucketGroupObservations)
		groupIDs := tx.Bucket(bucketGroupIDIndex)

		for i := range batch {
			obs := &batch[i].Observation
			payloads := batch[i].Payloads

			for _, p := range payloads {
				if p.IsBlob {
					continue
				}
				key := inlinePayloadKey(obs.ID, p.ID)
				if err := observations.Put(key, marshalInlinePayload(p.Data)); err != nil {
					return err
				}
			}

			stored := storedFromObservation(obs, payloads)
			if err := observations.Put(metadataKey(obs.ID), stored.marshal()); err != nil {
				return err
			}

			obsIDBytes := []byte(obs.ID.String())
			if err := executionIndex.Put(executionObservationKey(obs.ExecutionID, obs.ID), obsIDBytes); err != nil {
				return err
			}
			if err := groupIndex.Put(groupObservationKey(obs.ExecutionID, obs.ParentGroupID, obs.ID), obsIDBytes); err != nil {
				return err
			}
			if groupID := obs.GroupID(); groupID != "" {
				if err := groupIDs.Put([]byte(groupID.String()), obsIDBytes); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Internal("store observations").WithError(err)
	}
	return nil
}

// GetObservation loads one observation with its inline payload bytes via
// a single prefix scan. Blob-tier payloads stay placeholders.
func (s *Store) GetObservation(id model.ObservationID) (*model.ObservationWithPayloads, error) {
	var result *model.ObservationWithPayloads
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		result, err = getObservationTx(tx, id)
		return err
	})
	if err != nil {
		if apperrors.GetAppError(err) != nil {
			return nil, err
		}
		return nil, apperrors.Internal("load observation").WithError(err)
	}
	return result, nil
}

func getObservationTx(tx *bolt.Tx, id model.ObservationID) (*model.ObservationWithPayloads, error) {
	prefix := observationPrefix(id)
	cursor := tx.Bucket(bucketObservations).Cursor()

	var stored *storedObservation
	inlineData := make(map[string][]byte)

	for key, value := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = cursor.Next() {
		suffixStart := len(prefix)
		switch {
		case len(key) == suffixStart+1 && key[suffixStart] == keyMetadataSuffix:
			decoded, err := unmarshalStoredObservation(value)
			if err != nil {
				return nil, err
			}
			stored = decoded
		case len(key) > suffixStart+1 && key[suffixStart] == keyPayloadSuffix:
			payloadID := string(key[suffixStart+1:])
			data, err := unmarshalInlinePayload(value)
			if err != nil {
				return nil, err
			}
			inlineData[payloadID] = data
		}
	}

	if stored == nil {
		return nil, apperrors.NotFound(fmt.Sprintf("observation %s", id))
	}

	observation, err := stored.toObservation()
	if err != nil {
		return nil, err
	}
	payloads, err := stored.manifestPayloads()
	if err != nil {
		return nil, err
	}
	for i := range payloads {
		if payloads[i].IsBlob {
			continue
		}
		if data, ok := inlineData[payloads[i].ID.String()]; ok {
			payloads[i].Data = data
		}
	}

	return &model.ObservationWithPayloads{Observation: observation, Payloads: payloads}, nil
}

// LookupGroup resolves a group id to the observation that represents it.
func (s *Store) LookupGroup(id model.GroupID) (*model.ObservationWithPayloads, error) {
	var obsID model.ObservationID
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketGroupIDIndex).Get([]byte(id.String()))
		if value == nil {
			return apperrors.NotFound(fmt.Sprintf("group %s", id))
		}
		parsed, err := model.ParseObservationID(string(value))
		if err != nil {
			return err
		}
		obsID = parsed
		return nil
	})
	if err != nil {
		if apperrors.GetAppError(err) != nil {
			return nil, err
		}
		return nil, apperrors.Internal("resolve group").WithError(err)
	}
	return s.GetObservation(obsID)
}

// ListObservations lists an execution's observations in creation order
// (the ids are time-ordered, so index order is creation order). Payloads
// are manifest placeholders only, keeping listings bounded. The optional
// type and group filters are applied before pagination.
func (s *Store) ListObservations(executionID model.ExecutionID, opts ListOptions) ([]model.ObservationWithPayloads, error) {
	indexBucket := bucketExecutionObservations
	prefix := executionPrefix(executionID)
	if opts.HasGroup {
		indexBucket = bucketGroupObservations
		prefix = groupPrefix(executionID, opts.Group)
	}

	var results []model.ObservationWithPayloads
	err := s.db.View(func(tx *bolt.Tx) error {
		observations := tx.Bucket(bucketObservations)
		cursor := tx.Bucket(indexBucket).Cursor()

		skipped := 0
		for key, value := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = cursor.Next() {
			obsID, err := model.ParseObservationID(string(value))
			if err != nil {
				s.logger.Error("skipping invalid index entry", zap.ByteString("key", key), zap.Error(err))
				continue
			}

			raw := observations.Get(metadataKey(obsID))
			if raw == nil {
				// Index entry without a row; tolerated, never fatal.
				continue
			}
			stored, err := unmarshalStoredObservation(raw)
			if err != nil {
				return err
			}
			observation, err := stored.toObservation()
			if err != nil {
				return err
			}
			if opts.Type != "" && observation.ObservationType != opts.Type {
				continue
			}

			if skipped < opts.Offset {
				skipped++
				continue
			}
			if opts.Limit > 0 && len(results) >= opts.Limit {
				break
			}

			payloads, err := stored.manifestPayloads()
			if err != nil {
				return err
			}
			results = append(results, model.ObservationWithPayloads{
				Observation: observation,
				Payloads:    payloads,
			})
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal("list observations").WithError(err)
	}
	return results, nil
}

// CountObservations counts an execution's observations, optionally
// filtered by type.
func (s *Store) CountObservations(executionID model.ExecutionID, typeFilter model.ObservationType) (int, error) {
	prefix := executionPrefix(executionID)
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		observations := tx.Bucket(bucketObservations)
		cursor := tx.Bucket(bucketExecutionObservations).Cursor()

		for key, value := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = cursor.Next() {
			if typeFilter == "" {
				count++
				continue
			}
			obsID, err := model.ParseObservationID(string(value))
			if err != nil {
				continue
			}
			raw := observations.Get(metadataKey(obsID))
			if raw == nil {
				continue
			}
			stored, err := unmarshalStoredObservation(raw)
			if err != nil {
				return err
			}
			if model.ObservationTypeFromCode(stored.ObservationType) == typeFilter {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Internal("count observations").WithError(err)
	}
	return count, nil
}

func paginate(executions []model.Execution, limit, offset int) []model.Execution {
	if offset >= len(executions) {
		return []model.Execution{}
	}
	executions = executions[offset:]
	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}
	return executions
}
