package storage

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/observation-tools/observation-tools/model"
)

// Stored records are protobuf-encoded. The codec is written directly
// against the wire format so the stored schema needs no generated code;
// field numbers and types below are the schema and must not change.
//
//	StoredObservation:
//	  1  id                string
//	  2  execution_id      string
//	  3  name              string
//	  4  observation_type  int32
//	  5  log_level         int32
//	  6  source            StoredSourceInfo
//	  7  metadata          repeated StoredKeyValue
//	  8  group_ids         repeated string
//	  9  parent_group_id   optional string
//	  10 parent_span_id    optional string
//	  11 created_at        string (RFC 3339)
//	  12 mime_type         string
//	  13 payload_size      uint64
//	  14 payload_manifest  repeated StoredPayloadMeta
//
//	StoredSourceInfo:  1 file string, 2 line uint32, 3 column optional uint32
//	StoredKeyValue:    1 key string,  2 value string
//	StoredPayloadMeta: 1 payload_id string, 2 name string, 3 mime_type string,
//	                   4 size uint64, 5 is_blob bool
//	StoredInlinePayload: 1 data bytes

type storedObservation struct {
	ID              string
	ExecutionID     string
	Name            string
	ObservationType int32
	LogLevel        int32
	Source          *storedSourceInfo
	Metadata        []storedKeyValue
	GroupIDs        []string
	ParentGroupID   *string
	ParentSpanID    *string
	CreatedAt       string
	MimeType        string
	PayloadSize     uint64
	Manifest        []storedPayloadMeta
}

type storedSourceInfo struct {
	File   string
	Line   uint32
	Column *uint32
}

type storedKeyValue struct {
	Key   string
	Value string
}

type storedPayloadMeta struct {
	PayloadID string
	Name      string
	MimeType  string
	Size      uint64
	IsBlob    bool
}

func (m *storedObservation) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.ExecutionID)
	b = appendString(b, 3, m.Name)
	b = appendInt32(b, 4, m.ObservationType)
	b = appendInt32(b, 5, m.LogLevel)
	if m.Source != nil {
		b = appendMessage(b, 6, m.Source.marshal())
	}
	for _, kv := range m.Metadata {
		b = appendMessage(b, 7, kv.marshal())
	}
	for _, g := range m.GroupIDs {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendString(b, g)
	}
	if m.ParentGroupID != nil {
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendString(b, *m.ParentGroupID)
	}
	if m.ParentSpanID != nil {
		b = protowire.AppendTag(b, 10, protowire.BytesType)
		b = protowire.AppendString(b, *m.ParentSpanID)
	}
	b = appendString(b, 11, m.CreatedAt)
	b = appendString(b, 12, m.MimeType)
	if m.PayloadSize != 0 {
		b = protowire.AppendTag(b, 13, protowire.VarintType)
		b = protowire.AppendVarint(b, m.PayloadSize)
	}
	for _, pm := range m.Manifest {
		b = appendMessage(b, 14, pm.marshal())
	}
	return b
}

func unmarshalStoredObservation(data []byte) (*storedObservation, error) {
	m := &storedObservation{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case 1:
			return consumeString(field, typ, &m.ID)
		case 2:
			return consumeString(field, typ, &m.ExecutionID)
		case 3:
			return consumeString(field, typ, &m.Name)
		case 4:
			return consumeInt32(field, typ, &m.ObservationType)
		case 5:
			return consumeInt32(field, typ, &m.LogLevel)
		case 6:
			sub, err := consumeBytes(field, typ)
			if err != nil {
				return err
			}
			source, err := unmarshalStoredSourceInfo(sub)
			if err != nil {
				return err
			}
			m.Source = source
		case 7:
			sub, err := consumeBytes(field, typ)
			if err != nil {
				return err
			}
			kv, err := unmarshalStoredKeyValue(sub)
			if err != nil {
				return err
			}
			m.Metadata = append(m.Metadata, kv)
		case 8:
			var g string
			if err := consumeString(field, typ, &g); err != nil {
				return err
			}
			m.GroupIDs = append(m.GroupIDs, g)
		case 9:
			var s string
			if err := consumeString(field, typ, &s); err != nil {
				return err
			}
			m.ParentGroupID = &s
		case 10:
			var s string
			if err := consumeString(field, typ, &s); err != nil {
				return err
			}
			m.ParentSpanID = &s
		case 11:
			return consumeString(field, typ, &m.CreatedAt)
		case 12:
			return consumeString(field, typ, &m.MimeType)
		case 13:
			return consumeUint64(field, typ, &m.PayloadSize)
		case 14:
			sub, err := consumeBytes(field, typ)
			if err != nil {
				return err
			}
			pm, err := unmarshalStoredPayloadMeta(sub)
			if err != nil {
				return err
			}
			m.Manifest = append(m.Manifest, pm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *storedSourceInfo) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.File)
	if m.Line != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Line))
	}
	if m.Column != nil {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*m.Column))
	}
	return b
}

func unmarshalStoredSourceInfo(data []byte) (*storedSourceInfo, error) {
	m := &storedSourceInfo{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case 1:
			return consumeString(field, typ, &m.File)
		case 2:
			var v uint64
			if err := consumeUint64(field, typ, &v); err != nil {
				return err
			}
			m.Line = uint32(v)
		case 3:
			var v uint64
			if err := consumeUint64(field, typ, &v); err != nil {
				return err
			}
			col := uint32(v)
			m.Column = &col
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m storedKeyValue) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Key)
	b = appendString(b, 2, m.Value)
	return b
}

func unmarshalStoredKeyValue(data []byte) (storedKeyValue, error) {
	var m storedKeyValue
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case 1:
			return consumeString(field, typ, &m.Key)
		case 2:
			return consumeString(field, typ, &m.Value)
		}
		return nil
	})
	return m, err
}

func (m storedPayloadMeta) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.PayloadID)
	b = appendString(b, 2, m.Name)
	b = appendString(b, 3, m.MimeType)
	if m.Size != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Size)
	}
	if m.IsBlob {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func unmarshalStoredPayloadMeta(data []byte) (storedPayloadMeta, error) {
	var m storedPayloadMeta
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case 1:
			return consumeString(field, typ, &m.PayloadID)
		case 2:
			return consumeString(field, typ, &m.Name)
		case 3:
			return consumeString(field, typ, &m.MimeType)
		case 4:
			return consumeUint64(field, typ, &m.Size)
		case 5:
			var v uint64
			if err := consumeUint64(field, typ, &v); err != nil {
				return err
			}
			m.IsBlob = v != 0
		}
		return nil
	})
	return m, err
}

// marshalInlinePayload encodes a StoredInlinePayload.
func marshalInlinePayload(data []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b
}

// unmarshalInlinePayload decodes a StoredInlinePayload.
func unmarshalInlinePayload(raw []byte) ([]byte, error) {
	var data []byte
	err := walkFields(raw, func(num protowire.Number, typ protowire.Type, field []byte) error {
		if num == 1 {
			sub, err := consumeBytes(field, typ)
			if err != nil {
				return err
			}
			data = append([]byte(nil), sub...)
		}
		return nil
	})
	return data, err
}

// Wire helpers.

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(uint32(v)))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// walkFields iterates the top-level fields of an encoded message, handing
// each to fn with the raw remainder of the buffer; fn consumes its value
// from the front of the remainder via the consume helpers. Unknown fields
// are skipped.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, field []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		if err := fn(num, typ, data); err != nil {
			return err
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}

func consumeString(field []byte, typ protowire.Type, dst *string) error {
	if typ != protowire.BytesType {
		return fmt.Errorf("storage: unexpected wire type %d for string field", typ)
	}
	v, n := protowire.ConsumeString(field)
	if n < 0 {
		return protowire.ParseError(n)
	}
	*dst = v
	return nil
}

func consumeBytes(field []byte, typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("storage: unexpected wire type %d for bytes field", typ)
	}
	v, n := protowire.ConsumeBytes(field)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return v, nil
}

func consumeUint64(field []byte, typ protowire.Type, dst *uint64) error {
	if typ != protowire.VarintType {
		return fmt.Errorf("storage: unexpected wire type %d for varint field", typ)
	}
	v, n := protowire.ConsumeVarint(field)
	if n < 0 {
		return protowire.ParseError(n)
	}
	*dst = v
	return nil
}

func consumeInt32(field []byte, typ protowire.Type, dst *int32) error {
	var v uint64
	if err := consumeUint64(field, typ, &v); err != nil {
		return err
	}
	*dst = int32(uint32(v))
	return nil
}

// Conversions between stored records and the shared model.

func storedFromObservation(obs *model.Observation, payloads []model.Payload) *storedObservation {
	stored := &storedObservation{
		ID:              obs.ID.String(),
		ExecutionID:     obs.ExecutionID.String(),
		Name:            obs.Name,
		ObservationType: obs.ObservationType.Code(),
		LogLevel:        obs.LogLevel.Code(),
		CreatedAt:       obs.CreatedAt.Format(time.RFC3339Nano),
	}
	if obs.Source != nil {
		stored.Source = &storedSourceInfo{
			File:   obs.Source.File,
			Line:   obs.Source.Line,
			Column: obs.Source.Column,
		}
	}
	for k, v := range obs.Metadata {
		stored.Metadata = append(stored.Metadata, storedKeyValue{Key: k, Value: v})
	}
	for _, g := range obs.GroupIDs {
		stored.GroupIDs = append(stored.GroupIDs, g.String())
	}
	if obs.ParentGroupID != "" {
		parent := obs.ParentGroupID.String()
		stored.ParentGroupID = &parent
	}
	if obs.ParentSpanID != "" {
		span := obs.ParentSpanID
		stored.ParentSpanID = &span
	}
	for _, p := range payloads {
		stored.Manifest = append(stored.Manifest, storedPayloadMeta{
			PayloadID: p.ID.String(),
			Name:      p.Name,
			MimeType:  p.MimeType,
			Size:      p.Size,
			IsBlob:    p.IsBlob,
		})
	}
	if len(payloads) > 0 {
		stored.MimeType = payloads[0].MimeType
		stored.PayloadSize = payloads[0].Size
	}
	return stored
}

func (m *storedObservation) toObservation() (model.Observation, error) {
	id, err := model.ParseObservationID(m.ID)
	if err != nil {
		return model.Observation{}, fmt.Errorf("storage: stored observation id: %w", err)
	}
	executionID, err := model.ParseExecutionID(m.ExecutionID)
	if err != nil {
		return model.Observation{}, fmt.Errorf("storage: stored execution id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
	if err != nil {
		return model.Observation{}, fmt.Errorf("storage: stored created_at: %w", err)
	}

	obs := model.Observation{
		ID:              id,
		ExecutionID:     executionID,
		Name:            m.Name,
		ObservationType: model.ObservationTypeFromCode(m.ObservationType),
		LogLevel:        model.LogLevelFromCode(m.LogLevel),
		Metadata:        map[string]string{},
		GroupIDs:        []model.GroupID{},
		CreatedAt:       createdAt.UTC(),
	}
	if m.Source != nil {
		obs.Source = &model.SourceInfo{
			File:   m.Source.File,
			Line:   m.Source.Line,
			Column: m.Source.Column,
		}
	}
	for _, kv := range m.Metadata {
		obs.Metadata[kv.Key] = kv.Value
	}
	for _, g := range m.GroupIDs {
		obs.GroupIDs = append(obs.GroupIDs, model.GroupID(g))
	}
	if m.ParentGroupID != nil {
		obs.ParentGroupID = model.GroupID(*m.ParentGroupID)
	}
	if m.ParentSpanID != nil {
		obs.ParentSpanID = *m.ParentSpanID
	}
	return obs, nil
}

// manifestPayloads expands the stored manifest into payload placeholders;
// every payload starts as a placeholder and inline data is attached by the
// caller when loaded.
func (m *storedObservation) manifestPayloads() ([]model.Payload, error) {
	payloads := make([]model.Payload, 0, len(m.Manifest))
	for _, pm := range m.Manifest {
		id, err := model.ParsePayloadID(pm.PayloadID)
		if err != nil {
			return nil, fmt.Errorf("storage: stored payload id: %w", err)
		}
		payloads = append(payloads, model.Payload{
			ID:       id,
			Name:     pm.Name,
			MimeType: pm.MimeType,
			Size:     pm.Size,
			IsBlob:   pm.IsBlob,
		})
	}
	return payloads, nil
}
