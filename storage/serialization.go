// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/poiesic/docqa/core"
)

func marshal[T any](ser mus.Serializer[T], v T) []byte {
	buf := make([]byte, ser.Size(v))
	ser.Marshal(v, buf)
	return buf
}

func unmarshal[T any](ser mus.Serializer[T], data []byte, what string) (T, error) {
	v, _, err := ser.Unmarshal(data)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, err)
	}
	return v, nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return marshal(IDMUS, id)
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	return unmarshal(IDMUS, data, "id")
}

// MarshalMeta serializes index metadata to bytes.
func MarshalMeta(meta *IndexMeta) []byte {
	return marshal(MetaMUS, *meta)
}

// UnmarshalMeta deserializes index metadata from bytes.
func UnmarshalMeta(data []byte) (*IndexMeta, error) {
	meta, err := unmarshal(MetaMUS, data, "index meta")
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// MarshalSegments serializes document segments to bytes.
func MarshalSegments(segments []core.Segment) []byte {
	return marshal(SegmentsMUS, segments)
}

// UnmarshalSegments deserializes document segments from bytes.
func UnmarshalSegments(data []byte) ([]core.Segment, error) {
	return unmarshal(SegmentsMUS, data, "segments")
}

// MarshalChunks serializes chunks to bytes.
func MarshalChunks(chunks []*core.Chunk) []byte {
	values := make([]core.Chunk, len(chunks))
	for i, c := range chunks {
		values[i] = *c
	}
	return marshal(ChunksMUS, values)
}

// UnmarshalChunks deserializes chunks from bytes.
func UnmarshalChunks(data []byte) ([]*core.Chunk, error) {
	values, err := unmarshal(ChunksMUS, data, "chunks")
	if err != nil {
		return nil, err
	}
	chunks := make([]*core.Chunk, len(values))
	for i := range values {
		chunks[i] = &values[i]
	}
	return chunks, nil
}

// MarshalFields serializes structured fields to bytes.
func MarshalFields(fields []core.StructuredField) []byte {
	return marshal(FieldsMUS, fields)
}

// UnmarshalFields deserializes structured fields from bytes.
func UnmarshalFields(data []byte) ([]core.StructuredField, error) {
	return unmarshal(FieldsMUS, data, "fields")
}

// MarshalVectors serializes chunk vectors to bytes.
func MarshalVectors(vectors [][]float32) []byte {
	return marshal(VectorsMUS, vectors)
}

// UnmarshalVectors deserializes chunk vectors from bytes.
func UnmarshalVectors(data []byte) ([][]float32, error) {
	return unmarshal(VectorsMUS, data, "vectors")
}
