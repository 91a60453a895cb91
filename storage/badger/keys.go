package badger

import (
	"encoding/binary"

	"github.com/poiesic/docqa/core"
)

// Key prefixes for different data types
const (
	metaPrefix    = "docmeta"
	segmentPrefix = "docseg"
	chunkPrefix   = "docchunk"
	fieldPrefix   = "docfield"
	vectorPrefix  = "docvec"
)

// makeDocKey generates prefix:id with the id in BigEndian order so that
// iterating a prefix visits documents in id order.
func makeDocKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+1+8)
	offset := copy(buf, prefix)
	buf[offset] = ':'
	binary.BigEndian.PutUint64(buf[offset+1:], uint64(id))
	return buf
}

// makeVectorKey generates a key for a document's vectors under one embedding model.
// Format: prefix:id:model
func makeVectorKey(id core.ID, modelID string) []byte {
	base := makePartialVectorKey(id)
	buf := make([]byte, len(base)+len(modelID))
	offset := copy(buf, base)
	copy(buf[offset:], modelID)
	return buf
}

// makePartialVectorKey generates the prefix shared by all vector keys of a document.
// Format: prefix:id:
func makePartialVectorKey(id core.ID) []byte {
	return append(makeDocKey(vectorPrefix, id), ':')
}
