package storage

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docqa/core"
)

// MUS serializers for the persisted types. Field order is the wire order;
// append new fields at the end of a struct serializer only.
var (
	IDMUS       mus.Serializer[core.ID]                = idSer{}
	TimeMUS     mus.Serializer[time.Time]              = timeSer{}
	VectorMUS   mus.Serializer[[]float32]              = sliceSer[float32]{elem: raw.Float32}
	MetaMUS     mus.Serializer[IndexMeta]              = metaSer{}
	SegmentMUS  mus.Serializer[core.Segment]           = segmentSer{}
	ChunkMUS    mus.Serializer[core.Chunk]             = chunkSer{}
	FieldMUS    mus.Serializer[core.StructuredField]   = fieldSer{}
	SegmentsMUS mus.Serializer[[]core.Segment]         = sliceSer[core.Segment]{elem: SegmentMUS}
	FieldsMUS   mus.Serializer[[]core.StructuredField] = sliceSer[core.StructuredField]{elem: FieldMUS}
	VectorsMUS  mus.Serializer[[][]float32]            = sliceSer[[]float32]{elem: VectorMUS}
	ChunksMUS   mus.Serializer[[]core.Chunk]           = sliceSer[core.Chunk]{elem: ChunkMUS}
)

// encoder writes values one after another into a presized buffer.
type encoder struct {
	bs []byte
	n  int
}

func put[T any](e *encoder, ser mus.Serializer[T], v T) {
	e.n += ser.Marshal(v, e.bs[e.n:])
}

// decoder reads values in order and keeps the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func get[T any](d *decoder, ser mus.Serializer[T]) (v T) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = ser.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

type idSer struct{}

func (idSer) Marshal(id core.ID, bs []byte) int { return raw.Uint64.Marshal(uint64(id), bs) }
func (idSer) Size(id core.ID) int                { return raw.Uint64.Size(uint64(id)) }
func (idSer) Skip(bs []byte) (int, error)        { return raw.Uint64.Skip(bs) }
func (idSer) Unmarshal(bs []byte) (core.ID, int, error) {
	v, n, err := raw.Uint64.Unmarshal(bs)
	return core.ID(v), n, err
}

// timeSer stores UTC microseconds since the Unix epoch.
type timeSer struct{}

func (timeSer) Marshal(t time.Time, bs []byte) int { return varint.Int64.Marshal(t.UnixMicro(), bs) }
func (timeSer) Size(t time.Time) int                { return varint.Int64.Size(t.UnixMicro()) }
func (timeSer) Skip(bs []byte) (int, error)         { return varint.Int64.Skip(bs) }
func (timeSer) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	return time.UnixMicro(v).UTC(), n, err
}

// sliceSer writes a varint length followed by the elements.
type sliceSer[T any] struct {
	elem mus.Serializer[T]
}

func (s sliceSer[T]) Marshal(v []T, bs []byte) int {
	e := &encoder{bs: bs}
	put(e, varint.Int, len(v))
	for _, item := range v {
		put(e, s.elem, item)
	}
	return e.n
}

func (s sliceSer[T]) Size(v []T) int {
	size := varint.Int.Size(len(v))
	for _, item := range v {
		size += s.elem.Size(item)
	}
	return size
}

func (s sliceSer[T]) Unmarshal(bs []byte) ([]T, int, error) {
	d := &decoder{bs: bs}
	length := get(d, varint.Int)
	if d.err != nil {
		return nil, d.n, d.err
	}
	if length < 0 || length > len(bs) {
		return nil, d.n, ErrTruncatedData
	}
	v := make([]T, length)
	for i := range v {
		v[i] = get(d, s.elem)
	}
	return v, d.n, d.err
}

func (s sliceSer[T]) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type metaSer struct{}

func (metaSer) Marshal(m IndexMeta, bs []byte) int {
	e := &encoder{bs: bs}
	put(e, IDMUS, m.DocumentId)
	put(e, ord.String, string(m.Format))
	put(e, ord.String, string(m.Kind))
	put(e, varint.Int, m.ByteLength)
	put(e, TimeMUS, m.ExtractedAt)
	put(e, TimeMUS, m.IndexedAt)
	put(e, ord.String, m.EmbeddingModel)
	put(e, varint.Int, m.Dimension)
	put(e, varint.Int, m.Chunks)
	put(e, varint.Int, m.Fields)
	return e.n
}

func (metaSer) Size(m IndexMeta) int {
	return IDMUS.Size(m.DocumentId) +
		ord.String.Size(string(m.Format)) +
		ord.String.Size(string(m.Kind)) +
		varint.Int.Size(m.ByteLength) +
		TimeMUS.Size(m.ExtractedAt) +
		TimeMUS.Size(m.IndexedAt) +
		ord.String.Size(m.EmbeddingModel) +
		varint.Int.Size(m.Dimension) +
		varint.Int.Size(m.Chunks) +
		varint.Int.Size(m.Fields)
}

func (metaSer) Unmarshal(bs []byte) (IndexMeta, int, error) {
	d := &decoder{bs: bs}
	m := IndexMeta{
		DocumentId:     get(d, IDMUS),
		Format:         core.Format(get(d, ord.String)),
		Kind:           core.DocumentKind(get(d, ord.String)),
		ByteLength:     get(d, varint.Int),
		ExtractedAt:    get(d, TimeMUS),
		IndexedAt:      get(d, TimeMUS),
		EmbeddingModel: get(d, ord.String),
		Dimension:      get(d, varint.Int),
		Chunks:         get(d, varint.Int),
		Fields:         get(d, varint.Int),
	}
	return m, d.n, d.err
}

func (s metaSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type segmentSer struct{}

func (segmentSer) Marshal(s core.Segment, bs []byte) int {
	e := &encoder{bs: bs}
	put(e, varint.Int, int(s.Kind))
	put(e, varint.Int, s.Number)
	put(e, ord.String, s.Title)
	put(e, ord.String, s.Text)
	return e.n
}

func (segmentSer) Size(s core.Segment) int {
	return varint.Int.Size(int(s.Kind)) +
		varint.Int.Size(s.Number) +
		ord.String.Size(s.Title) +
		ord.String.Size(s.Text)
}

func (segmentSer) Unmarshal(bs []byte) (core.Segment, int, error) {
	d := &decoder{bs: bs}
	s := core.Segment{
		Kind:   core.SegmentKind(get(d, varint.Int)),
		Number: get(d, varint.Int),
		Title:  get(d, ord.String),
		Text:   get(d, ord.String),
	}
	return s, d.n, d.err
}

func (s segmentSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type chunkSer struct{}

func (chunkSer) Marshal(c core.Chunk, bs []byte) int {
	e := &encoder{bs: bs}
	put(e, IDMUS, c.Id)
	put(e, IDMUS, c.DocumentId)
	put(e, varint.Int, c.Ordinal)
	put(e, ord.String, c.Text)
	put(e, varint.Int, c.Start)
	put(e, varint.Int, c.End)
	put(e, varint.Int, c.Page)
	put(e, varint.Int, c.EndPage)
	put(e, varint.Int, int(c.SegmentKind))
	return e.n
}

func (chunkSer) Size(c core.Chunk) int {
	return IDMUS.Size(c.Id) +
		IDMUS.Size(c.DocumentId) +
		varint.Int.Size(c.Ordinal) +
		ord.String.Size(c.Text) +
		varint.Int.Size(c.Start) +
		varint.Int.Size(c.End) +
		varint.Int.Size(c.Page) +
		varint.Int.Size(c.EndPage) +
		varint.Int.Size(int(c.SegmentKind))
}

func (chunkSer) Unmarshal(bs []byte) (core.Chunk, int, error) {
	d := &decoder{bs: bs}
	c := core.Chunk{
		Id:          get(d, IDMUS),
		DocumentId:  get(d, IDMUS),
		Ordinal:     get(d, varint.Int),
		Text:        get(d, ord.String),
		Start:       get(d, varint.Int),
		End:         get(d, varint.Int),
		Page:        get(d, varint.Int),
		EndPage:     get(d, varint.Int),
		SegmentKind: core.SegmentKind(get(d, varint.Int)),
	}
	return c, d.n, d.err
}

func (s chunkSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type fieldSer struct{}

func (fieldSer) Marshal(f core.StructuredField, bs []byte) int {
	e := &encoder{bs: bs}
	put(e, ord.String, string(f.Key))
	put(e, ord.String, f.Value)
	put(e, IDMUS, f.ChunkId)
	put(e, varint.Int, f.Ordinal)
	put(e, varint.Int, f.Page)
	put(e, ord.String, f.Ref)
	put(e, raw.Float64, f.Confidence)
	put(e, ord.String, f.Snippet)
	return e.n
}

func (fieldSer) Size(f core.StructuredField) int {
	return ord.String.Size(string(f.Key)) +
		ord.String.Size(f.Value) +
		IDMUS.Size(f.ChunkId) +
		varint.Int.Size(f.Ordinal) +
		varint.Int.Size(f.Page) +
		ord.String.Size(f.Ref) +
		raw.Float64.Size(f.Confidence) +
		ord.String.Size(f.Snippet)
}

func (fieldSer) Unmarshal(bs []byte) (core.StructuredField, int, error) {
	d := &decoder{bs: bs}
	f := core.StructuredField{
		Key:        core.FieldKey(get(d, ord.String)),
		Value:      get(d, ord.String),
		ChunkId:    get(d, IDMUS),
		Ordinal:    get(d, varint.Int),
		Page:       get(d, varint.Int),
		Ref:        get(d, ord.String),
		Confidence: get(d, raw.Float64),
		Snippet:    get(d, ord.String),
	}
	return f, d.n, d.err
}

func (s fieldSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}
