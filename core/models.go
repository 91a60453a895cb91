package core

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for documents and chunks.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as 16 lowercase hex digits.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// ParseID parses the hex form produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document id %q: %w", s, err)
	}
	return ID(v), nil
}

// Format identifies the source format of a document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

var formatAliases = map[string]Format{
	"pdf":             FormatPDF,
	"application/pdf": FormatPDF,
	"docx":            FormatDOCX,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"txt":        FormatTXT,
	"text":       FormatTXT,
	"text/plain": FormatTXT,
}

// ParseFormat resolves a format name, file extension or MIME type.
func ParseFormat(s string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(key, ';'); i >= 0 {
		key = strings.TrimSpace(key[:i]) // drop MIME parameters such as charset
	}
	key = strings.TrimPrefix(key, ".")
	if f, ok := formatAliases[key]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromPath detects the format from a file name extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(path))
	}
	return ParseFormat(ext)
}

// SegmentKind distinguishes physical pages from logical sections.
type SegmentKind int

const (
	SegmentPage SegmentKind = iota + 1
	SegmentSection
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentPage:
		return "page"
	case SegmentSection:
		return "section"
	default:
		return "segment"
	}
}

// Segment is one page or section of extracted text.
type Segment struct {
	Kind   SegmentKind
	Number int    // 1-based page or section number
	Title  string // section heading, empty for pages
	Text   string
}

// Ref returns a citation label such as "page 2".
func (s Segment) Ref() string {
	return fmt.Sprintf("%s %d", s.Kind, s.Number)
}

// SegmentSeparator joins segments in Document.Text.
const SegmentSeparator = "\n\n"

var separatorLen = utf8.RuneCountInString(SegmentSeparator)

// DocumentKind is the coarse category detected for a document.
type DocumentKind string

const (
	KindInsurancePolicy DocumentKind = "insurance-policy"
	KindContract        DocumentKind = "contract"
	KindHRPolicy        DocumentKind = "hr-policy"
	KindCompliance      DocumentKind = "compliance"
	KindGeneral         DocumentKind = "general"
)

// Document is the parsed form of an uploaded file. It is immutable once parsed.
type Document struct {
	Id          ID
	Format      Format
	Kind        DocumentKind
	Segments    []Segment
	ByteLength  int       // size of the raw input
	ExtractedAt time.Time // when parsing finished
}

// Text returns the segments joined by SegmentSeparator.
// Chunk offsets are rune offsets into this string.
func (d *Document) Text() string {
	parts := make([]string, len(d.Segments))
	for i, s := range d.Segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, SegmentSeparator)
}

// SegmentAt returns the segment containing the rune offset into Text.
// Separator runes belong to the preceding segment.
func (d *Document) SegmentAt(offset int) Segment {
	if len(d.Segments) == 0 {
		return Segment{}
	}
	pos := 0
	for i, s := range d.Segments {
		end := pos + utf8.RuneCountInString(s.Text)
		if i < len(d.Segments)-1 {
			end += separatorLen
		}
		if offset < end {
			return s
		}
		pos = end
	}
	return d.Segments[len(d.Segments)-1]
}

// SegmentStarts returns the rune offset at which each segment begins in Text.
func (d *Document) SegmentStarts() []int {
	starts := make([]int, len(d.Segments))
	pos := 0
	for i, s := range d.Segments {
		starts[i] = pos
		pos += utf8.RuneCountInString(s.Text) + separatorLen
	}
	return starts
}

// WordCount counts whitespace separated words across all segments.
func (d *Document) WordCount() int {
	n := 0
	for _, s := range d.Segments {
		n += len(strings.Fields(s.Text))
	}
	return n
}

// EstimatedPages approximates a printed page count at 500 characters per
// page, never less than one.
func (d *Document) EstimatedPages() int {
	return max(1, utf8.RuneCountInString(d.Text())/500)
}

var sectionCues = []struct{ cue, name string }{
	{"coverage", "Coverage Details"},
	{"exclusion", "Exclusions"},
	{"claim", "Claims Process"},
	{"term", "Terms and Conditions"},
	{"liability", "Liability"},
}

// KeySections names the main sections of the document. Section headings are
// used when the document has them, otherwise the conventional policy
// sections whose cue words occur in the text.
func (d *Document) KeySections() []string {
	var sections []string
	seen := make(map[string]bool)
	for _, s := range d.Segments {
		if s.Title == "" || seen[s.Title] {
			continue
		}
		seen[s.Title] = true
		sections = append(sections, s.Title)
	}
	if len(sections) > 0 {
		return sections
	}

	lower := strings.ToLower(d.Text())
	for _, c := range sectionCues {
		if strings.Contains(lower, c.cue) {
			sections = append(sections, c.name)
		}
	}
	return sections
}

// Chunk is a bounded span of document text used for embedding and citation.
type Chunk struct {
	Id          ID
	DocumentId  ID
	Ordinal     int
	Text        string
	Start       int // rune offset into Document.Text, inclusive
	End         int // rune offset into Document.Text, exclusive
	Page        int // segment number where the chunk starts
	EndPage     int // segment number where the chunk ends
	SegmentKind SegmentKind
}

// Length returns the chunk length in runes.
func (c *Chunk) Length() int {
	return c.End - c.Start
}

// Ref returns a citation label such as "page 2" or "pages 2-3".
func (c *Chunk) Ref() string {
	if c.EndPage > c.Page {
		return fmt.Sprintf("%ss %d-%d", c.SegmentKind, c.Page, c.EndPage)
	}
	return fmt.Sprintf("%s %d", c.SegmentKind, c.Page)
}

// FieldKey names one of the fixed structured fields.
type FieldKey string

const (
	FieldCoverageLimit  FieldKey = "coverage-limit"
	FieldPolicyDuration FieldKey = "policy-duration"
	FieldExclusionList  FieldKey = "exclusion-list"
	FieldClaimsProcess  FieldKey = "claims-process"
	FieldPremiumAmount  FieldKey = "premium-amount"
	FieldDefinition     FieldKey = "definition"
	FieldPolicyNumber   FieldKey = "policy-number"
)

// FieldKeys lists every structured field in display order.
var FieldKeys = []FieldKey{
	FieldCoverageLimit,
	FieldPolicyDuration,
	FieldExclusionList,
	FieldClaimsProcess,
	FieldPremiumAmount,
	FieldDefinition,
	FieldPolicyNumber,
}

// Label returns a human readable name, e.g. "Coverage limit".
func (k FieldKey) Label() string {
	s := strings.ReplaceAll(string(k), "-", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// StructuredField is one candidate value found by pattern extraction.
// Several candidates may exist for the same key.
type StructuredField struct {
	Key        FieldKey
	Value      string
	ChunkId    ID
	Ordinal    int    // ordinal of the source chunk
	Page       int    // segment number holding the matched statement
	Ref        string // citation label for Page
	Confidence float64
	Snippet    string // the statement the value was taken from
}

// QueryType is the category a question is classified into.
type QueryType string

const (
	QueryCoverage      QueryType = "coverage"
	QueryExclusion     QueryType = "exclusion"
	QueryClaimsProcess QueryType = "claims-process"
	QueryPremium       QueryType = "premium"
	QueryDuration      QueryType = "duration"
	QueryDefinitions   QueryType = "definitions"
	QueryPolicyNumber  QueryType = "policy-number"
	QueryGeneral       QueryType = "general"
)

var queryTypes = []QueryType{
	QueryCoverage, QueryExclusion, QueryClaimsProcess, QueryPremium,
	QueryDuration, QueryDefinitions, QueryPolicyNumber, QueryGeneral,
}

// ParseQueryType returns the query type named by s.
func ParseQueryType(s string) (QueryType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, qt := range queryTypes {
		if string(qt) == s {
			return qt, true
		}
	}
	return "", false
}

// Query is a free-text question with an optional declared type.
type Query struct {
	Text     string
	TypeHint QueryType
}

// Hit is one ranked retrieval result. Rank 0 is most relevant.
type Hit struct {
	Chunk      *Chunk
	Similarity float64 // normalized to [0,1]
	Rank       int
}

// RetrievalResult is the ranked evidence for one query plus its aggregate confidence.
type RetrievalResult struct {
	Hits          []Hit
	Confidence    float64
	TopSimilarity float64
	Agreement     float64
	Lexical       float64
	LowConfidence bool
}

// Top returns the best hit, or nil when there are no hits.
func (r *RetrievalResult) Top() *Hit {
	if r == nil || len(r.Hits) == 0 {
		return nil
	}
	return &r.Hits[0]
}

// AnswerPath records which path produced an answer.
type AnswerPath string

const (
	PathZeroToken  AnswerPath = "zero-token"
	PathLLM        AnswerPath = "llm"
	PathExtractive AnswerPath = "extractive"
)

// Evidence is a chunk reference supporting an answer.
type Evidence struct {
	ChunkId    ID
	Ordinal    int
	Page       int
	Ref        string
	Rank       int
	Similarity float64
	Excerpt    string
}

// Answer is the final response returned to callers.
type Answer struct {
	QueryId       string
	DocumentId    ID
	Text          string
	Confidence    float64
	Evidence      []Evidence
	Explanation   string
	Path          AnswerPath
	QueryType     QueryType
	LowConfidence bool
	TokensUsed    int
}

// DocumentSummary describes an indexed document.
type DocumentSummary struct {
	Id             ID
	Format         Format
	Kind           DocumentKind
	Segments       int
	Chunks         int
	Words          int
	EstimatedPages int
	KeySections    []string
	Fields         int
	EmbeddingModel string
	IndexedAt      time.Time
}

// Status reports engine readiness for health checks.
type Status struct {
	IndexReady     bool
	LLMConfigured  bool
	Documents      int
	EmbeddingModel string
}
