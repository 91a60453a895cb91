// Package mcpserver exposes a docqa engine as Model Context Protocol tools so
// assistants can ingest documents and ask questions about them.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/poiesic/docqa/core"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Engine is the part of docqa.Engine the tools use.
type Engine interface {
	Ingest(ctx context.Context, data []byte, format core.Format) (core.ID, error)
	IngestFile(ctx context.Context, path string) (core.ID, error)
	Answer(ctx context.Context, docID core.ID, text string, hint core.QueryType) (*core.Answer, error)
	Describe(id core.ID) (core.DocumentSummary, error)
	List() []core.DocumentSummary
	Status() core.Status
}

// Server routes MCP tool calls to an Engine.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// New returns an MCP server with the docqa tools registered.
func New(engine Engine, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, logger: logger.With("component", "mcp")}

	srv := server.NewMCPServer("docqa", Version, server.WithToolCapabilities(false))
	srv.AddTool(mcp.NewTool("ingest_document",
		mcp.WithDescription("Index a PDF, DOCX or plain-text document and return its id. Pass either a server-side path or inline text."),
		mcp.WithString("path", mcp.Description("Path of a .pdf, .docx or .txt file readable by the server")),
		mcp.WithString("text", mcp.Description("Inline plain-text document content")),
	), s.ingest)

	srv.AddTool(mcp.NewTool("answer_question",
		mcp.WithDescription("Answer one or more questions about an indexed document, with evidence, confidence and an explanation"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by ingest_document")),
		mcp.WithString("question", mcp.Description("A single question to answer")),
		mcp.WithArray("questions",
			mcp.Description("Several questions to answer in order; the result is a list of answers"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("query_type",
			mcp.Description("Optional question category overriding automatic classification"),
			mcp.Enum(queryTypeNames()...)),
	), s.answer)

	srv.AddTool(mcp.NewTool("describe_document",
		mcp.WithDescription("Summarise an indexed document"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by ingest_document")),
	), s.describe)

	srv.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List every indexed document"),
	), s.list)

	srv.AddTool(mcp.NewTool("engine_status",
		mcp.WithDescription("Report whether documents are indexed and a language model is configured"),
	), s.status)

	return srv
}

func queryTypeNames() []string {
	types := []core.QueryType{
		core.QueryCoverage, core.QueryExclusion, core.QueryClaimsProcess, core.QueryPremium,
		core.QueryDuration, core.QueryDefinitions, core.QueryPolicyNumber, core.QueryGeneral,
	}
	names := make([]string, len(types))
	for i, qt := range types {
		names[i] = string(qt)
	}
	return names
}

func (s *Server) ingest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	text := request.GetString("text", "")

	var (
		id  core.ID
		err error
	)
	switch {
	case path != "" && text != "":
		return mcp.NewToolResultError("pass either path or text, not both"), nil
	case path != "":
		id, err = s.engine.IngestFile(ctx, path)
	case text != "":
		id, err = s.engine.Ingest(ctx, []byte(text), core.FormatTXT)
	default:
		return mcp.NewToolResultError("one of path or text is required"), nil
	}
	if err != nil {
		s.logger.Warn("ingest failed", "path", path, "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := s.engine.Describe(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summaryView(summary))
}

func (s *Server) answer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := documentID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question := request.GetString("question", "")
	questions := request.GetStringSlice("questions", nil)
	if question == "" && len(questions) == 0 {
		return mcp.NewToolResultError("one of question or questions is required"), nil
	}
	var hint core.QueryType
	if name := request.GetString("query_type", ""); name != "" {
		qt, ok := core.ParseQueryType(name)
		if !ok {
			return mcp.NewToolResultError("unknown query_type " + name), nil
		}
		hint = qt
	}

	if len(questions) == 0 {
		answer, err := s.engine.Answer(ctx, id, question, hint)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(answerView(answer))
	}

	if question != "" {
		questions = append([]string{question}, questions...)
	}
	views := make([]answerJSON, 0, len(questions))
	for _, q := range questions {
		answer, err := s.engine.Answer(ctx, id, q, hint)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		views = append(views, answerView(answer))
	}
	return jsonResult(views)
}

func (s *Server) describe(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := documentID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := s.engine.Describe(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summaryView(summary))
}

func (s *Server) list(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries := s.engine.List()
	views := make([]summaryJSON, len(summaries))
	for i, summary := range summaries {
		views[i] = summaryView(summary)
	}
	return jsonResult(views)
}

func (s *Server) status(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.engine.Status()
	return jsonResult(statusJSON{
		IndexReady:     st.IndexReady,
		LLMConfigured:  st.LLMConfigured,
		Documents:      st.Documents,
		EmbeddingModel: st.EmbeddingModel,
	})
}

func documentID(request mcp.CallToolRequest) (core.ID, error) {
	raw, err := request.RequireString("document_id")
	if err != nil {
		return 0, err
	}
	id, err := core.ParseID(raw)
	if err != nil {
		return 0, errors.Join(core.ErrUnknownDocument, err)
	}
	return id, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

type evidenceJSON struct {
	ChunkID    string  `json:"chunk_id"`
	Ref        string  `json:"ref"`
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

type answerJSON struct {
	QueryID       string         `json:"query_id"`
	DocumentID    string         `json:"document_id"`
	Answer        string         `json:"answer"`
	Confidence    float64        `json:"confidence"`
	LowConfidence bool           `json:"low_confidence"`
	QueryType     string         `json:"query_type"`
	Path          string         `json:"path"`
	TokensUsed    int            `json:"tokens_used"`
	Evidence      []evidenceJSON `json:"evidence"`
	Explanation   string         `json:"explanation"`
}

func answerView(a *core.Answer) answerJSON {
	view := answerJSON{
		QueryID:       a.QueryId,
		DocumentID:    a.DocumentId.String(),
		Answer:        a.Text,
		Confidence:    a.Confidence,
		LowConfidence: a.LowConfidence,
		QueryType:     string(a.QueryType),
		Path:          string(a.Path),
		TokensUsed:    a.TokensUsed,
		Evidence:      make([]evidenceJSON, len(a.Evidence)),
		Explanation:   a.Explanation,
	}
	for i, ev := range a.Evidence {
		view.Evidence[i] = evidenceJSON{
			ChunkID:    ev.ChunkId.String(),
			Ref:        ev.Ref,
			Rank:       ev.Rank,
			Similarity: ev.Similarity,
			Excerpt:    ev.Excerpt,
		}
	}
	return view
}

type summaryJSON struct {
	ID             string    `json:"document_id"`
	Format         string    `json:"format"`
	Kind           string    `json:"kind"`
	Segments       int       `json:"segments"`
	Chunks         int       `json:"chunks"`
	Words          int       `json:"words"`
	EstimatedPages int       `json:"estimated_pages"`
	KeySections    []string  `json:"key_sections"`
	Fields         int       `json:"fields"`
	EmbeddingModel string    `json:"embedding_model"`
	IndexedAt      time.Time `json:"indexed_at"`
}

func summaryView(s core.DocumentSummary) summaryJSON {
	return summaryJSON{
		ID:             s.Id.String(),
		Format:         string(s.Format),
		Kind:           string(s.Kind),
		Segments:       s.Segments,
		Chunks:         s.Chunks,
		Words:          s.Words,
		EstimatedPages: s.EstimatedPages,
		KeySections:    s.KeySections,
		Fields:         s.Fields,
		EmbeddingModel: s.EmbeddingModel,
		IndexedAt:      s.IndexedAt,
	}
}

type statusJSON struct {
	IndexReady     bool   `json:"index_ready"`
	LLMConfigured  bool   `json:"llm_configured"`
	Documents      int    `json:"documents"`
	EmbeddingModel string `json:"embedding_model"`
}
