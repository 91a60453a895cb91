package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policy = "Acme Insurance Company\nPolicy Number: HLT-2024-001\f" +
	"Coverage Details\nMaximum coverage limit: $50,000\nThe insured is covered for hospitalization expenses.\f" +
	"Claims Process\nClaims must be filed within 30 days of discharge."

func newTestServer(t *testing.T) *Server {
	t.Helper()
	e, err := docqa.New(context.Background(), config.Default(), docqa.WithGenerator(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return &Server{engine: e, logger: slog.Default()}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	content, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return content.Text
}

func ingestPolicy(t *testing.T, s *Server) string {
	t.Helper()
	res, err := s.ingest(context.Background(), call(map[string]any{"text": policy}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var summary summaryJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &summary))
	assert.Equal(t, "txt", summary.Format)
	return summary.ID
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	t.Run("inline text", func(t *testing.T) {
		assert.Len(t, ingestPolicy(t, s), 16)
	})

	t.Run("file path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.txt")
		require.NoError(t, os.WriteFile(path, []byte(policy+"\fSchedule"), 0o644))
		res, err := s.ingest(ctx, call(map[string]any{"path": path}))
		require.NoError(t, err)
		assert.False(t, res.IsError, text(t, res))
	})

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "no source", args: map[string]any{}},
		{name: "both sources", args: map[string]any{"path": "a.txt", "text": "b"}},
		{name: "unsupported file", args: map[string]any{"path": "policy.rtf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ingest(ctx, call(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	id := ingestPolicy(t, s)

	res, err := s.answer(ctx, call(map[string]any{
		"document_id": id,
		"question":    "What is the coverage limit?",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var answer answerJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &answer))
	assert.Equal(t, id, answer.DocumentID)
	assert.Equal(t, string(core.PathZeroToken), answer.Path)
	assert.Equal(t, string(core.QueryCoverage), answer.QueryType)
	assert.Contains(t, answer.Answer, "$50,000")
	require.Len(t, answer.Evidence, 1)
	assert.Equal(t, "page 2", answer.Evidence[0].Ref)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing document", args: map[string]any{"question": "What is covered?"}},
		{name: "malformed document id", args: map[string]any{"document_id": "xyz", "question": "What is covered?"}},
		{name: "unknown document", args: map[string]any{"document_id": "0000000000000001", "question": "What is covered?"}},
		{name: "missing question", args: map[string]any{"document_id": id}},
		{name: "empty question", args: map[string]any{"document_id": id, "question": " "}},
		{name: "unknown query type", args: map[string]any{"document_id": id, "question": "What is covered?", "query_type": "weather"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.answer(ctx, call(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestAnswer_Questions(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	id := ingestPolicy(t, s)

	res, err := s.answer(ctx, call(map[string]any{
		"document_id": id,
		"questions":   []any{"What is the coverage limit?", "How do I file a claim?"},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var answers []answerJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &answers))
	require.Len(t, answers, 2)
	assert.Equal(t, string(core.QueryCoverage), answers[0].QueryType)
	assert.Contains(t, answers[0].Answer, "$50,000")
	assert.Equal(t, string(core.QueryClaimsProcess), answers[1].QueryType)
	assert.NotEqual(t, answers[0].QueryID, answers[1].QueryID)

	t.Run("single question is answered first", func(t *testing.T) {
		res, err := s.answer(ctx, call(map[string]any{
			"document_id": id,
			"question":    "How do I file a claim?",
			"questions":   []any{"What is the coverage limit?"},
		}))
		require.NoError(t, err)
		require.False(t, res.IsError, text(t, res))

		var answers []answerJSON
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &answers))
		require.Len(t, answers, 2)
		assert.Equal(t, string(core.QueryClaimsProcess), answers[0].QueryType)
		assert.Equal(t, string(core.QueryCoverage), answers[1].QueryType)
	})

	t.Run("any failing question fails the call", func(t *testing.T) {
		res, err := s.answer(ctx, call(map[string]any{
			"document_id": id,
			"questions":   []any{"What is the coverage limit?", " "},
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}
func TestDescribeListStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	res, err := s.status(ctx, call(nil))
	require.NoError(t, err)
	var st statusJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &st))
	assert.False(t, st.IndexReady)
	assert.False(t, st.LLMConfigured)

	id := ingestPolicy(t, s)

	res, err = s.describe(ctx, call(map[string]any{"document_id": id}))
	require.NoError(t, err)
	var summary summaryJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &summary))
	assert.Equal(t, 3, summary.Segments)
	assert.Equal(t, []string{"Coverage Details", "Claims Process"}, summary.KeySections)

	res, err = s.list(ctx, call(nil))
	require.NoError(t, err)
	var summaries []summaryJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, id, summaries[0].ID)

	res, err = s.status(ctx, call(nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &st))
	assert.True(t, st.IndexReady)
	assert.Equal(t, 1, st.Documents)
}

func TestNew_RegistersTools(t *testing.T) {
	e, err := docqa.New(context.Background(), nil, docqa.WithGenerator(nil))
	require.NoError(t, err)
	defer e.Close()

	srv := New(e, nil)
	resp := srv.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"ingest_document", "answer_question", "describe_document", "list_documents", "engine_status"} {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
}
