package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const policy = "Acme Insurance Company\nHealth Insurance Policy\nPolicy Number: HLT-2024-001\f" +
	"Coverage Details\nMaximum coverage limit: $50,000\nThe insured is covered for hospitalization expenses.\f" +
	"Claims Process\nClaims must be filed within 30 days of discharge.\n\nAnnual premium: $1,200 payable in advance."

type harness struct {
	t     *testing.T
	store string
	cfg   string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{t: t, store: filepath.Join(dir, "store"), cfg: filepath.Join(dir, "missing.yaml")}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	base := []string{"docqa", "--config", h.cfg, "--store", h.store, "--no-llm", "--log-level", "error"}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func (h *harness) ingest() string {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), "policy.txt")
	require.NoError(h.t, os.WriteFile(path, []byte(policy), 0o644))
	out, err := h.run("ingest", path)
	require.NoError(h.t, err)
	fields := strings.Fields(out)
	require.NotEmpty(h.t, fields)
	_, err = core.ParseID(fields[0])
	require.NoError(h.t, err)
	return fields[0]
}

func TestIngestAndAsk(t *testing.T) {
	h := newHarness(t)
	id := h.ingest()

	t.Run("zero-token answer", func(t *testing.T) {
		out, err := h.run("ask", "--doc", id, "What is the coverage limit?")
		require.NoError(t, err)
		assert.Contains(t, out, "$50,000")
		assert.Contains(t, out, "zero-token")
	})

	t.Run("explained extractive answer", func(t *testing.T) {
		out, err := h.run("ask", "--doc", id, "--explain", "How long is the policy term?")
		require.NoError(t, err)
		assert.Contains(t, out, "extractive")
		assert.Contains(t, out, "similarity")
	})

	t.Run("several questions", func(t *testing.T) {
		out, err := h.run("ask", "--doc", id,
			"-q", "What is the annual premium?",
			"-q", "When must claims be filed?",
			"What is the coverage limit?")
		require.NoError(t, err)
		first := strings.Index(out, "Q: What is the coverage limit?")
		second := strings.Index(out, "Q: What is the annual premium?")
		third := strings.Index(out, "Q: When must claims be filed?")
		require.NotEqual(t, -1, first, out)
		assert.Less(t, first, second)
		assert.Less(t, second, third)
		assert.Contains(t, out, "$50,000")
		assert.Contains(t, out, "$1,200")
	})

	t.Run("type hint", func(t *testing.T) {
		out, err := h.run("ask", "--doc", id, "--type", "premium", "How much?")
		require.NoError(t, err)
		assert.Contains(t, out, "$1,200")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := h.run("ask", "--doc", id, "--type", "weather", "How much?")
		assert.ErrorContains(t, err, "weather")
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := h.run("ask", "--doc", "0000000000000001", "What is covered?")
		assert.ErrorIs(t, err, core.ErrUnknownDocument)
	})

	t.Run("empty question", func(t *testing.T) {
		_, err := h.run("ask", "--doc", id)
		assert.ErrorIs(t, err, core.ErrEmptyQuery)
	})

	t.Run("doc flag is required", func(t *testing.T) {
		_, err := h.run("ask", "What is covered?")
		assert.ErrorContains(t, err, "doc")
	})
}

func TestInspectionCommands(t *testing.T) {
	h := newHarness(t)
	id := h.ingest()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "fields", args: []string{"fields", "--doc", id}, want: []string{"coverage-limit", "$50,000", "page 2"}},
		{name: "describe", args: []string{"describe", "--doc", id}, want: []string{id, "txt", "Segments:", "Key sections:", "Claims Process"}},
		{name: "list", args: []string{"list"}, want: []string{id}},
		{name: "status", args: []string{"status"}, want: []string{"Index ready:", "true", "hashing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.run(tt.args...)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestForgetAndReindex(t *testing.T) {
	h := newHarness(t)
	id := h.ingest()

	out, err := h.run("reindex", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "rebuilt 1")

	out, err = h.run("forget", "--doc", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = h.run("describe", "--doc", id)
	assert.ErrorIs(t, err, core.ErrUnknownDocument)
}

func TestIngestErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("ingest")
	assert.ErrorContains(t, err, "FILE")

	_, err = h.run("ingest", filepath.Join(t.TempDir(), "notes.rtf"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestSetup(t *testing.T) {
	t.Run("invalid log level", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.run("--log-level", "loud", "status")
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("config file is applied", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, os.WriteFile(h.cfg, []byte("ingestion:\n  hashing_dimension: 128\n"), 0o644))
		out, err := h.run("status")
		require.NoError(t, err)
		assert.Contains(t, out, "hashing-tf-v1-128")
	})

	t.Run("invalid config file", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, os.WriteFile(h.cfg, []byte("chunker:\n  size: 0\n"), 0o644))
		_, err := h.run("status")
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})
}
