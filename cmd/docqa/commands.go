package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/mcpserver"
	"github.com/poiesic/docqa/metrics"
	"github.com/poiesic/docqa/watch"
	"github.com/urfave/cli/v2"
)

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openEngine(c *cli.Context, opts ...docqa.Option) (*docqa.Engine, error) {
	opts = append(opts, docqa.WithLogger(slog.Default()))
	engine, err := docqa.New(c.Context, loadedConfig(c), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func documentFlag(c *cli.Context) (core.ID, error) {
	return core.ParseID(c.String("doc"))
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one FILE is required")
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	var errs []error
	for _, path := range c.Args().Slice() {
		id, err := engine.IngestFile(c.Context, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		summary, err := engine.Describe(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%d chunks\t%d fields\n", id, path, summary.Kind, summary.Chunks, summary.Fields)
	}
	out.Flush()
	return errors.Join(errs...)
}

func askCommand(c *cli.Context) error {
	id, err := documentFlag(c)
	if err != nil {
		return err
	}
	var questions []string
	if c.NArg() > 0 {
		questions = append(questions, strings.Join(c.Args().Slice(), " "))
	}
	questions = append(questions, c.StringSlice("question")...)
	if len(questions) == 0 {
		questions = []string{""}
	}
	var hint core.QueryType
	if name := c.String("type"); name != "" {
		qt, ok := core.ParseQueryType(name)
		if !ok {
			return fmt.Errorf("unknown question type %q", name)
		}
		hint = qt
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	for i, question := range questions {
		answer, err := engine.Answer(c.Context, id, question, hint)
		if err != nil {
			return err
		}
		if len(questions) > 1 {
			if i > 0 {
				fmt.Fprintln(c.App.Writer)
			}
			fmt.Fprintf(c.App.Writer, "Q: %s\n", question)
		}
		printAnswer(c.App.Writer, answer, c.Bool("explain"))
	}
	return nil
}

func printAnswer(w io.Writer, answer *core.Answer, explain bool) {
	fmt.Fprintln(w, answer.Text)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "confidence %.2f, %s question, answered by %s", answer.Confidence, answer.QueryType, answer.Path)
	if answer.LowConfidence {
		fmt.Fprint(w, " (low confidence)")
	}
	if answer.TokensUsed > 0 {
		fmt.Fprintf(w, ", %d tokens", answer.TokensUsed)
	}
	fmt.Fprintln(w)
	if !explain {
		return
	}

	fmt.Fprintln(w)
	for _, ev := range answer.Evidence {
		fmt.Fprintf(w, "[%d] %s, similarity %.3f\n    %s\n", ev.Rank+1, ev.Ref, ev.Similarity, ev.Excerpt)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, answer.Explanation)
}

func fieldsCommand(c *cli.Context) error {
	id, err := documentFlag(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fields, err := engine.Fields(id)
	if err != nil {
		return err
	}
	out := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(out, "FIELD\tVALUE\tSOURCE\tCONFIDENCE")
	for _, f := range fields {
		fmt.Fprintf(out, "%s\t%s\t%s\t%.2f\n", f.Key, f.Value, f.Ref, f.Confidence)
	}
	return out.Flush()
}

func describeCommand(c *cli.Context) error {
	id, err := documentFlag(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	s, err := engine.Describe(id)
	if err != nil {
		return err
	}
	out := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(out, "Document:\t%s\n", s.Id)
	fmt.Fprintf(out, "Format:\t%s\n", s.Format)
	fmt.Fprintf(out, "Kind:\t%s\n", s.Kind)
	fmt.Fprintf(out, "Segments:\t%d\n", s.Segments)
	fmt.Fprintf(out, "Chunks:\t%d\n", s.Chunks)
	fmt.Fprintf(out, "Words:\t%d (about %d pages)\n", s.Words, s.EstimatedPages)
	if len(s.KeySections) > 0 {
		fmt.Fprintf(out, "Key sections:\t%s\n", strings.Join(s.KeySections, ", "))
	}
	fmt.Fprintf(out, "Fields:\t%d\n", s.Fields)
	fmt.Fprintf(out, "Embedding model:\t%s\n", s.EmbeddingModel)
	fmt.Fprintf(out, "Indexed:\t%s\n", s.IndexedAt.Format(time.RFC3339))
	return out.Flush()
}

func listCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(out, "ID\tFORMAT\tKIND\tPAGES\tCHUNKS\tINDEXED")
	for _, s := range engine.List() {
		fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.Id, s.Format, s.Kind, s.EstimatedPages, s.Chunks, s.IndexedAt.Format(time.RFC3339))
	}
	for id, model := range engine.Stale() {
		fmt.Fprintf(out, "%s\t\t\t\t\tstale (%s), run reindex\n", id, model)
	}
	return out.Flush()
}

func statusCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	st := engine.Status()
	stale := len(engine.Stale())
	out := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(out, "Index ready:\t%t\n", st.IndexReady)
	fmt.Fprintf(out, "Documents:\t%d\n", st.Documents)
	if stale > 0 {
		fmt.Fprintf(out, "Stale:\t%d\n", stale)
	}
	fmt.Fprintf(out, "Embedding model:\t%s\n", st.EmbeddingModel)
	fmt.Fprintf(out, "Language model:\t%t\n", st.LLMConfigured)
	return out.Flush()
}

func forgetCommand(c *cli.Context) error {
	id, err := documentFlag(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Forget(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Forgot %s\n", id)
	return nil
}

func reindexCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Reindex(c.Context, c.App.ErrWriter, c.Bool("force"))
	if result != nil {
		fmt.Fprintf(c.App.Writer, "Checked %d, rebuilt %d, failed %d\n",
			result.Checked, len(result.Rebuilt), len(result.Failed))
	}
	if err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	engine, err := openEngine(c, docqa.WithMetrics(m))
	if err != nil {
		return err
	}
	defer engine.Close()

	stopMetrics := serveMetrics(c.String("metrics-addr"), m)
	defer stopMetrics()

	srv := mcpserver.New(engine, slog.Default())
	addr := c.String("sse-addr")
	if addr == "" {
		return server.ServeStdio(srv)
	}

	sse := server.NewSSEServer(srv, server.WithBaseURL("http://"+addr))
	errc := make(chan error, 1)
	go func() {
		errc <- sse.Start(addr)
	}()
	slog.Info("serving MCP over SSE", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sse.Shutdown(shutdownCtx)
	}
}

func watchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one DIR is required")
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	engine, err := openEngine(c, docqa.WithMetrics(m))
	if err != nil {
		return err
	}
	defer engine.Close()

	stopMetrics := serveMetrics(c.String("metrics-addr"), m)
	defer stopMetrics()

	out := c.App.Writer
	w, err := watch.New(engine, loadedConfig(c).Watch,
		watch.WithLogger(slog.Default()),
		watch.WithChangeHook(func(ch watch.Change) {
			if ch.Err != nil {
				fmt.Fprintf(out, "%s\t%s\tfailed: %v\n", ch.Type, ch.Path, ch.Err)
				return
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", ch.Type, ch.Path, ch.Id)
		}))
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range c.Args().Slice() {
		if err := w.Add(ctx, dir); err != nil {
			return err
		}
	}
	return w.Run(ctx)
}

// serveMetrics exposes m on addr/metrics until the returned func is called.
// An empty addr serves nothing.
func serveMetrics(addr string, m *metrics.Metrics) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
