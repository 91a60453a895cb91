package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIngestion(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIngestion(nil)
	m.RecordIngestion(nil)
	m.RecordIngestion(errors.New("corrupt"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestionsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionsTotal.WithLabelValues(StatusError)))
}

func TestRecordAnswer(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordAnswer("zero-token", 0.9, time.Millisecond)
	m.RecordAnswer("llm", 0.7, 2*time.Second)
	m.RecordAnswer("llm", 0.6, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnswersTotal.WithLabelValues("zero-token")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnswersTotal.WithLabelValues("llm")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.AnswersTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.AnswerDuration))
}

func TestRecordFallbackAndGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordFallback("timeout")
	m.RecordFallback("no-llm")
	m.RecordFallback("timeout")
	m.SetIndexedDocuments(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMFallbacksTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMFallbacksTotal.WithLabelValues("no-llm")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexedDocuments))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIngestion(nil)
		m.RecordAnswer("llm", 1, time.Second)
		m.RecordFallback("error")
		m.SetIndexedDocuments(1)
	})
	assert.NotNil(t, m.Handler())
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetIndexedDocuments(2)
	m.RecordIngestion(nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "docqa_indexed_documents 2")
	assert.Contains(t, string(body), `docqa_ingestions_total{status="success"} 1`)
}
