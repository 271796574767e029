package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

// memStore is an in-memory DocumentStore ranking by inner product.
type memStore struct {
	mu      sync.Mutex
	docs    map[string]domain.Document
	scanErr error
	delErr  error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]domain.Document)}
}

func (m *memStore) Upsert(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Document
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) Query(_ context.Context, embedding []float32, k int) ([]domain.QueryHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := make([]domain.QueryHit, 0, len(m.docs))
	for _, d := range m.docs {
		var sum float64
		for i := range embedding {
			sum += float64(embedding[i]) * float64(d.Embedding[i])
		}
		hits = append(hits, domain.QueryHit{ID: d.ID, Text: d.Text, Metadata: d.Metadata, Distance: 1 - sum})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *memStore) ScanMetadata(context.Context) ([]domain.DocumentMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	out := make([]domain.DocumentMeta, 0, len(m.docs))
	for id, d := range m.docs {
		out = append(out, domain.DocumentMeta{ID: id, Metadata: d.Metadata})
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

func (m *memStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *memStore) text(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id].Text
}

// stubStore answers every query with the same hits, or with byCall[i] on the i-th query.
type stubStore struct {
	memStore
	hits   []domain.QueryHit
	byCall [][]domain.QueryHit
	calls  int
	err    error
}

func (s *stubStore) Query(_ context.Context, _ []float32, k int) ([]domain.QueryHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	src := s.hits
	if len(s.byCall) > 0 {
		s.mu.Lock()
		src = s.byCall[min(s.calls, len(s.byCall)-1)]
		s.calls++
		s.mu.Unlock()
	}
	hits := append([]domain.QueryHit(nil), src...)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// fakeEncoder returns a fixed vector and records every text it saw.
type fakeEncoder struct {
	mu     sync.Mutex
	vector []float32
	failOn string
	texts  []string
}

func (f *fakeEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("encoder unavailable")
	}
	vec := f.vector
	if vec == nil {
		vec = []float32{1, 0}
	}
	return append([]float32(nil), vec...), nil
}

func (f *fakeEncoder) Dimensions() int { return 0 }

func (f *fakeEncoder) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// fakeSource serves per-keyword articles and optional per-keyword errors.
type fakeSource struct {
	mu       sync.Mutex
	articles map[string][]domain.Article
	errs     map[string]error
	requests []ports.FetchRequest
	block    bool
	panics   bool
}

func (f *fakeSource) FetchArticles(ctx context.Context, req ports.FetchRequest) ([]domain.Article, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.panics {
		panic("source exploded")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := append([]domain.Article(nil), f.articles[req.Keyword]...)
	return out, f.errs[req.Keyword]
}

func (f *fakeSource) calls() []ports.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.FetchRequest(nil), f.requests...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []domain.CollectReport
}

func (f *fakeNotifier) PublishReport(_ context.Context, report domain.CollectReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

type fakeChat struct {
	prompt string
	answer string
	err    error
}

func (f *fakeChat) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

// fakeDriver captures the registered job instead of scheduling it.
type fakeDriver struct {
	mu      sync.Mutex
	starts  int
	stops   int
	job     func(context.Context)
	stopErr error
}

func (f *fakeDriver) Start(_ context.Context, job func(context.Context)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.job = job
	return nil
}

func (f *fakeDriver) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func article(id, summary, published string) domain.Article {
	return domain.Article{
		ID:          id,
		Title:       "title " + id,
		Summary:     summary,
		Publisher:   "연합뉴스",
		PublishedAt: published,
	}
}

func articles(n int) []domain.Article {
	out := make([]domain.Article, n)
	for i := range out {
		out[i] = article(fmt.Sprintf("a-%03d", i), fmt.Sprintf("summary %d", i), "2025-03-07T09:00:00")
	}
	return out
}

// logRecords decodes the JSON lines written by a slog JSON handler.
func logRecords(t *testing.T, buf *bytes.Buffer, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// syncBuffer guards a bytes.Buffer shared with background goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
