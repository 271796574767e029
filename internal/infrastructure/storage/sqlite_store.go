package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

// MetricInnerProduct is the only similarity metric a collection is created with.
const MetricInnerProduct = "ip"

const (
	metaTable      = "_meta"
	deleteChunk    = 500
	metaKeyMetric  = "metric"
	metaKeyDim     = "dimension"
	createdAtStyle = time.RFC3339
)

var (
	// ErrMetricMismatch is returned when a collection was created with another metric.
	ErrMetricMismatch = errors.New("collection metric mismatch")
	// ErrDimensionMismatch is returned when a vector length differs from the collection's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidCollection is returned for collection names unusable as table names.
	ErrInvalidCollection = errors.New("invalid collection name")
)

var collectionExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store keeps one named vector collection in a SQLite file and mirrors the
// embeddings in memory for brute-force inner-product search.
type Store struct {
	db    *sql.DB
	table string
	sb    sq.StatementBuilderType

	mu        sync.RWMutex
	vectors   map[string][]float32
	dimension int
}

var _ ports.DocumentStore = (*Store)(nil)

// Open creates or reopens the collection stored under dir.
func Open(ctx context.Context, dir, collection string) (*Store, error) {
	if !collectionExpr.MatchString(collection) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	if dir == "" {
		return nil, fmt.Errorf("store path is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, collection+".db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite doesn't support concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		table:   collection,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Question),
		vectors: map[string][]float32{},
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadVectors(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL,
  embedding BLOB NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  published_at TEXT NOT NULL DEFAULT '',
  importance TEXT NOT NULL DEFAULT '',
  publisher TEXT NOT NULL DEFAULT '',
  theme TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_published_at ON %s(published_at)`, s.table, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
)`, metaTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate collection %s: %w", s.table, err)
		}
	}

	metric, err := s.meta(ctx, metaKeyMetric)
	if err != nil {
		return err
	}
	switch metric {
	case "":
		if err := s.setMeta(ctx, metaKeyMetric, MetricInnerProduct); err != nil {
			return err
		}
	case MetricInnerProduct:
	default:
		return fmt.Errorf("%w: collection %s uses %q", ErrMetricMismatch, s.table, metric)
	}

	dim, err := s.meta(ctx, metaKeyDim)
	if err != nil {
		return err
	}
	if dim != "" {
		n, err := strconv.Atoi(dim)
		if err != nil {
			return fmt.Errorf("parse stored dimension %q: %w", dim, err)
		}
		s.dimension = n
	}
	return nil
}

func (s *Store) meta(ctx context.Context, key string) (string, error) {
	query, args, err := s.sb.Select("value").From(metaTable).Where(sq.Eq{"key": s.table + "." + key}).ToSql()
	if err != nil {
		return "", fmt.Errorf("build meta query: %w", err)
	}
	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	query, args, err := s.sb.Insert(metaTable).
		Columns("key", "value").
		Values(s.table+"."+key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build meta upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

func (s *Store) loadVectors(ctx context.Context) error {
	query, args, err := s.sb.Select("id", "embedding").From(s.table).ToSql()
	if err != nil {
		return fmt.Errorf("build vector scan: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("scan vector row: %w", err)
		}
		s.vectors[id] = decodeVector(blob)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("vector rows: %w", err)
	}
	return nil
}

// Upsert inserts the document unless its id already exists; existing documents are never rewritten.
func (s *Store) Upsert(ctx context.Context, doc domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is empty")
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("document %s: %w: empty embedding", doc.ID, ErrDimensionMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		if err := s.setMeta(ctx, metaKeyDim, strconv.Itoa(len(doc.Embedding))); err != nil {
			return err
		}
		s.dimension = len(doc.Embedding)
	} else if len(doc.Embedding) != s.dimension {
		return fmt.Errorf("document %s: %w: got %d, want %d", doc.ID, ErrDimensionMismatch, len(doc.Embedding), s.dimension)
	}

	query, args, err := s.sb.Insert(s.table).
		Columns("id", "text", "embedding", "title", "published_at", "importance", "publisher", "theme", "created_at").
		Values(
			doc.ID,
			doc.Text,
			encodeVector(doc.Embedding),
			doc.Metadata.Title,
			doc.Metadata.PublishedAt,
			doc.Metadata.Importance,
			doc.Metadata.Publisher,
			doc.Metadata.Theme,
			time.Now().UTC().Format(createdAtStyle),
		).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		vec := make([]float32, len(doc.Embedding))
		copy(vec, doc.Embedding)
		s.vectors[doc.ID] = vec
	}
	return nil
}

// GetByIDs returns the stored documents among ids; unknown ids are ignored.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := s.sb.Select("id", "text", "embedding", "title", "published_at", "importance", "publisher", "theme").
		From(s.table).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc  domain.Document
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &blob, &doc.Metadata.Title, &doc.Metadata.PublishedAt,
			&doc.Metadata.Importance, &doc.Metadata.Publisher, &doc.Metadata.Theme); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Embedding = decodeVector(blob)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("document rows: %w", err)
	}
	return docs, nil
}

// Query returns up to k documents ordered by ascending inner-product distance.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]domain.QueryHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("query k must be >= 1, got %d", k)
	}

	type scored struct {
		id       string
		distance float64
	}

	s.mu.RLock()
	if s.dimension != 0 && len(embedding) != s.dimension {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dimension)
	}
	candidates := make([]scored, 0, len(s.vectors))
	for id, vec := range s.vectors {
		candidates = append(candidates, scored{id: id, distance: 1 - dot(embedding, vec)})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance == candidates[j].distance {
			return candidates[i].id < candidates[j].id
		}
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	docs, err := s.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	hits := make([]domain.QueryHit, 0, len(candidates))
	for _, c := range candidates {
		doc, ok := byID[c.id]
		if !ok {
			continue
		}
		hits = append(hits, domain.QueryHit{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Distance: c.distance,
		})
	}
	return hits, nil
}

// ScanMetadata reads metadata of the whole collection in one pass.
func (s *Store) ScanMetadata(ctx context.Context) ([]domain.DocumentMeta, error) {
	query, args, err := s.sb.Select("id", "title", "published_at", "importance", "publisher", "theme").
		From(s.table).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build metadata scan: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan metadata: %w", err)
	}
	defer rows.Close()

	var metas []domain.DocumentMeta
	for rows.Next() {
		var m domain.DocumentMeta
		if err := rows.Scan(&m.ID, &m.Metadata.Title, &m.Metadata.PublishedAt, &m.Metadata.Importance,
			&m.Metadata.Publisher, &m.Metadata.Theme); err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata rows: %w", err)
	}
	return metas, nil
}

// Delete removes the given ids; ids that do not exist are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for start := 0; start < len(ids); start += deleteChunk {
		end := start + deleteChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		query, args, err := s.sb.Delete(s.table).Where(sq.Eq{"id": chunk}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		for _, id := range chunk {
			delete(s.vectors, id)
		}
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").From(s.table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
