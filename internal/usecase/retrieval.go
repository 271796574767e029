package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

const (
	// DefaultNResults is the number of results returned when a query does not ask for more.
	DefaultNResults = 5
	// DefaultMinRelevanceScore drops weak matches.
	DefaultMinRelevanceScore = 0.3
	// DefaultPenaltyFactor softly demotes off-theme or stale documents.
	DefaultPenaltyFactor = 0.95

	semiconductorPrefix = "반도체 산업 관점에서 "
	technologyPrefix    = "기술 산업 관점에서 "
	baseQuerySuffix     = " 관련 산업 동향 및 뉴스 기사"
	diversitySuffix     = " 최신 동향"
)

// NewsQuery parameterises one retrieval call.
type NewsQuery struct {
	Categories        []string
	NResults          int
	MinRelevanceScore float64
	AddDiversity      bool
	// DaysAgo enables the recency penalty when positive.
	DaysAgo       int
	FilterByTheme bool
}

// EngineDeps wires the retrieval engine. Zero limits fall back to the package defaults.
type EngineDeps struct {
	Store   ports.DocumentStore
	Encoder ports.Encoder
	Logger  *slog.Logger

	NResults          int
	MinRelevanceScore float64
	PenaltyFactor     float64

	Now func() time.Time
}

// Engine expands categories into embedding queries and re-ranks the nearest documents.
type Engine struct {
	store    ports.DocumentStore
	encoder  ports.Encoder
	logger   *slog.Logger
	nResults int
	minScore float64
	penalty  float64
	now      func() time.Time
}

// NewEngine constructs the retrieval component.
func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		store:    deps.Store,
		encoder:  deps.Encoder,
		logger:   deps.Logger,
		nResults: deps.NResults,
		minScore: deps.MinRelevanceScore,
		penalty:  deps.PenaltyFactor,
		now:      deps.Now,
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.nResults < 1 {
		e.nResults = DefaultNResults
	}
	if e.minScore <= 0 || e.minScore > 1 {
		e.minScore = DefaultMinRelevanceScore
	}
	if e.penalty <= 0 || e.penalty > 1 {
		e.penalty = DefaultPenaltyFactor
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// DefaultQuery returns a query for the categories carrying the engine's configured limits.
func (e *Engine) DefaultQuery(categories ...string) NewsQuery {
	return NewsQuery{
		Categories:        categories,
		NResults:          e.nResults,
		MinRelevanceScore: e.minScore,
	}
}

// BaseQuery enriches every category with a domain hint and joins them into one query.
func BaseQuery(categories []string) string {
	enriched := make([]string, 0, len(categories))
	for _, c := range categories {
		switch {
		case strings.Contains(c, "반도체"):
			enriched = append(enriched, semiconductorPrefix+c)
		case strings.Contains(c, "기술") || strings.Contains(c, "AI"):
			enriched = append(enriched, technologyPrefix+c)
		default:
			enriched = append(enriched, c)
		}
	}
	return strings.Join(enriched, ", ") + baseQuerySuffix
}

// DiversityQuery is the plain secondary query issued in diversity mode.
func DiversityQuery(categories []string) string {
	return strings.Join(categories, " ") + diversitySuffix
}

// GetNewsData returns at most q.NResults documents ordered by relevance; a zero
// NResults uses the engine's configured limit.
// An empty result is not an error; an error is returned only when every query failed.
func (e *Engine) GetNewsData(ctx context.Context, q NewsQuery) ([]domain.RankedResult, error) {
	n := q.NResults
	if n < 1 {
		n = e.nResults
	}

	queries := []string{BaseQuery(q.Categories)}
	if q.AddDiversity {
		queries = append(queries, DiversityQuery(q.Categories))
	}

	cutoff := ""
	if q.DaysAgo > 0 {
		cutoff = e.now().AddDate(0, 0, -q.DaysAgo).Format(dateLayout)
	}

	seen := make(map[string]struct{})
	var (
		pool   []domain.RankedResult
		failed int
		errs   []error
	)

	for qi, text := range queries {
		hits, err := e.search(ctx, text, n*2)
		if err != nil {
			failed++
			errs = append(errs, err)
			e.logger.Warn("retrieval query failed", "query", text, "error", err)
			continue
		}

		for _, hit := range hits {
			score := relevance(hit.Distance)
			if score < q.MinRelevanceScore {
				continue
			}

			key := dedupKey(hit)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if q.FilterByTheme && qi == 0 && hit.Metadata.Theme != "" && !themeMatches(hit.Metadata.Theme, q.Categories) {
				score *= e.penalty
			}
			if cutoff != "" && hit.Metadata.PublishedAt != "" && domain.DatePart(hit.Metadata.PublishedAt) < cutoff {
				score *= e.penalty
			}

			pool = append(pool, domain.RankedResult{
				Title:          hit.Metadata.Title,
				Source:         hit.Metadata.Publisher,
				PublishedDate:  hit.Metadata.PublishedAt,
				Summary:        hit.Text,
				RelevanceScore: score,
			})
		}
	}

	if failed == len(queries) {
		return nil, fmt.Errorf("retrieve news: %w", errors.Join(errs...))
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].RelevanceScore > pool[j].RelevanceScore
	})
	if len(pool) > n {
		pool = pool[:n]
	}

	e.logger.Debug("news retrieved", "categories", q.Categories, "queries", len(queries), "results", len(pool))
	if pool == nil {
		pool = []domain.RankedResult{}
	}
	return pool, nil
}

func (e *Engine) search(ctx context.Context, text string, k int) ([]domain.QueryHit, error) {
	embedding, err := e.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	hits, err := e.store.Query(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	return hits, nil
}

// relevance maps an inner-product distance to a score in [0,1].
func relevance(distance float64) float64 {
	if distance > 1 {
		distance = 1
	}
	if distance < 0 {
		distance = 0
	}
	return 1 - distance
}

func dedupKey(hit domain.QueryHit) string {
	if hit.ID != "" {
		return hit.ID
	}
	h := xxhash.New()
	_, _ = h.WriteString(hit.Text)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(hit.Metadata.Title)
	return "h:" + strconv.FormatUint(h.Sum64(), 16)
}

func themeMatches(theme string, categories []string) bool {
	theme = strings.ToLower(theme)
	for _, c := range categories {
		if c != "" && strings.Contains(theme, strings.ToLower(c)) {
			return true
		}
	}
	return false
}
