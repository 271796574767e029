package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

func seededStore(t *testing.T, docs ...domain.Document) *memStore {
	t.Helper()
	store := newMemStore()
	for _, d := range docs {
		require.NoError(t, store.Upsert(context.Background(), d))
	}
	return store
}

func doc(id, title, theme, published string, vec ...float32) domain.Document {
	return domain.Document{
		ID:        id,
		Text:      "본문 " + id,
		Embedding: vec,
		Metadata: domain.Metadata{
			Title:       title,
			PublishedAt: published,
			Importance:  "medium",
			Publisher:   "한국경제",
			Theme:       theme,
		},
	}
}

func newTestEngine(store ports.DocumentStore, enc *fakeEncoder) *Engine {
	return NewEngine(EngineDeps{Store: store, Encoder: enc, Now: func() time.Time { return fixedNow }})
}

func TestBaseQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		categories []string
		want       string
	}{
		{"semiconductor", []string{"반도체"}, "반도체 산업 관점에서 반도체 관련 산업 동향 및 뉴스 기사"},
		{"technology", []string{"AI", "기술주"}, "기술 산업 관점에서 AI, 기술 산업 관점에서 기술주 관련 산업 동향 및 뉴스 기사"},
		{"plain", []string{"금융", "에너지"}, "금융, 에너지 관련 산업 동향 및 뉴스 기사"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BaseQuery(tc.categories))
		})
	}
}

func TestDiversityQuery(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "반도체 AI 최신 동향", DiversityQuery([]string{"반도체", "AI"}))
}

func TestGetNewsDataThresholdAndOrder(t *testing.T) {
	t.Parallel()

	store := seededStore(t,
		doc("high", "HBM 수요 급증", "반도체", "2025-03-07T09:00:00", 0.8, 0.6),
		doc("mid", "파운드리 투자", "반도체", "2025-03-07T09:00:00", 0.5, 0.866),
		doc("low", "소재 국산화", "반도체", "2025-03-07T09:00:00", 0.2, 0.9798),
	)
	enc := &fakeEncoder{vector: []float32{1, 0}}
	engine := newTestEngine(store, enc)

	got, err := engine.GetNewsData(context.Background(), NewsQuery{
		Categories:        []string{"반도체"},
		NResults:          2,
		MinRelevanceScore: 0.3,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "HBM 수요 급증", got[0].Title)
	assert.InDelta(t, 0.8, got[0].RelevanceScore, 1e-6)
	assert.Equal(t, "파운드리 투자", got[1].Title)
	assert.InDelta(t, 0.5, got[1].RelevanceScore, 1e-6)
	assert.Equal(t, "한국경제", got[0].Source)
	assert.Equal(t, "2025-03-07T09:00:00", got[0].PublishedDate)
	assert.Equal(t, "본문 high", got[0].Summary)

	assert.Equal(t, []string{BaseQuery([]string{"반도체"})}, enc.seen())
}

func TestGetNewsDataHighThresholdReturnsEmpty(t *testing.T) {
	t.Parallel()

	store := seededStore(t,
		doc("a", "A", "금융", "2025-03-07T09:00:00", 0.8, 0.6),
		doc("b", "B", "금융", "2025-03-07T09:00:00", 0.6, 0.8),
	)
	engine := newTestEngine(store, &fakeEncoder{})

	got, err := engine.GetNewsData(context.Background(), NewsQuery{
		Categories:        []string{"없는테마"},
		NResults:          5,
		MinRelevanceScore: 0.99,
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetNewsDataTopK(t *testing.T) {
	t.Parallel()

	var docs []domain.Document
	for i := 0; i < 10; i++ {
		x := float32(i+1) / 10
		docs = append(docs, doc(fmt.Sprintf("d%d", i), fmt.Sprintf("T%d", i), "IT", "2025-03-07T09:00:00", x, 0))
	}
	engine := newTestEngine(seededStore(t, docs...), &fakeEncoder{})

	got, err := engine.GetNewsData(context.Background(), NewsQuery{Categories: []string{"IT"}, NResults: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].RelevanceScore, got[i].RelevanceScore)
	}
	assert.Equal(t, "T9", got[0].Title)
}

func TestGetNewsDataScoreBounds(t *testing.T) {
	t.Parallel()

	store := &stubStore{hits: []domain.QueryHit{
		{ID: "far", Text: "far", Distance: 1.7},
		{ID: "over", Text: "over", Distance: -0.4},
		{ID: "exact", Text: "exact", Distance: 0},
	}}
	engine := newTestEngine(store, &fakeEncoder{})

	got, err := engine.GetNewsData(context.Background(), NewsQuery{Categories: []string{"AI"}, NResults: 5})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		assert.LessOrEqual(t, r.RelevanceScore, 1.0)
	}
	assert.Equal(t, 0.0, got[2].RelevanceScore)
}

func TestGetNewsDataDiversityDeduplicates(t *testing.T) {
	t.Parallel()

	store := seededStore(t,
		doc("a", "A", "AI", "2025-03-07T09:00:00", 0.9, 0.1),
		doc("b", "B", "AI", "2025-03-07T09:00:00", 0.7, 0.3),
	)
	enc := &fakeEncoder{}
	engine := newTestEngine(store, enc)

	got, err := engine.GetNewsData(context.Background(), NewsQuery{
		Categories:   []string{"AI"},
		NResults:     5,
		AddDiversity: true,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{BaseQuery([]string{"AI"}), DiversityQuery([]string{"AI"})}, enc.seen())
}

func TestGetNewsDataDeduplicatesByContentWithoutID(t *testing.T) {
	t.Parallel()

	store := &stubStore{hits: []domain.QueryHit{
		{Text: "같은 본문", Metadata: domain.Metadata{Title: "같은 제목"}, Distance: 0.1},
		{Text: "같은 본문", Metadata: domain.Metadata{Title: "같은 제목"}, Distance: 0.2},
		{Text: "같은 본문", Metadata: domain.Metadata{Title: "다른 제목"}, Distance: 0.3},
	}}
	engine := newTestEngine(store, &fakeEncoder{})

	got, err := engine.GetNewsData(context.Background(), NewsQuery{Categories: []string{"AI"}, NResults: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.9, got[0].RelevanceScore, 1e-9)
	assert.Equal(t, "다른 제목", got[1].Title)
}

func TestGetNewsDataSoftPenalties(t *testing.T) {
	t.Parallel()

	store := &stubStore{hits: []domain.QueryHit{
		{ID: "on-theme", Metadata: domain.Metadata{Title: "on", Theme: "반도체", PublishedAt: "2025-03-07T09:00:00"}, Distance: 0.2},
		{ID: "off-theme", Metadata: domain.Metadata{Title: "off", Theme: "금융", PublishedAt: "2025-03-07T09:00:00"}, Distance: 0.2},
		{ID: "stale", Metadata: domain.Metadata{Title: "stale", Theme: "반도체", PublishedAt: "2025-02-01T09:00:00"}, Distance: 0.2},
		{ID: "both", Metadata: domain.Metadata{Title: "both", Theme: "금융", PublishedAt: "2025-02-01T09:00:00"}, Distance: 0.2},
		{ID: "untagged", Metadata: domain.Metadata{Title: "untagged"}, Distance: 0.2},
	}}
	engine := newTestEngine(store, &fakeEncoder{})

	got, err := engine.GetNewsData(context.Background(), NewsQuery{
		Categories:    []string{"반도체"},
		NResults:      5,
		DaysAgo:       7,
		FilterByTheme: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 5)

	scores := make(map[string]float64, len(got))
	for _, r := range got {
		scores[r.Title] = r.RelevanceScore
	}
	assert.InDelta(t, 0.8, scores["on"], 1e-9)
	assert.InDelta(t, 0.8, scores["untagged"], 1e-9)
	assert.InDelta(t, 0.76, scores["off"], 1e-9)
	assert.InDelta(t, 0.76, scores["stale"], 1e-9)
	assert.InDelta(t, 0.722, scores["both"], 1e-9)
	assert.Equal(t, "both", got[4].Title)
}

func TestGetNewsDataThemePenaltyOnlyOnBaseQuery(t *testing.T) {
	t.Parallel()

	store := &stubStore{byCall: [][]domain.QueryHit{
		{
			{ID: "base-on", Metadata: domain.Metadata{Title: "base-on", Theme: "반도체", PublishedAt: "2025-03-07T09:00:00"}, Distance: 0.2},
			{ID: "base-off", Metadata: domain.Metadata{Title: "base-off", Theme: "금융", PublishedAt: "2025-03-07T09:00:00"}, Distance: 0.2},
		},
		{
			{ID: "base-off", Metadata: domain.Metadata{Title: "base-off", Theme: "금융", PublishedAt: "2025-03-07T09:00:00"}, Distance: 0.2},
			{ID: "div-off", Metadata: domain.Metadata{Title: "div-off", Theme: "금융", PublishedAt: "2025-03-07T09:00:00"}, Distance: 0.2},
			{ID: "div-stale", Metadata: domain.Metadata{Title: "div-stale", Theme: "금융", PublishedAt: "2025-02-01T09:00:00"}, Distance: 0.2},
		},
	}}
	engine := newTestEngine(store, &fakeEncoder{})

	got, err := engine.GetNewsData(context.Background(), NewsQuery{
		Categories:    []string{"반도체"},
		NResults:      5,
		AddDiversity:  true,
		DaysAgo:       7,
		FilterByTheme: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	scores := make(map[string]float64, len(got))
	for _, r := range got {
		scores[r.Title] = r.RelevanceScore
	}
	assert.InDelta(t, 0.8, scores["base-on"], 1e-9)
	assert.InDelta(t, 0.76, scores["base-off"], 1e-9)
	assert.InDelta(t, 0.8, scores["div-off"], 1e-9)
	assert.InDelta(t, 0.76, scores["div-stale"], 1e-9)
	assert.Equal(t, 2, store.calls)
}

func TestEngineConfiguredDefaults(t *testing.T) {
	t.Parallel()

	store := &stubStore{hits: []domain.QueryHit{
		{ID: "a", Metadata: domain.Metadata{Title: "a"}, Distance: 0.1},
		{ID: "b", Metadata: domain.Metadata{Title: "b"}, Distance: 0.2},
		{ID: "c", Metadata: domain.Metadata{Title: "c"}, Distance: 0.3},
		{ID: "d", Metadata: domain.Metadata{Title: "d"}, Distance: 0.5},
	}}
	engine := NewEngine(EngineDeps{Store: store, Encoder: &fakeEncoder{}, NResults: 2, MinRelevanceScore: 0.6})

	q := engine.DefaultQuery("AI")
	assert.Equal(t, NewsQuery{Categories: []string{"AI"}, NResults: 2, MinRelevanceScore: 0.6}, q)

	got, err := engine.GetNewsData(context.Background(), NewsQuery{Categories: []string{"AI"}, MinRelevanceScore: 0.6})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)

	plain := NewEngine(EngineDeps{Store: store, Encoder: &fakeEncoder{}}).DefaultQuery("AI")
	assert.Equal(t, DefaultNResults, plain.NResults)
	assert.Equal(t, DefaultMinRelevanceScore, plain.MinRelevanceScore)
}

func TestGetNewsDataThemeMatchIsCaseInsensitiveSubstring(t *testing.T) {
	t.Parallel()

	store := &stubStore{hits: []domain.QueryHit{
		{ID: "x", Metadata: domain.Metadata{Title: "x", Theme: "Generative AI"}, Distance: 0.1},
	}}
	engine := newTestEngine(store, &fakeEncoder{})

	got, err := engine.GetNewsData(context.Background(), NewsQuery{Categories: []string{"ai"}, FilterByTheme: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].RelevanceScore, 1e-9)
}

func TestGetNewsDataPartialQueryFailure(t *testing.T) {
	t.Parallel()

	store := seededStore(t, doc("a", "A", "AI", "2025-03-07T09:00:00", 1, 0))
	enc := &fakeEncoder{failOn: "최신 동향"}
	engine := newTestEngine(store, enc)

	got, err := engine.GetNewsData(context.Background(), NewsQuery{Categories: []string{"AI"}, AddDiversity: true})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetNewsDataAllQueriesFailed(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: errors.New("collection closed")}
	engine := newTestEngine(store, &fakeEncoder{})

	_, err := engine.GetNewsData(context.Background(), NewsQuery{Categories: []string{"AI"}, AddDiversity: true})
	assert.ErrorContains(t, err, "collection closed")
}
