package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

const (
	briefingNewsLimit    = 5
	briefingSummaryRunes = 200
	noNewsLine           = "관련 뉴스를 찾지 못했습니다. 테마에 대한 일반적인 지식을 바탕으로 추천해주세요."
)

// RecommendRequest describes the portfolios the caller wants.
type RecommendRequest struct {
	Theme              string
	PortfolioCount     int
	StocksPerPortfolio int
}

// Recommender turns retrieved news into a portfolio briefing via a chat model.
type Recommender struct {
	engine *Engine
	chat   ports.ChatClient
	logger *slog.Logger
}

// NewRecommender wires the retrieval engine with the chat client.
func NewRecommender(engine *Engine, chat ports.ChatClient, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recommender{engine: engine, chat: chat, logger: logger}
}

// Recommend retrieves news for the theme and asks the chat model for portfolios.
// Missing news degrades the prompt instead of failing the call.
func (r *Recommender) Recommend(ctx context.Context, req RecommendRequest) (domain.Recommendation, error) {
	if r.chat == nil {
		return domain.Recommendation{}, fmt.Errorf("chat client is not configured")
	}
	if req.PortfolioCount < 1 {
		req.PortfolioCount = 1
	}
	if req.StocksPerPortfolio < 1 {
		req.StocksPerPortfolio = 5
	}

	query := r.engine.DefaultQuery(req.Theme)
	query.FilterByTheme = true
	news, err := r.engine.GetNewsData(ctx, query)
	if err != nil {
		r.logger.Warn("news retrieval failed, continuing without news", "theme", req.Theme, "error", err)
		news = nil
	}

	answer, err := r.chat.Complete(ctx, buildPrompt(req, news))
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("complete prompt: %w", err)
	}

	rec := domain.Recommendation{Theme: req.Theme, News: news, Raw: answer}
	portfolios, err := parsePortfolios(answer)
	if err != nil {
		r.logger.Warn("chat answer is not portfolio JSON", "theme", req.Theme, "error", err)
	} else {
		rec.Portfolios = portfolios
	}
	return rec, nil
}

func buildPrompt(req RecommendRequest, news []domain.RankedResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "투자자는 총 %d개의 포트폴리오를 구성하고 싶어합니다.\n", req.PortfolioCount)
	fmt.Fprintf(&b, "각 포트폴리오는 %d개의 주식으로 구성되어야 합니다.\n", req.StocksPerPortfolio)
	fmt.Fprintf(&b, "관심 테마: '%s'\n\n최근 관련 뉴스:\n\n", req.Theme)

	if len(news) == 0 {
		b.WriteString(noNewsLine)
		b.WriteString("\n")
	}
	for i, item := range news {
		if i == briefingNewsLimit {
			break
		}
		fmt.Fprintf(&b, "제목: %s\n출처: %s\n날짜: %s\n요약: %s...\n\n",
			item.Title, item.Source, item.PublishedDate, truncateRunes(item.Summary, briefingSummaryRunes))
	}

	b.WriteString("\n각 포트폴리오의 종목 ticker, 회사명, 비율(%)과 간단한 설명을 JSON 배열로 응답해주세요: ")
	b.WriteString(`[{"name": "...", "stocks": [{"ticker": "...", "name": "...", "allocation": 25.0}], "description": "..."}]`)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// parsePortfolios reads the JSON array, optionally wrapped in a markdown code fence.
func parsePortfolios(answer string) ([]domain.Portfolio, error) {
	body := answer
	if _, rest, ok := strings.Cut(body, "```json"); ok {
		body, _, _ = strings.Cut(rest, "```")
	} else if _, rest, ok := strings.Cut(body, "```"); ok {
		body, _, _ = strings.Cut(rest, "```")
	}

	var portfolios []domain.Portfolio
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &portfolios); err != nil {
		return nil, fmt.Errorf("decode portfolios: %w", err)
	}
	return portfolios, nil
}
