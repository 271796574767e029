package ports

import (
	"context"

	"NewsRAG/internal/domain"
)

// FetchRequest describes one paged keyword search against the news source.
type FetchRequest struct {
	Keyword   string
	DateFrom  string
	DateTo    string
	PageLimit int
}

// NewsSource pages through an upstream news API.
// On failure it returns the articles fetched before the failing page together with the error.
type NewsSource interface {
	FetchArticles(ctx context.Context, req FetchRequest) ([]domain.Article, error)
}

// DocumentStore persists documents with their embeddings and answers similarity queries.
type DocumentStore interface {
	Upsert(ctx context.Context, doc domain.Document) error
	GetByIDs(ctx context.Context, ids []string) ([]domain.Document, error)
	Query(ctx context.Context, embedding []float32, k int) ([]domain.QueryHit, error)
	ScanMetadata(ctx context.Context) ([]domain.DocumentMeta, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// Encoder turns text into a fixed-length vector.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Notifier publishes ingestion run reports to operators.
type Notifier interface {
	PublishReport(ctx context.Context, report domain.CollectReport) error
}

// ChatClient sends a prompt to an LLM text-completion API.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(context.Context)) error
	Stop(ctx context.Context) error
}
