package domain

import "strings"

// DefaultImportance is assigned when the source does not classify an article.
const DefaultImportance = "medium"

// Article is a news item fetched from the upstream news source.
type Article struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	TitleLocalized string `json:"title_ko"`
	Summary        string `json:"summary"`
	// SummaryLocalized holds the Korean summary when the source provides one.
	SummaryLocalized string `json:"summary_ko"`
	Reason           string `json:"reason"`
	Publisher        string `json:"publisher"`
	PublishedAt      string `json:"published_at"`
	Importance       string `json:"importance"`

	// Theme is assigned by the ingestion pipeline, never by the source.
	Theme string `json:"-"`
}

// PreferredTitle returns the localized title when present.
func (a Article) PreferredTitle() string {
	if t := strings.TrimSpace(a.TitleLocalized); t != "" {
		return t
	}
	return strings.TrimSpace(a.Title)
}

// PreferredSummary returns the localized summary when present.
func (a Article) PreferredSummary() string {
	if s := strings.TrimSpace(a.SummaryLocalized); s != "" {
		return s
	}
	return strings.TrimSpace(a.Summary)
}

// Valid reports whether the article may become a stored document.
func (a Article) Valid() bool {
	if strings.TrimSpace(a.ID) == "" {
		return false
	}
	return a.PreferredTitle() != "" || a.PreferredSummary() != ""
}

// DatePart cuts an ISO-8601 timestamp at the "T" separator.
func DatePart(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		return ts[:i]
	}
	return ts
}
