package domain

// Metadata is stored next to every document. All values are strings; absent values are "".
type Metadata struct {
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
	Importance  string `json:"importance"`
	Publisher   string `json:"publisher"`
	Theme       string `json:"theme"`
}

// MetadataFor builds document metadata from an article.
func MetadataFor(a Article) Metadata {
	importance := a.Importance
	if importance == "" {
		importance = DefaultImportance
	}
	return Metadata{
		Title:       a.PreferredTitle(),
		PublishedAt: a.PublishedAt,
		Importance:  importance,
		Publisher:   a.Publisher,
		Theme:       a.Theme,
	}
}

// Document is the unit persisted in the vector collection.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// DocumentMeta pairs a document id with its metadata for bulk scans.
type DocumentMeta struct {
	ID       string
	Metadata Metadata
}

// QueryHit is a single nearest-neighbour match returned by the store.
type QueryHit struct {
	ID       string
	Text     string
	Metadata Metadata
	// Distance is 1 - inner product; smaller is more similar.
	Distance float64
}

// RankedResult is a news item returned to the recommendation generator.
type RankedResult struct {
	Title          string  `json:"title"`
	Source         string  `json:"source"`
	PublishedDate  string  `json:"published_date"`
	Summary        string  `json:"summary"`
	RelevanceScore float64 `json:"relevance_score"`
}
