package domain

import "time"

// ThemeCount records how many documents one theme contributed in a run.
type ThemeCount struct {
	Theme   string `json:"theme"`
	Fetched int    `json:"fetched"`
	Stored  int    `json:"stored"`
}

// CollectReport summarises a single ingestion run.
type CollectReport struct {
	RunID      string        `json:"run_id"`
	DateFrom   string        `json:"date_from"`
	DateTo     string        `json:"date_to"`
	Total      int           `json:"total"`
	Fetched    int           `json:"fetched"`
	Rejected   int           `json:"rejected"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	PerTheme   []ThemeCount  `json:"per_theme"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Deleted    int           `json:"deleted"`
	SourceErrs int           `json:"source_errors"`
}

// SaveResult counts outcomes of one save call.
type SaveResult struct {
	Stored   int `json:"stored"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// Add merges another result into r.
func (r *SaveResult) Add(other SaveResult) {
	r.Stored += other.Stored
	r.Skipped += other.Skipped
	r.Rejected += other.Rejected
	r.Failed += other.Failed
}

// Diagnostics describes what the store currently holds.
type Diagnostics struct {
	Total   int            `json:"total"`
	ByDate  map[string]int `json:"by_date"`
	ByTheme map[string]int `json:"by_theme"`
	Undated int            `json:"undated"`
}
