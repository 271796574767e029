package domain

// StockAllocation is one holding of a suggested portfolio.
type StockAllocation struct {
	Ticker     string  `json:"ticker"`
	Name       string  `json:"name"`
	Allocation float64 `json:"allocation"`
}

// Portfolio is a suggestion produced by the chat model.
type Portfolio struct {
	Name        string            `json:"name"`
	Stocks      []StockAllocation `json:"stocks"`
	Description string            `json:"description"`
}

// Recommendation bundles the news used as context with the model answer.
type Recommendation struct {
	Theme      string         `json:"theme"`
	News       []RankedResult `json:"news"`
	Portfolios []Portfolio    `json:"portfolios"`
	Raw        string         `json:"raw"`
}
