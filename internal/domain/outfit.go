package domain

// BundleComponent is one item of an outfit bundle
type BundleComponent struct {
	ID       string `json:"id,omitempty"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Link     string `json:"link"`
	Price    string `json:"price,omitempty"`
	Image    string `json:"image,omitempty"`
}

// OutfitBundle is a composed set of items, one per requested category
type OutfitBundle struct {
	Name       string            `json:"name"`
	Components []BundleComponent `json:"components"`
	TotalPrice float64           `json:"totalPrice"`
	Rationale  string            `json:"rationale,omitempty"`
}

// CategoryResult is the pipeline output for a single category
type CategoryResult struct {
	Category              string       `json:"category"`
	Query                 string       `json:"query"`
	Items                 []ScoredItem `json:"items"`
	InitialCandidateCount int          `json:"initialCandidateCount"`
	Logs                  []string     `json:"logs"`
}

// BudgetSummary reports the simplified-mode feasibility check
type BudgetSummary struct {
	MaxBudget     float64 `json:"maxBudget"`
	CheapestTotal float64 `json:"cheapestTotal"`
	Feasible      bool    `json:"feasible"`
	Resorted      bool    `json:"resorted"`
}

// SearchResult is the full response for one pipeline run
type SearchResult struct {
	RequestID  string           `json:"requestId"`
	Mode       Mode             `json:"mode"`
	Categories []CategoryResult `json:"categories"`
	Bundles    []OutfitBundle   `json:"bundles"`
	BundleNote string           `json:"bundleNote,omitempty"`
	Budget     *BudgetSummary   `json:"budget,omitempty"`
	Logs       []string         `json:"logs"`
	Cached     bool             `json:"cached"`
}

// TotalItems counts items across all categories.
func (r *SearchResult) TotalItems() int {
	n := 0
	for _, c := range r.Categories {
		n += len(c.Items)
	}
	return n
}
