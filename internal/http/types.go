package http

import "github.com/fyrsmithlabs/docsearch/internal/search"

// Search modes accepted by POST /api/v1/search.
const (
	ModeKeyword  = "keyword"
	ModeSemantic = "semantic"
)

// HealthResponse is the response body for GET /health and GET /ready.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Index   search.Status `json:"index"`
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=4096"`
	// Mode defaults to semantic.
	Mode     string   `json:"mode" validate:"omitempty,oneof=keyword semantic"`
	Limit    int      `json:"limit" validate:"gte=0,lte=100"`
	MinScore *float64 `json:"min_score" validate:"omitempty,gte=-1,lte=1"`
}

// SearchResult is one matching document.
type SearchResult struct {
	ID      string   `json:"id"`
	Score   float64  `json:"score"`
	Matches []string `json:"matches,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}
