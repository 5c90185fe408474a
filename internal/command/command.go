package command

import (
	"encoding/json"
	"math"

	"sjsage522/asinharvester/internal/harvest"
)

// Action names a trigger command
type Action string

const (
	ActionPing              Action = "ping"
	ActionScanAll           Action = "scanAll"
	ActionScanFiltered      Action = "scanFiltered"
	ActionScanQuick         Action = "scanQuick"
	ActionCollectMultiPage  Action = "collectMultiPage"
	ActionClearHighlighting Action = "clearHighlighting"
)

// Page budgets used when a request leaves maxPages unset
const (
	DefaultScanPages      = 1
	DefaultQuickPages     = 5
	DefaultMultiPageLimit = 5
)

// NoResultsMessage is reported when a quick scan finishes without identifiers
const NoResultsMessage = "No ASINs found. The page may not have product listings, or all products were filtered out."

// Request is one trigger command
type Request struct {
	Action Action `json:"action"`
	// URL opens a page before the command runs; empty reuses the current page
	URL      string                `json:"url,omitempty"`
	Config   *harvest.FilterConfig `json:"config,omitempty"`
	MaxPages int                   `json:"maxPages,omitempty"`

	// Quick scan parameters
	ExcludeBrand    harvest.StringList `json:"excludeBrand,omitempty"`
	SearchKeywords  harvest.StringList `json:"searchKeywords,omitempty"`
	MinRating       float64            `json:"minRating,omitempty"`
	MaxDeliveryDays int                `json:"maxDeliveryDays,omitempty"`
}

// Response answers a Request
type Response struct {
	Success        bool               `json:"success"`
	Asins          []string           `json:"asins,omitempty"`
	Error          string             `json:"error,omitempty"`
	PagesProcessed int                `json:"pagesProcessed,omitempty"`
	PerPage        []harvest.PageStat `json:"perPage,omitempty"`
	TimeSeconds    float64            `json:"timeSeconds,omitempty"`
	Ready          bool               `json:"ready,omitempty"`
}

// ParseRequest decodes a JSON request
func ParseRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

// quickConfig builds the filter of a quick scan from its flat parameters
func (r Request) quickConfig() harvest.FilterConfig {
	return harvest.FilterConfig{
		ExcludeBrands:   r.ExcludeBrand,
		SearchKeywords:  r.SearchKeywords,
		MinRating:       r.MinRating,
		MaxDeliveryDays: r.MaxDeliveryDays,
	}
}

func (r Request) pages(fallback int) int {
	if r.MaxPages == 0 {
		return fallback
	}
	return r.MaxPages
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// roundSeconds keeps one decimal
func roundSeconds(s float64) float64 {
	return math.Round(s*10) / 10
}
