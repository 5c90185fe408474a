package worker

import (
	"time"

	"sjsage522/asinharvester/internal/harvest"
)

// EventKey is the stream field a collection event is published under
const EventKey = "b64_collection"

// Event is published once per job run
type Event struct {
	RunID          string             `json:"runId"`
	Job            string             `json:"job"`
	URL            string             `json:"url"`
	Account        string             `json:"account"`
	Category       string             `json:"category"`
	Mode           harvest.Mode       `json:"mode"`
	Asins          []string           `json:"asins"`
	NewCount       int                `json:"newCount"`
	TotalCount     int                `json:"totalCount"`
	PagesProcessed int                `json:"pagesProcessed"`
	PerPage        []harvest.PageStat `json:"perPage,omitempty"`
	Success        bool               `json:"success"`
	Error          string             `json:"error,omitempty"`
	Retryable      bool               `json:"retryable,omitempty"`
	StartedAt      time.Time          `json:"startedAt"`
	FinishedAt     time.Time          `json:"finishedAt"`
}
