package analytics

import (
	"time"

	"github.com/google/uuid"
)

// UsageEvent records a single call_tool invocation.
type UsageEvent struct {
	ToolName    string
	Server      string
	ContextHash string
	Selected    bool
	Timestamp   time.Time
}

// SearchRecord records a single search_tools invocation.
type SearchRecord struct {
	SearchID     string
	QueryHash    string
	ResultsCount int
	Timestamp    time.Time
}

// NewSearchRecord builds a SearchRecord for a completed search, hashing
// the raw query so the stored record doesn't retain it verbatim.
func NewSearchRecord(query string, resultsCount int) SearchRecord {
	return SearchRecord{
		SearchID:     uuid.New().String(),
		QueryHash:    HashQuery(query),
		ResultsCount: resultsCount,
	}
}
