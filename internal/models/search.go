package models

import (
	"time"
)

// QueryStatus represents the lifecycle state of a search query.
type QueryStatus string

const (
	QueryStatusPending    QueryStatus = "pending"
	QueryStatusProcessing QueryStatus = "processing"
	QueryStatusCompleted  QueryStatus = "completed"
	QueryStatusError      QueryStatus = "error"
)

// SearchQuery is one analysis request. It is created once per run and mutated
// only through status transitions issued by the pipeline orchestrator.
type SearchQuery struct {
	ID        int64       `json:"id"`
	Criteria  string      `json:"criteria"`
	Status    QueryStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// RawResult is one unclassified item retrieved from an external source.
// (SearchQueryID, ContentHash) is unique: re-inserting identical content
// returns the existing row instead of duplicating.
type RawResult struct {
	ID            int64  `json:"id"`
	SearchQueryID int64  `json:"search_query_id"`
	Source        string `json:"source"`
	Content       string `json:"content"`
	ContentHash   string `json:"content_hash"`
}

// StructuredResult is a raw result after classification. RawResultID is a
// required back-reference; cardinality is 1:1 unless a run is reprocessed.
type StructuredResult struct {
	ID          int64  `json:"id"`
	RawResultID int64  `json:"raw_result_id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	DateFound   string `json:"date_found,omitempty"`
	Applicant   string `json:"applicant,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Payload     string `json:"payload"`
}

// LogEntry is one append-only audit record for a run. Entries are purely
// observational and never read back by pipeline logic.
type LogEntry struct {
	ID            int64     `json:"id"`
	SearchQueryID int64     `json:"search_query_id"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}
