package capabilities

import (
	"context"

	"github.com/ternarybob/inquiro/internal/models"
)

// RawItem is the normalized shape collection capabilities emit for every
// retrieved record. DBRawID is the persisted row id; ingestion is idempotent,
// so duplicate content carries the id of the original row.
type RawItem struct {
	DBRawID    int64  `json:"db_raw_id"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	Applicant  string `json:"applicant,omitempty"`
	FilingDate string `json:"filing_date,omitempty"`
	Abstract   string `json:"abstract,omitempty"`
	URL        string `json:"url,omitempty"`
}

// RawStore is the slice of the datastore collectors need.
type RawStore interface {
	InsertRaw(ctx context.Context, queryID int64, source, content string) (int64, error)
}

// StructuredStore is the slice of the datastore classifiers need.
type StructuredStore interface {
	InsertStructured(ctx context.Context, r *models.StructuredResult) (int64, error)
}
