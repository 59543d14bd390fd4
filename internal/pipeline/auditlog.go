package pipeline

import (
	"context"

	"github.com/ternarybob/arbor"
)

// LogAppender is the slice of the datastore the audit log needs.
type LogAppender interface {
	AppendLog(ctx context.Context, queryID int64, message string) error
}

// AuditLog writes append-only progress and error entries keyed by run
// identity. It is best-effort: write failures are logged and swallowed, and
// entries are never read back for control decisions.
type AuditLog struct {
	store  LogAppender
	logger arbor.ILogger
}

// NewAuditLog creates an audit log over the given datastore.
func NewAuditLog(store LogAppender, logger arbor.ILogger) *AuditLog {
	return &AuditLog{store: store, logger: logger}
}

// Append records one entry for a run. A zero query id means the run has no
// persisted identity yet; the entry is dropped.
func (a *AuditLog) Append(ctx context.Context, queryID int64, message string) {
	if a == nil || a.store == nil || queryID == 0 {
		return
	}

	if err := a.store.AppendLog(ctx, queryID, message); err != nil {
		a.logger.Warn().Err(err).Int64("search_query_id", queryID).Msg("Audit log write failed")
	}
}
