package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// SearchStorage implements SQLite persistence for search queries, raw and
// structured results, and the run audit trail. Every write is its own atomic
// statement; no two callers share a transaction.
type SearchStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewSearchStorage creates a new search storage instance
func NewSearchStorage(db *SQLiteDB, logger arbor.ILogger) *SearchStorage {
	return &SearchStorage{
		db:     db,
		logger: logger,
	}
}

// ContentHash returns the hex SHA-256 of the canonical content string. Raw
// ingestion dedupes on it per query.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// InsertQuery creates a search query row and returns its id.
func (s *SearchStorage) InsertQuery(ctx context.Context, criteria string, status models.QueryStatus) (int64, error) {
	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO search_query (criteria, status, created_at) VALUES (?, ?, ?)`,
		criteria, string(status), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert search query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read search query id: %w", err)
	}

	s.logger.Debug().Int64("search_query_id", id).Str("criteria", criteria).Msg("Search query created")
	return id, nil
}

// GetQuery retrieves a search query by id.
func (s *SearchStorage) GetQuery(ctx context.Context, id int64) (*models.SearchQuery, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT id, criteria, status, created_at FROM search_query WHERE id = ?`, id)

	var q models.SearchQuery
	var status string
	var createdAt int64
	if err := row.Scan(&q.ID, &q.Criteria, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get search query %d: %w", id, err)
	}

	q.Status = models.QueryStatus(status)
	q.CreatedAt = time.Unix(createdAt, 0)
	return &q, nil
}

// UpdateQueryStatus transitions a search query's status.
func (s *SearchStorage) UpdateQueryStatus(ctx context.Context, id int64, status models.QueryStatus) error {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE search_query SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update search query %d status: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.logger.Debug().Int64("search_query_id", id).Str("status", string(status)).Msg("Search query status updated")
	return nil
}

// InsertRaw persists one raw result, idempotent on (search_query_id, hash of
// content). Re-inserting identical content returns the existing row id.
func (s *SearchStorage) InsertRaw(ctx context.Context, queryID int64, source, content string) (int64, error) {
	hash := ContentHash(content)

	// ON CONFLICT DO NOTHING keeps the insert atomic; the follow-up select
	// resolves the id for both the new and the pre-existing row.
	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO search_result_raw (search_query_id, source, content, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(search_query_id, content_hash) DO NOTHING`,
		queryID, source, content, hash, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert raw result: %w", err)
	}

	var id int64
	err = s.db.db.QueryRowContext(ctx,
		`SELECT id FROM search_result_raw WHERE search_query_id = ? AND content_hash = ?`,
		queryID, hash).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve raw result id: %w", err)
	}

	return id, nil
}

// CountRawByQuery returns the number of distinct raw rows stored for a query.
func (s *SearchStorage) CountRawByQuery(ctx context.Context, queryID int64) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_result_raw WHERE search_query_id = ?`, queryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw results: %w", err)
	}
	return count, nil
}

// InsertStructured persists one classified result and returns its id.
func (s *SearchStorage) InsertStructured(ctx context.Context, r *models.StructuredResult) (int64, error) {
	var dateFound, applicant, summary sql.NullString
	if r.DateFound != "" {
		dateFound = sql.NullString{String: r.DateFound, Valid: true}
	}
	if r.Applicant != "" {
		applicant = sql.NullString{String: r.Applicant, Valid: true}
	}
	if r.Summary != "" {
		summary = sql.NullString{String: r.Summary, Valid: true}
	}

	payload := r.Payload
	if payload == "" {
		payload = "{}"
	}

	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO search_result_structured (raw_result_id, category, title, date_found, applicant, summary, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RawResultID, r.Category, r.Title, dateFound, applicant, summary, payload, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert structured result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read structured result id: %w", err)
	}

	return id, nil
}

// ListStructuredByQuery returns all structured results for a search query,
// joined through their raw back-references.
func (s *SearchStorage) ListStructuredByQuery(ctx context.Context, queryID int64) ([]models.StructuredResult, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT s.id, s.raw_result_id, s.category, s.title, s.date_found, s.applicant, s.summary, s.payload
		 FROM search_result_structured s
		 JOIN search_result_raw r ON s.raw_result_id = r.id
		 WHERE r.search_query_id = ?
		 ORDER BY s.id`, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list structured results: %w", err)
	}
	defer rows.Close()

	var results []models.StructuredResult
	for rows.Next() {
		var r models.StructuredResult
		var dateFound, applicant, summary sql.NullString
		if err := rows.Scan(&r.ID, &r.RawResultID, &r.Category, &r.Title, &dateFound, &applicant, &summary, &r.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan structured result: %w", err)
		}
		r.DateFound = dateFound.String
		r.Applicant = applicant.String
		r.Summary = summary.String
		results = append(results, r)
	}

	return results, rows.Err()
}

// AppendLog writes one audit-trail entry for a run. Callers treat failures as
// best-effort; this method still reports them so the orchestrator can decide.
func (s *SearchStorage) AppendLog(ctx context.Context, queryID int64, message string) error {
	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO search_log (search_query_id, message, log_time) VALUES (?, ?, ?)`,
		queryID, message, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append search log: %w", err)
	}
	return nil
}

// ListLogs returns the audit trail for a run in append order.
func (s *SearchStorage) ListLogs(ctx context.Context, queryID int64) ([]models.LogEntry, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT id, search_query_id, message, log_time FROM search_log WHERE search_query_id = ? ORDER BY id`, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list search logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var logTime int64
		if err := rows.Scan(&e.ID, &e.SearchQueryID, &e.Message, &logTime); err != nil {
			return nil, fmt.Errorf("failed to scan search log: %w", err)
		}
		e.Timestamp = time.Unix(logTime, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
