package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aleeya2903/zaya-chatbot/internal/db"
)

// Store provides CRUD operations for audit entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new audit entry. If entry.ID is empty a UUID is generated.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_events (
			id, user_id, intent, message, page_url, summary, upsert_op, ai_response
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Intent,
		entry.Message,
		entry.PageURL,
		entry.Summary,
		string(entry.UpsertOp),
		entry.AIResponse,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// GetByID retrieves a single audit entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, user_id, intent, message, page_url, summary, upsert_op, ai_response
		FROM log_events WHERE id = ?`, id)

	e, err := scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}
	return e, nil
}

// scanEntry reads one row worth of columns. SQLite stores the timestamp as
// text, so it is parsed here rather than scanned directly.
func scanEntry(scan func(...any) error) (*Entry, error) {
	var e Entry
	var ts, op string
	if err := scan(&e.ID, &ts, &e.UserID, &e.Intent, &e.Message, &e.PageURL, &e.Summary, &op, &e.AIResponse); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.DateTime, ts); err == nil {
		e.Timestamp = t
	} else if t, err := time.Parse(time.RFC3339, ts); err == nil {
		e.Timestamp = t
	}
	e.UpsertOp = UpsertOp(op)
	return &e, nil
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	UserID string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var conds []string
	var args []any

	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	// datetime('now') stores text, so bound times are formatted to match.
	if filter.Since != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if filter.Until != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, filter.Until.UTC().Format(time.DateTime))
	}

	q := `SELECT id, timestamp, user_id, intent, message, page_url, summary, upsert_op, ai_response FROM log_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)
	if filter.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
