package database

import (
	"context"
	"fmt"
	"time"

	"github.com/kdimtricp/moviegpt/internal/models"
)

type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Insert(ctx context.Context, record *models.SearchRecord) error {
	query := `
		INSERT INTO search_history (
			id, query, outcome, title_count, result_count, message, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.ExecContext(ctx, query,
		record.ID,
		record.Query,
		string(record.Outcome),
		record.TitleCount,
		record.ResultCount,
		record.Message,
		record.Duration.Milliseconds(),
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search record: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *HistoryRepository) ListRecent(ctx context.Context, limit int) ([]models.SearchRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, query, outcome, title_count, result_count, COALESCE(message, ''), duration_ms, created_at
		FROM search_history
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	defer rows.Close()

	var records []models.SearchRecord
	for rows.Next() {
		var rec models.SearchRecord
		var outcome string
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.Query, &outcome, &rec.TitleCount, &rec.ResultCount,
			&rec.Message, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search record: %w", err)
		}
		rec.Outcome = models.Outcome(outcome)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_history").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count search history: %w", err)
	}
	return count, nil
}
