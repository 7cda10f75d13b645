package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/proposer/pkg/models"
)

// SaveRequest archives a terminal request snapshot so its status stays
// queryable after the in-memory tracker is released.
func (db *DB) SaveRequest(ctx context.Context, req models.Request) error {
	if !req.Status.Terminal() {
		return fmt.Errorf("archive request %s: status %s is not terminal", req.ID, req.Status)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	finished := time.Now()
	if req.FinishedAt != nil {
		finished = *req.FinishedAt
	}

	_, err = db.exec(ctx, `
		INSERT INTO requests (id, status, snapshot, finished_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, snapshot = excluded.snapshot, finished_at = excluded.finished_at
	`, req.ID, string(req.Status), string(data), formatTime(finished))
	if err != nil {
		return fmt.Errorf("archive request: %w", err)
	}
	return nil
}

// GetRequest returns an archived request snapshot.
func (db *DB) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	var data string
	err := db.queryRow(ctx, "SELECT snapshot FROM requests WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}

	var req models.Request
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	return &req, nil
}

// PurgeRequests deletes archived requests older than the given duration.
// Returns the number of requests deleted.
func (db *DB) PurgeRequests(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.exec(ctx, "DELETE FROM requests WHERE finished_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge requests: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
