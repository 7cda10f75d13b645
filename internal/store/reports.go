package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/proposer/pkg/models"
)

var (
	// ErrStorageFailure wraps every failure to durably record a report.
	ErrStorageFailure = errors.New("storage failure")
	// ErrNotFound is returned when a report or request does not exist.
	ErrNotFound = errors.New("not found")
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// ListOptions controls report listing.
type ListOptions struct {
	// Limit is the maximum number of reports returned. Zero means DefaultListLimit.
	Limit int
	// BeforeSeq restarts a listing after the last report of a previous page.
	// Zero starts from the newest report.
	BeforeSeq int64
}

// ReportStore handles report persistence.
type ReportStore interface {
	Save(ctx context.Context, requestID, brief, body string) (*models.Report, error)
	List(ctx context.Context, opts ListOptions) ([]models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
}

// RequestArchive records terminal request snapshots.
type RequestArchive interface {
	SaveRequest(ctx context.Context, req models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ ReportStore    = (*DB)(nil)
	_ RequestArchive = (*DB)(nil)
)

// Save records body as the next version of brief's lineage.
// The version is computed and the row inserted in one transaction, so a
// reader never observes a partial report and versions never repeat.
func (db *DB) Save(ctx context.Context, requestID, brief, body string) (*models.Report, error) {
	r := &models.Report{
		ID:        uuid.New().String(),
		RequestID: requestID,
		Lineage:   models.LineageKey(brief),
		Brief:     brief,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		var latest int
		row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM reports WHERE lineage = ?", r.Lineage)
		if err := row.Scan(&latest); err != nil {
			return fmt.Errorf("get latest version: %w", err)
		}
		r.Version = latest + 1

		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, request_id, lineage, brief, body, version, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.RequestID, r.Lineage, r.Brief, r.Body, r.Version, formatTime(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		r.Seq, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("get report seq: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: save report: %w", ErrStorageFailure, err)
	}
	return r, nil
}

// List returns report metadata newest first. Body is left empty.
func (db *DB) List(ctx context.Context, opts ListOptions) ([]models.Report, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows *sql.Rows
	var err error
	if opts.BeforeSeq > 0 {
		rows, err = db.query(ctx, `
			SELECT seq, id, request_id, lineage, brief, version, created_at
			FROM reports WHERE seq < ? ORDER BY seq DESC LIMIT ?
		`, opts.BeforeSeq, limit)
	} else {
		rows, err = db.query(ctx, `
			SELECT seq, id, request_id, lineage, brief, version, created_at
			FROM reports ORDER BY seq DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		var createdAt string
		if err := rows.Scan(&r.Seq, &r.ID, &r.RequestID, &r.Lineage, &r.Brief, &r.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.CreatedAt, _ = parseTime(createdAt)
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// Get retrieves a full report by ID.
func (db *DB) Get(ctx context.Context, id string) (*models.Report, error) {
	row := db.queryRow(ctx, `
		SELECT seq, id, request_id, lineage, brief, body, version, created_at
		FROM reports WHERE id = ?
	`, id)

	var r models.Report
	var createdAt string
	err := row.Scan(&r.Seq, &r.ID, &r.RequestID, &r.Lineage, &r.Brief, &r.Body, &r.Version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	r.CreatedAt, _ = parseTime(createdAt)
	return &r, nil
}

// Versions returns every report in brief's lineage, oldest first.
func (db *DB) Versions(ctx context.Context, brief string) ([]models.Report, error) {
	rows, err := db.query(ctx, `
		SELECT seq, id, request_id, lineage, brief, version, created_at
		FROM reports WHERE lineage = ? ORDER BY version ASC
	`, models.LineageKey(brief))
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		var createdAt string
		if err := rows.Scan(&r.Seq, &r.ID, &r.RequestID, &r.Lineage, &r.Brief, &r.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.CreatedAt, _ = parseTime(createdAt)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
