package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/gpx-tracks-etl/internal/database"
	"github.com/jengzang/gpx-tracks-etl/internal/models"
)

// timeLayout stores UTC timestamps with fixed-width fractions so that text
// comparison in SQLite orders chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TrackRepository handles gpx_tracks on SQLite
type TrackRepository struct {
	db      *sql.DB
	ddlFile string
}

// NewTrackRepository creates a new track repository. ddlFile optionally
// overrides the built-in CREATE TABLE statement.
func NewTrackRepository(db *sql.DB, ddlFile string) *TrackRepository {
	return &TrackRepository{db: db, ddlFile: ddlFile}
}

// EnsureSchema creates gpx_tracks if it does not exist
func (r *TrackRepository) EnsureSchema(ctx context.Context) error {
	return database.EnsureSchema(ctx, r.db, r.ddlFile)
}

// Write appends records in a single transaction and returns the number of
// rows written. Nothing is committed when any record fails.
func (r *TrackRepository) Write(ctx context.Context, records []models.EnrichedPoint) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := checkRecords(records); err != nil {
		return 0, err
	}

	failedAt := -1
	err := database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO gpx_tracks (time, latitude, longitude, speed, course)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, rec := range records {
			_, err := stmt.ExecContext(ctx,
				rec.Time.UTC().Format(timeLayout), rec.Latitude, rec.Longitude, rec.Speed, rec.Course)
			if err != nil {
				failedAt = i
				return fmt.Errorf("failed to insert record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, &WriteError{Written: 0, Index: failedAt, Err: err}
	}

	return len(records), nil
}

// GetTrackPoints retrieves stored points with filtering and pagination
func (r *TrackRepository) GetTrackPoints(ctx context.Context, filter models.TrackPointFilter) ([]models.EnrichedPoint, int64, error) {
	query := `SELECT id, time, latitude, longitude, speed, course FROM gpx_tracks`

	var conditions []string
	var args []interface{}

	// Add filters
	if filter.StartTime > 0 {
		conditions = append(conditions, "time >= ?")
		args = append(args, time.Unix(filter.StartTime, 0).UTC().Format(timeLayout))
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "time <= ?")
		args = append(args, time.Unix(filter.EndTime, 0).UTC().Format(timeLayout))
	}
	if filter.MinSpeed > 0 {
		conditions = append(conditions, "speed >= ?")
		args = append(args, filter.MinSpeed)
	}
	if filter.MaxSpeed > 0 {
		conditions = append(conditions, "speed <= ?")
		args = append(args, filter.MaxSpeed)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM gpx_tracks"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count track points: %w", err)
	}

	filter.Normalize()
	offset := (filter.Page - 1) * filter.PageSize
	query += where + " ORDER BY time DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query track points: %w", err)
	}
	defer rows.Close()

	var points []models.EnrichedPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, 0, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate track points: %w", err)
	}

	return points, total, nil
}

// GetTrackPointByID retrieves a single stored point by ID, nil when absent
func (r *TrackRepository) GetTrackPointByID(ctx context.Context, id int64) (*models.EnrichedPoint, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, time, latitude, longitude, speed, course FROM gpx_tracks WHERE id = ?`, id)

	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPoint(s scanner) (models.EnrichedPoint, error) {
	var p models.EnrichedPoint
	var ts string
	if err := s.Scan(&p.ID, &ts, &p.Latitude, &p.Longitude, &p.Speed, &p.Course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan track point: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return p, fmt.Errorf("failed to parse time %q of point %d: %w", ts, p.ID, err)
	}
	p.Time = t
	return p, nil
}
