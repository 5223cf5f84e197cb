package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jengzang/gpx-tracks-etl/internal/database"
	"github.com/jengzang/gpx-tracks-etl/internal/models"
)

// PgxPool is the subset of *pgxpool.Pool used by PGTrackRepository.
// pgxmock pools satisfy it too.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGTrackRepository handles gpx_tracks on PostgreSQL
type PGTrackRepository struct {
	db      PgxPool
	ddlFile string
}

// NewPGTrackRepository creates a new PostgreSQL track repository
func NewPGTrackRepository(db PgxPool, ddlFile string) *PGTrackRepository {
	return &PGTrackRepository{db: db, ddlFile: ddlFile}
}

// EnsureSchema creates gpx_tracks if it does not exist
func (r *PGTrackRepository) EnsureSchema(ctx context.Context) error {
	return database.EnsurePostgresSchema(ctx, r.db, r.ddlFile)
}

// Write appends records in a single transaction and returns the number of
// rows written. Nothing is committed when any record fails.
func (r *PGTrackRepository) Write(ctx context.Context, records []models.EnrichedPoint) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := checkRecords(records); err != nil {
		return 0, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, &WriteError{Index: -1, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	for i, rec := range records {
		_, err := tx.Exec(ctx, `INSERT INTO gpx_tracks (time, latitude, longitude, speed, course)
			VALUES ($1, $2, $3, $4, $5)`,
			rec.Time.UTC(), rec.Latitude, rec.Longitude, rec.Speed, rec.Course)
		if err != nil {
			err = fmt.Errorf("failed to insert record %d: %w", i, err)
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("%w (rollback error: %v)", err, rbErr)
			}
			return 0, &WriteError{Index: i, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &WriteError{Index: -1, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	return len(records), nil
}

// GetTrackPoints retrieves stored points with filtering and pagination
func (r *PGTrackRepository) GetTrackPoints(ctx context.Context, filter models.TrackPointFilter) ([]models.EnrichedPoint, int64, error) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StartTime > 0 {
		conditions = append(conditions, "time >= "+arg(time.Unix(filter.StartTime, 0).UTC()))
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "time <= "+arg(time.Unix(filter.EndTime, 0).UTC()))
	}
	if filter.MinSpeed > 0 {
		conditions = append(conditions, "speed >= "+arg(filter.MinSpeed))
	}
	if filter.MaxSpeed > 0 {
		conditions = append(conditions, "speed <= "+arg(filter.MaxSpeed))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM gpx_tracks"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count track points: %w", err)
	}

	filter.Normalize()
	offset := (filter.Page - 1) * filter.PageSize
	query := "SELECT id, time, latitude, longitude, speed, course FROM gpx_tracks" + where +
		" ORDER BY time DESC, id DESC LIMIT " + arg(filter.PageSize) + " OFFSET " + arg(offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query track points: %w", err)
	}
	defer rows.Close()

	var points []models.EnrichedPoint
	for rows.Next() {
		var p models.EnrichedPoint
		if err := rows.Scan(&p.ID, &p.Time, &p.Latitude, &p.Longitude, &p.Speed, &p.Course); err != nil {
			return nil, 0, fmt.Errorf("failed to scan track point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate track points: %w", err)
	}

	return points, total, nil
}

// GetTrackPointByID retrieves a single stored point by ID, nil when absent
func (r *PGTrackRepository) GetTrackPointByID(ctx context.Context, id int64) (*models.EnrichedPoint, error) {
	var p models.EnrichedPoint
	err := r.db.QueryRow(ctx,
		`SELECT id, time, latitude, longitude, speed, course FROM gpx_tracks WHERE id = $1`, id).
		Scan(&p.ID, &p.Time, &p.Latitude, &p.Longitude, &p.Speed, &p.Course)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track point: %w", err)
	}
	return &p, nil
}
