package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/desertthunder/upcoming/internal/models"
)

const runColumns = `id, trigger_source, venue_id, total, successful, failed, results, started_at, finished_at`

// RunRepository keeps the history of sync runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save inserts or replaces a run summary.
func (r *RunRepository) Save(ctx context.Context, run *models.RunSummary) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}

	results := run.Results
	if results == nil {
		results = []models.SyncResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Trigger),
		run.VenueID,
		run.Total,
		run.Successful,
		run.Failed,
		string(data),
		run.StartedAt,
		nullTime(&run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// Get retrieves a run by id.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.RunSummary, error) {
	run, err := r.scan(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "run", id)
	}
	return run, nil
}

// List retrieves the most recent runs first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunSummary
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scan(row scanner) (*models.RunSummary, error) {
	var (
		run        models.RunSummary
		trigger    string
		results    string
		finishedAt sql.NullTime
	)

	err := row.Scan(&run.ID, &trigger, &run.VenueID, &run.Total, &run.Successful, &run.Failed, &results, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Trigger = models.Trigger(trigger)
	if err := json.Unmarshal([]byte(results), &run.Results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
		run.Duration = run.FinishedAt.Sub(run.StartedAt)
	}

	return &run, nil
}
