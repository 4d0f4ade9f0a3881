package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/shared"
)

const venueColumns = `id, name, scrape_url, playlist_id, previous_lineup, last_scraped_at, created_at, updated_at`

// VenueRepository stores [models.VenueLineup] records.
type VenueRepository struct {
	db *sql.DB
}

// NewVenueRepository creates a new VenueRepository with the given database connection
func NewVenueRepository(db *sql.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// Ensure returns the stored venue for cfg, creating it on first sight and refreshing its name and URL otherwise.
func (r *VenueRepository) Ensure(ctx context.Context, cfg shared.VenueConfig) (*models.VenueLineup, error) {
	venue := models.NewVenueLineup(cfg)
	if err := venue.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO venues (id, name, scrape_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			scrape_url = excluded.scrape_url,
			updated_at = CASE
				WHEN venues.name != excluded.name OR venues.scrape_url != excluded.scrape_url THEN excluded.updated_at
				ELSE venues.updated_at
			END
	`
	if _, err := r.db.ExecContext(ctx, query, venue.ID, venue.Name, venue.ScrapeURL, venue.CreatedAt, venue.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert venue: %w", err)
	}

	return r.Get(ctx, cfg.ID)
}

// Get retrieves a venue by id.
func (r *VenueRepository) Get(ctx context.Context, id string) (*models.VenueLineup, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, id)
	venue, err := r.scan(row)
	if err != nil {
		return nil, notFound(err, "venue", id)
	}
	return venue, nil
}

// List retrieves every stored venue ordered by id.
func (r *VenueRepository) List(ctx context.Context) ([]*models.VenueLineup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	var venues []*models.VenueLineup
	for rows.Next() {
		venue, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, venue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return venues, nil
}

// SetPlaylistID records the playlist a venue syncs into.
func (r *VenueRepository) SetPlaylistID(ctx context.Context, id, playlistID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE venues SET playlist_id = ?, updated_at = ? WHERE id = ?`,
		playlistID, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist id: %w", err)
	}
	return requireRow(result, "venue", id)
}

// SetPreviousLineup overwrites the recorded lineup. A nil lineup clears it, so the next run is a first run.
func (r *VenueRepository) SetPreviousLineup(ctx context.Context, id string, lineup []string) error {
	encoded, err := encodeList(lineup)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE venues SET previous_lineup = ?, updated_at = ? WHERE id = ?`,
		encoded, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update previous lineup: %w", err)
	}
	return requireRow(result, "venue", id)
}

// MarkScraped records when the venue last completed a sync.
func (r *VenueRepository) MarkScraped(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE venues SET last_scraped_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark venue scraped: %w", err)
	}
	return requireRow(result, "venue", id)
}

func (r *VenueRepository) scan(row scanner) (*models.VenueLineup, error) {
	var (
		venue         models.VenueLineup
		lineup        sql.NullString
		lastScrapedAt sql.NullTime
	)

	err := row.Scan(
		&venue.ID, &venue.Name, &venue.ScrapeURL, &venue.PlaylistID,
		&lineup, &lastScrapedAt, &venue.CreatedAt, &venue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if venue.PreviousLineup, err = decodeList(lineup); err != nil {
		return nil, err
	}
	venue.LastScrapedAt = timePtr(lastScrapedAt)

	return &venue, nil
}
