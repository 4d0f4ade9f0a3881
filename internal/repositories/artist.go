package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/desertthunder/upcoming/internal/models"
)

const artistColumns = `name_key, name, catalog_id, track_uris, popularity, is_composite, constituents, resolved_at`

// ArtistRepository is the resolved artist cache, keyed by normalized name.
type ArtistRepository struct {
	db *sql.DB
}

// NewArtistRepository creates a new ArtistRepository with the given database connection
func NewArtistRepository(db *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Get retrieves a cached artist by normalized key, fresh or not.
func (r *ArtistRepository) Get(ctx context.Context, key string) (*models.ResolvedArtist, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE name_key = ?`, key)
	artist, err := r.scan(row)
	if err != nil {
		return nil, notFound(err, "artist", key)
	}
	return artist, nil
}

// Save validates and upserts an artist. Records without tracks are rejected.
func (r *ArtistRepository) Save(ctx context.Context, artist *models.ResolvedArtist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tracks, err := json.Marshal(artist.TrackURIs)
	if err != nil {
		return fmt.Errorf("failed to encode tracks: %w", err)
	}
	constituents := artist.Constituents
	if constituents == nil {
		constituents = []string{}
	}
	members, err := json.Marshal(constituents)
	if err != nil {
		return fmt.Errorf("failed to encode constituents: %w", err)
	}

	query := `
		INSERT INTO artists (` + artistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET
			name = excluded.name,
			catalog_id = excluded.catalog_id,
			track_uris = excluded.track_uris,
			popularity = excluded.popularity,
			is_composite = excluded.is_composite,
			constituents = excluded.constituents,
			resolved_at = excluded.resolved_at
	`

	_, err = r.db.ExecContext(ctx, query,
		artist.Key,
		artist.Name,
		artist.CatalogID,
		string(tracks),
		artist.Popularity,
		artist.IsComposite,
		string(members),
		artist.ResolvedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save artist: %w", err)
	}

	return nil
}

// Delete removes an artist from the cache.
func (r *ArtistRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM artists WHERE name_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	return requireRow(result, "artist", key)
}

// List retrieves cached artists, most recently resolved first. A limit of zero or less returns all.
func (r *ArtistRepository) List(ctx context.Context, limit int) ([]*models.ResolvedArtist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists ORDER BY resolved_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// ListResolvedBefore retrieves artists resolved before cutoff, oldest first.
func (r *ArtistRepository) ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]*models.ResolvedArtist, error) {
	return r.query(ctx, `SELECT `+artistColumns+` FROM artists WHERE resolved_at < ? ORDER BY resolved_at ASC`, cutoff.UTC())
}

// Count returns the number of cached artists.
func (r *ArtistRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count artists: %w", err)
	}
	return n, nil
}

func (r *ArtistRepository) query(ctx context.Context, query string, args ...any) ([]*models.ResolvedArtist, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.ResolvedArtist
	for rows.Next() {
		artist, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return artists, nil
}

func (r *ArtistRepository) scan(row scanner) (*models.ResolvedArtist, error) {
	var (
		artist       models.ResolvedArtist
		tracks       string
		constituents string
	)

	err := row.Scan(
		&artist.Key, &artist.Name, &artist.CatalogID, &tracks, &artist.Popularity,
		&artist.IsComposite, &constituents, &artist.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tracks), &artist.TrackURIs); err != nil {
		return nil, fmt.Errorf("failed to decode tracks: %w", err)
	}
	if err := json.Unmarshal([]byte(constituents), &artist.Constituents); err != nil {
		return nil, fmt.Errorf("failed to decode constituents: %w", err)
	}
	if len(artist.Constituents) == 0 {
		artist.Constituents = nil
	}

	return &artist, nil
}
