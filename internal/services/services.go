package services

import (
	"context"

	"github.com/desertthunder/upcoming/internal/matching"
)

// Service defines the catalog operations the sync engine needs: artist lookup and playlist writes.
type Service interface {
	// SearchArtists returns artist candidates for query in the catalog's ranking order.
	SearchArtists(ctx context.Context, query string, limit int) ([]matching.Candidate, error)

	// TopTracks returns track URIs for an artist, most popular first.
	TopTracks(ctx context.Context, artistID, market string) ([]string, error)

	// CurrentUserID returns the id of the authenticated account.
	CurrentUserID(ctx context.Context) (string, error)

	// CreatePlaylist creates a playlist owned by ownerID, or by the current user when ownerID is empty.
	CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (*Playlist, error)

	// GetPlaylist retrieves a playlist by ID. Missing playlists return [shared.ErrNotFound].
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)

	// ReplacePlaylistTracks overwrites the playlist with at most [MaxTracksPerRequest] URIs.
	ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// AppendPlaylistTracks appends at most [MaxTracksPerRequest] URIs.
	AppendPlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// MaxTracksPerRequest is the most URIs one playlist write may carry.
const MaxTracksPerRequest = 100

// Playlist represents a catalog playlist
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}
