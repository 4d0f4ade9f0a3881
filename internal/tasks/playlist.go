package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
)

// PlaylistName is the catalog name of a venue playlist.
func PlaylistName(venueName string) string {
	return "Upcoming | " + venueName
}

// PlaylistDescription is the catalog description of a venue playlist.
func PlaylistDescription(venueName string) string {
	return fmt.Sprintf("Upcoming shows at %s - Updated weekly", venueName)
}

// PlaylistSynchronizer owns the one playlist per venue and rewrites its contents.
type PlaylistSynchronizer struct {
	catalog services.Service
	venues  VenueStore
	ownerID string
	public  bool
	logger  *log.Logger
}

// NewPlaylistSynchronizer creates a synchronizer. An empty ownerID creates playlists for the authenticated user.
func NewPlaylistSynchronizer(catalog services.Service, venues VenueStore, ownerID string, public bool, logger *log.Logger) *PlaylistSynchronizer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistSynchronizer{
		catalog: catalog,
		venues:  venues,
		ownerID: ownerID,
		public:  public,
		logger:  shared.WithLogger(logger, "component", "playlists"),
	}
}

// EnsurePlaylist returns the venue's playlist id, creating and recording a new playlist when the stored one is
// missing or cannot be fetched.
func (p *PlaylistSynchronizer) EnsurePlaylist(ctx context.Context, venueName, venueID string) (string, error) {
	venue, err := p.venues.Get(ctx, venueID)
	if err != nil {
		return "", err
	}

	if venue.PlaylistID != "" {
		_, err := p.catalog.GetPlaylist(ctx, venue.PlaylistID)
		if err == nil {
			return venue.PlaylistID, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.logger.Warn("stored playlist unavailable, creating a new one", "venue", venueID, "playlist", venue.PlaylistID, "err", err)
	}

	playlist, err := p.catalog.CreatePlaylist(ctx, p.ownerID, PlaylistName(venueName), PlaylistDescription(venueName), p.public)
	if err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	if err := p.venues.SetPlaylistID(ctx, venueID, playlist.ID); err != nil {
		return "", fmt.Errorf("failed to record playlist id: %w", err)
	}

	p.logger.Info("playlist created", "venue", venueID, "playlist", playlist.ID)
	return playlist.ID, nil
}

// ReplaceTracks overwrites the playlist with uris in order.
//
// The first chunk of [services.MaxTracksPerRequest] replaces the playlist and later chunks are appended. An empty
// list clears the playlist.
func (p *PlaylistSynchronizer) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	first := uris
	if len(first) > services.MaxTracksPerRequest {
		first = uris[:services.MaxTracksPerRequest]
	}
	if first == nil {
		first = []string{}
	}

	if err := p.catalog.ReplacePlaylistTracks(ctx, playlistID, first); err != nil {
		return fmt.Errorf("failed to replace tracks: %w", err)
	}

	for start := services.MaxTracksPerRequest; start < len(uris); start += services.MaxTracksPerRequest {
		end := min(start+services.MaxTracksPerRequest, len(uris))
		if err := p.catalog.AppendPlaylistTracks(ctx, playlistID, uris[start:end]); err != nil {
			return fmt.Errorf("failed to append tracks %d-%d: %w", start, end, err)
		}
	}
	return nil
}
