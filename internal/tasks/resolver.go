package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/upcoming/internal/matching"
	"github.com/desertthunder/upcoming/internal/metrics"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
)

// CompositePrefix marks synthetic catalog ids of composite artists.
const CompositePrefix = "composite:"

// ArtistStore is the resolved artist cache. [repositories.ArtistRepository] implements it.
type ArtistStore interface {
	Get(ctx context.Context, key string) (*models.ResolvedArtist, error)
	Save(ctx context.Context, artist *models.ResolvedArtist) error
	Delete(ctx context.Context, key string) error
}

// ResolverOptions tunes catalog lookups. Zero values select the defaults.
type ResolverOptions struct {
	SearchLimit  int           // candidates requested per search
	TopTracks    int           // tracks kept per artist
	CompositeCap int           // tracks kept per composite artist
	Market       string        // top tracks market
	Freshness    time.Duration // cache entries younger than this are served without lookups
	Delay        time.Duration // minimum spacing between catalog lookups
	Logger       *log.Logger
}

func (o *ResolverOptions) defaults() {
	if o.SearchLimit <= 0 {
		o.SearchLimit = 10
	}
	if o.TopTracks <= 0 {
		o.TopTracks = 3
	}
	if o.CompositeCap <= 0 {
		o.CompositeCap = 6
	}
	if o.Freshness <= 0 {
		o.Freshness = 7 * 24 * time.Hour
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
}

// ArtistResolver maps raw lineup names to catalog artists, consulting the cache first.
type ArtistResolver struct {
	catalog services.Service
	store   ArtistStore
	limiter *rate.Limiter
	opts    ResolverOptions
	logger  *log.Logger
	now     func() time.Time
}

// NewArtistResolver creates a resolver. Catalog lookups are paced by opts.Delay; cache hits are not.
func NewArtistResolver(catalog services.Service, store ArtistStore, opts ResolverOptions) *ArtistResolver {
	opts.defaults()

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &ArtistResolver{
		catalog: catalog,
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "resolver"),
		now:     time.Now,
	}
}

// Resolve returns the catalog artist for raw.
//
// A fresh cache entry is returned as is. Otherwise the whole name is searched; when that misses, the name is split
// into its billed acts and each act is resolved on its own, producing a composite artist from the acts that
// resolved. [shared.ErrNotFound] means the artist is not in the catalog. Other errors come from the catalog.
func (r *ArtistResolver) Resolve(ctx context.Context, raw string) (*models.ResolvedArtist, error) {
	key := matching.Normalize(raw)
	if key == "" {
		return nil, fmt.Errorf("%w: %q has no comparable name", shared.ErrNotFound, raw)
	}

	if cached := r.cached(ctx, key); cached != nil {
		metrics.RecordArtistLookup("cache")
		return cached, nil
	}

	artist, err := r.lookup(ctx, raw, key)
	if err == nil {
		metrics.RecordArtistLookup("catalog")
		return artist, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	parts := matching.Split(raw)
	if len(parts) < 2 {
		metrics.RecordArtistLookup("miss")
		return nil, err
	}

	composite, err := r.resolveParts(ctx, raw, key, parts)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			metrics.RecordArtistLookup("miss")
		}
		return nil, err
	}

	metrics.RecordArtistLookup("composite")
	return composite, nil
}

// resolveParts resolves each billed act under its own key and combines the hits.
func (r *ArtistResolver) resolveParts(ctx context.Context, raw, key string, parts []string) (*models.ResolvedArtist, error) {
	var (
		resolved []*models.ResolvedArtist
		firstErr error
	)

	for _, part := range parts {
		name := matching.CleanSingle(part)
		partKey := matching.Normalize(name)
		if partKey == "" {
			continue
		}

		if cached := r.cached(ctx, partKey); cached != nil {
			resolved = append(resolved, cached)
			continue
		}

		artist, err := r.lookup(ctx, name, partKey)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) && firstErr == nil {
				firstErr = err
			}
			r.logger.Debug("billed act not resolved", "artist", raw, "part", name, "err", err)
			continue
		}
		resolved = append(resolved, artist)
	}

	if len(resolved) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("%w: no catalog match for %q or its billed acts", shared.ErrNotFound, raw)
	}

	composite := r.composite(raw, key, resolved)
	r.save(ctx, composite)
	return composite, nil
}

// composite combines resolved acts in billing order.
func (r *ArtistResolver) composite(raw, key string, parts []*models.ResolvedArtist) *models.ResolvedArtist {
	ids := make([]string, 0, len(parts))
	names := make([]string, 0, len(parts))
	seen := make(map[string]bool)
	var (
		tracks     []string
		popularity int
	)

	for _, p := range parts {
		ids = append(ids, p.CatalogID)
		names = append(names, p.Name)
		popularity = max(popularity, p.Popularity)

		for _, uri := range p.TrackURIs {
			if len(tracks) >= r.opts.CompositeCap {
				break
			}
			if !seen[uri] {
				seen[uri] = true
				tracks = append(tracks, uri)
			}
		}
	}

	return &models.ResolvedArtist{
		Key:          key,
		Name:         raw,
		CatalogID:    CompositePrefix + shared.DeterministicID(ids...),
		TrackURIs:    tracks,
		Popularity:   popularity,
		IsComposite:  true,
		Constituents: names,
		ResolvedAt:   r.now(),
	}
}

// lookup searches the catalog for query and fetches the matched artist's top tracks.
func (r *ArtistResolver) lookup(ctx context.Context, query, key string) (*models.ResolvedArtist, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	candidates, err := r.catalog.SearchArtists(ctx, query, r.opts.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	match, ok := matching.BestMatch(query, candidates)
	if !ok {
		return nil, fmt.Errorf("%w: no catalog match for %q", shared.ErrNotFound, query)
	}

	tracks, err := r.catalog.TopTracks(ctx, match.ID, r.opts.Market)
	if err != nil {
		return nil, fmt.Errorf("top tracks for %q: %w", match.Name, err)
	}
	if len(tracks) > r.opts.TopTracks {
		tracks = tracks[:r.opts.TopTracks]
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %q has no tracks", shared.ErrNotFound, match.Name)
	}

	r.logger.Debug("matched artist", "query", query, "artist", match.Name, "tier", match.Tier)
	artist := &models.ResolvedArtist{
		Key:        key,
		Name:       match.Name,
		CatalogID:  match.ID,
		TrackURIs:  tracks,
		Popularity: match.Popularity,
		ResolvedAt: r.now(),
	}
	r.save(ctx, artist)
	return artist, nil
}

// cached returns the fresh cache entry for key, or nil.
func (r *ArtistResolver) cached(ctx context.Context, key string) *models.ResolvedArtist {
	artist, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("artist cache read failed", "key", key, "err", err)
		}
		return nil
	}
	if !artist.Fresh(r.now(), r.opts.Freshness) {
		return nil
	}
	return artist
}

// save writes artist to the cache. A failed write only costs a future lookup.
func (r *ArtistResolver) save(ctx context.Context, artist *models.ResolvedArtist) {
	if err := r.store.Save(ctx, artist); err != nil {
		r.logger.Warn("failed to cache artist", "artist", artist.Name, "err", err)
	}
}
