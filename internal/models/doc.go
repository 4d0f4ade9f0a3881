// Package models defines the records shared by the sync engine, storage and HTTP layers.
//
// Persisted records:
//   - [VenueLineup] : a venue, its playlist id and the lineup recorded at its last sync
//   - [ResolvedArtist] : a cached catalog match, keyed by normalized artist name
//   - [Credential] : the catalog OAuth token
//
// Run records:
//   - [ScrapeResult] : artists and shows scraped from a venue calendar
//   - [SyncResult] : per-venue outcome with the [SyncState] reached
//   - [RunSummary] : aggregate of a run over the configured venues
//
// A [ResolvedArtist] without tracks fails [ResolvedArtist.Validate] and is never stored.
package models
