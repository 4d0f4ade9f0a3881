// Package repositories implements SQLite persistence for the sync service.
//
// Key Implementations:
//   - [VenueRepository] : venues with their playlist id and the lineup recorded at the last reconciliation
//   - [ArtistRepository] : the resolved artist cache keyed by normalized name
//   - [CredentialRepository] : one OAuth token per catalog service
//   - [RunRepository] : sync run history with per-venue results
//
// List columns are stored as JSON text. A venue lineup stored as NULL means no lineup has been
// recorded, which is distinct from an empty lineup.
package repositories
