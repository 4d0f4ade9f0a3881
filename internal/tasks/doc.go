// Package tasks keeps one playlist per venue in step with the venue's upcoming lineup.
//
// # Pipeline
//
// [SyncEngine.SyncVenue] moves a venue through these states, stopping at the first failure:
//
//  1. Scraped: the venue calendar is read through a [scraper.Scraper]
//     - An empty lineup fails the venue with "no artists found"
//
//  2. Reconciled: [Reconciler] diffs the lineup against the one recorded last run
//     - Names are compared with the fuzzy [matching.NamesMatch] predicate
//     - Cached artists nobody books anymore are evicted once past the retention window
//
//  3. Resolved: [ArtistResolver] maps each name to catalog tracks, one artist at a time
//     - Fresh cache entries skip the catalog entirely
//     - Multi-act bills ("A & B") fall back to a composite of the acts that resolve
//     - Artists that cannot be resolved are reported as missed
//
//  4. Synced: [PlaylistSynchronizer] ensures the venue playlist and overwrites its tracks
//
//  5. Persisted: the venue's last scrape time is written
//
// [SyncEngine.SyncAll] runs every configured venue in order and always returns a [models.RunSummary]; one venue
// failing (or panicking) never stops the rest.
//
// # Scheduling
//
// [Scheduler] fires the weekly run from a cron expression and serializes it with manual triggers. A trigger that
// arrives while a run is in flight fails with [shared.ErrAlreadyRunning]; a scheduled fire is skipped instead.
//
// # Progress Reporting
//
// Runs accept an optional channel of [ProgressUpdate]. Sends never block: updates are dropped when the channel is full.
package tasks
