package models

import (
	"fmt"
	"time"
)

// SyncState is the furthest stage a venue sync reached.
type SyncState int

const (
	StatePending SyncState = iota
	StateScraped
	StateReconciled
	StateResolved
	StateSynced
	StatePersisted
	StateFailed
)

func (s SyncState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateScraped:
		return "scraped"
	case StateReconciled:
		return "reconciled"
	case StateResolved:
		return "resolved"
	case StateSynced:
		return "synced"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	default:
		return ""
	}
}

func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SyncState) UnmarshalText(text []byte) error {
	for st := StatePending; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown sync state %q", string(text))
}

// Trigger names what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerVenue    Trigger = "venue"
)

// SyncResult is the outcome of syncing one venue.
type SyncResult struct {
	VenueID   string    `json:"venue_id"`
	VenueName string    `json:"venue_name"`
	Success   bool      `json:"success"`
	State     SyncState `json:"state"`

	// FailedAt is the last state reached before failing.
	FailedAt SyncState `json:"failed_at,omitempty"`
	Reason   string    `json:"reason,omitempty"`

	// ArtistsFound counts scraped names. TracksAdded counts unique track uris: a track shared by two
	// artists is written once.
	ArtistsFound    int `json:"artists_found"`
	ArtistsResolved int `json:"artists_resolved"`
	ArtistsMissed   int `json:"artists_missed"`
	ArtistsRemoved  int `json:"artists_removed"`
	TracksAdded     int `json:"tracks_added"`

	// FoundArtists and MissedArtists partition the scraped names by whether they resolved.
	FoundArtists   []string `json:"found_artists,omitempty"`
	MissedArtists  []string `json:"missed_artists,omitempty"`
	RemovedArtists []string `json:"removed_artists,omitempty"`
	AddedArtists   []string `json:"added_artists,omitempty"`

	PlaylistID string        `json:"playlist_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Advance moves the result to the next state.
func (r *SyncResult) Advance(s SyncState) {
	r.State = s
}

// Fail marks the result failed, keeping the state reached so far.
func (r *SyncResult) Fail(reason string) {
	r.FailedAt = r.State
	r.State = StateFailed
	r.Success = false
	r.Reason = reason
}

// RunSummary aggregates one run over one or more venues.
type RunSummary struct {
	ID         string        `json:"id"`
	Trigger    Trigger       `json:"trigger"`
	VenueID    string        `json:"venue_id,omitempty"`
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Results    []SyncResult  `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// Add appends a venue result and updates the counters.
func (s *RunSummary) Add(r SyncResult) {
	s.Results = append(s.Results, r)
	s.Total++
	if r.Success {
		s.Successful++
	} else {
		s.Failed++
	}
}

// Finish stamps the end time and duration.
func (s *RunSummary) Finish(now time.Time) {
	s.FinishedAt = now
	s.Duration = now.Sub(s.StartedAt)
}
