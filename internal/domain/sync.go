package domain

import "time"

// Stats holds the cumulative counters persisted alongside the posted-item
// history.
type Stats struct {
	Total         int `json:"total"`
	Failed        int `json:"failed"`
	MediaUploaded int `json:"mediaUploaded"`
}

// SyncState is the durable state document. PostedItems is ordered
// most-recent-first and capped at the configured history size.
type SyncState struct {
	PostedItems []string   `json:"postedItems"`
	LastSync    *time.Time `json:"lastSync"`
	Stats       Stats      `json:"stats"`
}

// SyncReport summarizes one tick.
type SyncReport struct {
	Fetched     int // items across all feeds that responded
	FeedErrors  int // feeds that failed to fetch this tick
	Candidates  int // items remaining after the max-per-check window
	Posted      int // newly posted this tick
	Skipped     int // already in the posted history
	Errors      int // items that failed to post this tick
	TotalPosts  int // cumulative, from the state store
	TotalFailed int // cumulative, from the state store
	Duration    time.Duration
}
