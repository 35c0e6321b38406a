package domain

// ProgressFunc reports playback progress in seconds.
// Called on every media time update; callers decide what to persist
type ProgressFunc func(currentTime, duration float64)

// SyncResult summarizes what happened during a catalog sync
type SyncResult struct {
	FromCache bool // true if the stored snapshot was fresh (no network fetch)
	Count     int  // films after sync
}
