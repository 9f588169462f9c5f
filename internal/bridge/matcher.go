package bridge

import "time"

// Candidate is the matcher's view of a live request that has no correlation
// key yet. Candidates are presented in admission order, oldest first.
type Candidate struct {
	ID        string
	Model     string
	CreatedAt time.Time
}

// Matcher decides which pending request a worker's first event (meta) belongs
// to. The worker reports its own run id without ever learning ours, so the
// binding is a heuristic. Injecting a Matcher keeps that heuristic visible
// and lets tests substitute a deterministic one.
type Matcher interface {
	// Match returns the id of the chosen candidate, or "" for no match.
	Match(rid string, candidates []Candidate) string
}

// RecencyMatcher picks the most recently admitted unmatched request. This
// mirrors the worker's behavior of reporting meta shortly after picking up a
// task, but it has no tie-break beyond recency: with several requests queued
// at once it can misattribute events. Known limitation of the protocol.
type RecencyMatcher struct{}

// Match returns the newest candidate.
func (RecencyMatcher) Match(_ string, candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[len(candidates)-1].ID
}
