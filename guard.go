package compactor

import (
	"sync"
	"time"
)

// Guard holds the per-session mutable state that throttles compaction. It is
// created once per session and lives for the session; none of it is ever
// persisted. All mutation happens from inside the single active attempt,
// except NoteMessages which the host calls as turns accumulate.
type Guard struct {
	mu sync.Mutex

	inProgress            bool
	promptActive          bool
	messagesSinceCompress int
	lastCompressionAt     time.Time
	lastFailure           bool
	relaxations           int
	compactions           int
}

// GuardSnapshot is an immutable view of the guard counters, taken under lock
// so the trigger evaluator can stay a pure function.
type GuardSnapshot struct {
	InProgress            bool
	MessagesSinceCompress int
	LastCompressionAt     time.Time
	LastFailure           bool
	Relaxations           int
	Compactions           int
}

// NewGuard creates a fresh guard for a session.
func NewGuard() *Guard {
	return &Guard{}
}

// Snapshot returns a consistent copy of the guard counters.
func (g *Guard) Snapshot() GuardSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GuardSnapshot{
		InProgress:            g.inProgress,
		MessagesSinceCompress: g.messagesSinceCompress,
		LastCompressionAt:     g.lastCompressionAt,
		LastFailure:           g.lastFailure,
		Relaxations:           g.relaxations,
		Compactions:           g.compactions,
	}
}

// BeginAttempt marks a compaction attempt as in progress. It returns false if
// another attempt already holds the flag; the caller must then back off with
// a no-op rather than queue.
func (g *Guard) BeginAttempt() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inProgress {
		return false
	}
	g.inProgress = true
	return true
}

// EndAttempt clears the in-progress and prompt-active flags. Safe to call
// from every exit path, including after errors.
func (g *Guard) EndAttempt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inProgress = false
	g.promptActive = false
}

// BeginPrompt marks the interactive prompt as active for the duration of the
// user's selection.
func (g *Guard) BeginPrompt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.promptActive = true
}

// EndPrompt clears the prompt-active flag.
func (g *Guard) EndPrompt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.promptActive = false
}

// PromptActive reports whether the interactive prompt is currently showing.
func (g *Guard) PromptActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.promptActive
}

// NoteMessages records n new conversation messages since the last compaction.
func (g *Guard) NoteMessages(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messagesSinceCompress += n
}

// MarkSuccess records a successful compaction: the message counter resets,
// the timestamp advances, and any sticky failure clears.
func (g *Guard) MarkSuccess(at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messagesSinceCompress = 0
	g.lastCompressionAt = at
	g.lastFailure = false
	g.compactions++
}

// MarkFailure sets the sticky failure flag so repeated non-forced attempts do
// not immediately retry a losing summarization.
func (g *Guard) MarkFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFailure = true
}

// ClearFailure clears the sticky failure flag. Called when a forced attempt
// explicitly retries.
func (g *Guard) ClearFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFailure = false
}

// NoteRelaxation counts a "less frequent" adjustment.
func (g *Guard) NoteRelaxation() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.relaxations++
}

// Reset clears all transient flags. Called on session teardown so a restart
// is not poisoned by stale state.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inProgress = false
	g.promptActive = false
}
