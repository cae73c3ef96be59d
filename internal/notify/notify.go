// Package notify emits teacher notifications for struggling learners who go
// quiet after an escalation-bound turn.
//
// The engine schedules a watchdog after every turn that leaves the session in
// a struggling state. If the learner sends nothing before the inactivity
// window elapses, a notification is written to the sink exactly once per
// (session, attempt count) pair; any activity in the window reschedules or
// cancels the check.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// DefaultInactivityWindow is how long a struggling learner may stay quiet
// before the teacher is notified.
const DefaultInactivityWindow = 5 * time.Minute

// Watchdog schedules per-session inactivity checks. Safe for concurrent use.
type Watchdog struct {
	sink   store.NotificationSink
	states store.ConversationStore
	window time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
}

// New creates a Watchdog over the given stores. A non-positive window selects
// [DefaultInactivityWindow].
func New(sink store.NotificationSink, states store.ConversationStore, window time.Duration) *Watchdog {
	if window <= 0 {
		window = DefaultInactivityWindow
	}
	return &Watchdog{
		sink:   sink,
		states: states,
		window: window,
		timers: make(map[int64]*time.Timer),
	}
}

// Window returns the configured inactivity window.
func (w *Watchdog) Window() time.Duration {
	return w.window
}

// Schedule arms (or re-arms) the inactivity check for a session. attemptCount
// and strategy capture the session state at scheduling time; the check fires
// only if the attempt count is still unchanged when the window elapses.
func (w *Watchdog) Schedule(sessionID int64, attemptCount int, strategy types.Strategy, instruction string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if t, ok := w.timers[sessionID]; ok {
		t.Stop()
	}
	w.timers[sessionID] = time.AfterFunc(w.window, func() {
		w.fire(sessionID, attemptCount, strategy, instruction)
	})
}

// Cancel disarms any pending check for a session. Called when the session
// ends or recovers.
func (w *Watchdog) Cancel(sessionID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[sessionID]; ok {
		t.Stop()
		delete(w.timers, sessionID)
	}
}

// Close disarms all pending checks. Further Schedule calls are no-ops.
func (w *Watchdog) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

// fire runs the inactivity check once the window has elapsed.
func (w *Watchdog) fire(sessionID int64, attemptCount int, strategy types.Strategy, instruction string) {
	w.mu.Lock()
	delete(w.timers, sessionID)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state, err := w.states.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		// Session ended while the timer was pending.
		return
	}
	if err != nil {
		slog.Error("inactivity check: load session state", "session_id", sessionID, "err", err)
		return
	}
	if state.AttemptCount != attemptCount {
		// Learner was active after scheduling; a fresher timer owns them now.
		return
	}

	// The sink dedupes on (session, attempt count), so a crashed-and-replayed
	// timer cannot double-notify.
	exists, err := w.sink.Exists(ctx, sessionID, attemptCount)
	if err != nil {
		slog.Error("inactivity check: dedup lookup", "session_id", sessionID, "err", err)
		return
	}
	if exists {
		return
	}

	n := store.TeacherNotification{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		AttemptCount: attemptCount,
		Strategy:     strategy,
		Instruction:  instruction,
		CreatedAt:    time.Now().UTC(),
	}
	if err := w.sink.Emit(ctx, n); err != nil {
		slog.Error("inactivity check: emit notification", "session_id", sessionID, "err", err)
		return
	}
	slog.Info("teacher notified of inactive struggling learner",
		"session_id", sessionID, "attempt_count", attemptCount, "strategy", strategy)
}
