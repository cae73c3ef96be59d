// Package store defines the durable state the mediation engine depends on:
// per-session conversation records, the provider registry rows, per-mode
// prompt overrides, and the teacher-notification sink.
//
// Two implementations exist: [MemStore] for tests and single-process runs,
// and the postgres subpackage for production.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lernobot/lernobot/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ConversationState is the per-session mediation record. Exactly one exists
// per session id. It is mutated only by the engine during a turn, under the
// session's lock.
type ConversationState struct {
	SessionID int64

	// FailedStrategies is the insertion-ordered set of strategies already
	// attempted without success. Never contains teacher_escalation.
	FailedStrategies []types.Strategy

	// ComprehensionHistory is the ordered list of classifier labels, one per
	// recorded turn.
	ComprehensionHistory []types.ComprehensionLabel

	// LastComprehension is the final element of ComprehensionHistory, or
	// initial when the history is empty.
	LastComprehension types.ComprehensionLabel

	// CurrentStrategy is the most recently attempted strategy; empty before
	// the first recorded turn.
	CurrentStrategy types.Strategy

	// CurrentInstruction is the task instruction this state tracks. A change
	// of instruction resets the record.
	CurrentInstruction string

	// AttemptCount equals len(ComprehensionHistory) after every turn.
	AttemptCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversationState returns the initial record for a session.
func NewConversationState(sessionID int64, now time.Time) ConversationState {
	return ConversationState{
		SessionID:         sessionID,
		LastComprehension: types.ComprehensionInitial,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ProviderRecord is one row of the durable provider registry.
type ProviderRecord struct {
	// Name is the stable provider key, e.g. "openai" or "google-gemini-1.5-pro".
	Name string

	// Kind tags the adapter family.
	Kind types.ProviderKind

	// EncryptedCredential is the at-rest credential; nil for local providers
	// and for removed providers.
	EncryptedCredential []byte

	// Active reports whether the credential is currently usable.
	Active bool

	// Deactivated is the administrator-set tombstone. A deactivated record
	// is never initialized and shadows any bootstrap configuration.
	Deactivated bool

	// Model is the backend model identifier, where the key is model-specific.
	Model string

	// Config holds provider-specific settings (temperature bounds etc.).
	Config map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModeOverride tunes all generation calls made in one session mode.
type ModeOverride struct {
	Mode         types.Mode
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	UpdatedAt    time.Time
}

// TeacherNotification is an escalation record emitted when a learner stays
// inactive after a struggling turn.
type TeacherNotification struct {
	// ID is a caller-assigned unique identifier.
	ID string

	SessionID int64

	// AttemptCount is the session attempt counter at the time the watchdog
	// was armed. Together with SessionID it deduplicates re-emission.
	AttemptCount int

	// Strategy is the last strategy attempted before the learner went quiet.
	Strategy types.Strategy

	Instruction string
	CreatedAt   time.Time
}

// ConversationStore persists per-session conversation state.
type ConversationStore interface {
	// Get returns the state for sessionID or [ErrNotFound].
	Get(ctx context.Context, sessionID int64) (ConversationState, error)

	// Upsert writes state, creating the row when absent.
	Upsert(ctx context.Context, state ConversationState) error

	// Delete removes the state for sessionID. Deleting an absent row is not
	// an error.
	Delete(ctx context.Context, sessionID int64) error
}

// ProviderStore persists provider registry rows.
type ProviderStore interface {
	// Get returns the record for name or [ErrNotFound].
	Get(ctx context.Context, name string) (ProviderRecord, error)

	// Upsert writes rec, creating the row when absent.
	Upsert(ctx context.Context, rec ProviderRecord) error

	// List returns all records, ordered by name.
	List(ctx context.Context) ([]ProviderRecord, error)
}

// OverrideStore persists per-mode prompt overrides.
type OverrideStore interface {
	// Latest returns the most recently updated override for mode, or
	// [ErrNotFound] when none is configured.
	Latest(ctx context.Context, mode types.Mode) (ModeOverride, error)

	// Put stores an override for n.Mode with UpdatedAt set by the store.
	Put(ctx context.Context, o ModeOverride) error
}

// NotificationSink receives teacher-escalation notifications. Emission must
// be idempotent per (SessionID, AttemptCount) so that watchdog re-checks
// cannot duplicate alerts.
type NotificationSink interface {
	// Emit stores n. Emitting an already-present (SessionID, AttemptCount)
	// pair is a no-op.
	Emit(ctx context.Context, n TeacherNotification) error

	// Exists reports whether a notification for (sessionID, attemptCount)
	// has already been emitted.
	Exists(ctx context.Context, sessionID int64, attemptCount int) (bool, error)
}
