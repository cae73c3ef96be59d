package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/lernobot/lernobot/pkg/types"
)

// Compile-time interface checks.
//
// ConversationStore and ProviderStore both define a method named Get with
// different signatures, so a single struct cannot satisfy both. As in the
// postgres implementation, each interface is exposed as a sub-view sharing
// the parent's data and lock.
var (
	_ ConversationStore = (*MemConversations)(nil)
	_ ProviderStore     = (*MemProviders)(nil)
	_ OverrideStore     = (*MemOverrides)(nil)
	_ NotificationSink  = (*MemNotifications)(nil)
)

// MemStore is a thread-safe in-memory implementation of every store
// interface in this package, suitable for tests and for single-process runs
// without a database.
type MemStore struct {
	mu            sync.RWMutex
	conversations map[int64]ConversationState
	providers     map[string]ProviderRecord
	overrides     map[types.Mode][]ModeOverride
	notifications map[notifKey]TeacherNotification
}

type notifKey struct {
	sessionID    int64
	attemptCount int
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		conversations: make(map[int64]ConversationState),
		providers:     make(map[string]ProviderRecord),
		overrides:     make(map[types.Mode][]ModeOverride),
		notifications: make(map[notifKey]TeacherNotification),
	}
}

// Conversations returns the [ConversationStore] view.
func (s *MemStore) Conversations() *MemConversations { return &MemConversations{s: s} }

// Providers returns the [ProviderStore] view.
func (s *MemStore) Providers() *MemProviders { return &MemProviders{s: s} }

// Overrides returns the [OverrideStore] view.
func (s *MemStore) Overrides() *MemOverrides { return &MemOverrides{s: s} }

// Notifications returns the [NotificationSink] view.
func (s *MemStore) Notifications() *MemNotifications { return &MemNotifications{s: s} }

// MemConversations implements [ConversationStore] over a [MemStore].
type MemConversations struct{ s *MemStore }

// Get implements [ConversationStore.Get].
func (m *MemConversations) Get(ctx context.Context, sessionID int64) (ConversationState, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	st, ok := m.s.conversations[sessionID]
	if !ok {
		return ConversationState{}, ErrNotFound
	}
	return cloneState(st), nil
}

// Upsert implements [ConversationStore.Upsert].
func (m *MemConversations) Upsert(ctx context.Context, state ConversationState) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.conversations[state.SessionID] = cloneState(state)
	return nil
}

// Delete implements [ConversationStore.Delete].
func (m *MemConversations) Delete(ctx context.Context, sessionID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	delete(m.s.conversations, sessionID)
	return nil
}

// MemProviders implements [ProviderStore] over a [MemStore].
type MemProviders struct{ s *MemStore }

// Get implements [ProviderStore.Get].
func (m *MemProviders) Get(ctx context.Context, name string) (ProviderRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	rec, ok := m.s.providers[name]
	if !ok {
		return ProviderRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Upsert implements [ProviderStore.Upsert].
func (m *MemProviders) Upsert(ctx context.Context, rec ProviderRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if existing, ok := m.s.providers[rec.Name]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = time.Now().UTC()
	m.s.providers[rec.Name] = cloneRecord(rec)
	return nil
}

// List implements [ProviderStore.List].
func (m *MemProviders) List(ctx context.Context) ([]ProviderRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	recs := make([]ProviderRecord, 0, len(m.s.providers))
	for _, rec := range m.s.providers {
		recs = append(recs, cloneRecord(rec))
	}
	slices.SortFunc(recs, func(a, b ProviderRecord) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return recs, nil
}

// MemOverrides implements [OverrideStore] over a [MemStore].
type MemOverrides struct{ s *MemStore }

// Latest implements [OverrideStore.Latest].
func (m *MemOverrides) Latest(ctx context.Context, mode types.Mode) (ModeOverride, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	rows := m.s.overrides[mode]
	if len(rows) == 0 {
		return ModeOverride{}, ErrNotFound
	}
	latest := rows[0]
	for _, o := range rows[1:] {
		if o.UpdatedAt.After(latest.UpdatedAt) {
			latest = o
		}
	}
	return latest, nil
}

// Put implements [OverrideStore.Put].
func (m *MemOverrides) Put(ctx context.Context, o ModeOverride) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	o.UpdatedAt = time.Now().UTC()
	m.s.overrides[o.Mode] = append(m.s.overrides[o.Mode], o)
	return nil
}

// MemNotifications implements [NotificationSink] over a [MemStore].
type MemNotifications struct{ s *MemStore }

// Emit implements [NotificationSink.Emit].
func (m *MemNotifications) Emit(ctx context.Context, n TeacherNotification) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	key := notifKey{sessionID: n.SessionID, attemptCount: n.AttemptCount}
	if _, ok := m.s.notifications[key]; ok {
		return nil
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.s.notifications[key] = n
	return nil
}

// Exists implements [NotificationSink.Exists].
func (m *MemNotifications) Exists(ctx context.Context, sessionID int64, attemptCount int) (bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	_, ok := m.s.notifications[notifKey{sessionID: sessionID, attemptCount: attemptCount}]
	return ok, nil
}

func cloneState(st ConversationState) ConversationState {
	st.FailedStrategies = slices.Clone(st.FailedStrategies)
	st.ComprehensionHistory = slices.Clone(st.ComprehensionHistory)
	return st
}

func cloneRecord(rec ProviderRecord) ProviderRecord {
	rec.EncryptedCredential = slices.Clone(rec.EncryptedCredential)
	if rec.Config != nil {
		cfg := make(map[string]string, len(rec.Config))
		for k, v := range rec.Config {
			cfg[k] = v
		}
		rec.Config = cfg
	}
	return rec
}
