package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lernobot/lernobot/pkg/store"
)

// Compile-time interface checks.
//
// ConversationStore and ProviderStore both define Get with different
// signatures, so they are exposed as sub-views of a shared pool.
var (
	_ store.ConversationStore = (*Conversations)(nil)
	_ store.ProviderStore     = (*Providers)(nil)
	_ store.OverrideStore     = (*Overrides)(nil)
	_ store.NotificationSink  = (*Notifications)(nil)
)

// Store is the central PostgreSQL-backed store. All operations are safe for
// concurrent use.
type Store struct {
	pool          *pgxpool.Pool
	conversations *Conversations
	providers     *Providers
	overrides     *Overrides
	notifications *Notifications
}

// New creates a Store, establishes a connection pool to the database at dsn,
// and runs [Migrate] to ensure all required tables exist.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		pool:          pool,
		conversations: &Conversations{pool: pool},
		providers:     &Providers{pool: pool},
		overrides:     &Overrides{pool: pool},
		notifications: &Notifications{pool: pool},
	}, nil
}

// Conversations returns the [store.ConversationStore] view.
func (s *Store) Conversations() *Conversations { return s.conversations }

// Providers returns the [store.ProviderStore] view.
func (s *Store) Providers() *Providers { return s.providers }

// Overrides returns the [store.OverrideStore] view.
func (s *Store) Overrides() *Overrides { return s.overrides }

// Notifications returns the [store.NotificationSink] view.
func (s *Store) Notifications() *Notifications { return s.notifications }

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
