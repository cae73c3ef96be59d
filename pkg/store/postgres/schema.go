// Package postgres provides the PostgreSQL-backed implementation of the
// Lernobot store interfaces (conversation state, provider registry, mode
// overrides, teacher notifications).
//
// All views share a single [pgxpool.Pool]. [Migrate] installs the schema via
// CREATE TABLE IF NOT EXISTS and is safe to run on every startup.
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//
//	state, _ := st.Conversations().Get(ctx, sessionID)
//	recs, _ := st.Providers().List(ctx)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlConversationStates = `
CREATE TABLE IF NOT EXISTS conversation_states (
    session_id            BIGINT       PRIMARY KEY,
    failed_strategies     JSONB        NOT NULL DEFAULT '[]',
    comprehension_history JSONB        NOT NULL DEFAULT '[]',
    last_comprehension    TEXT         NOT NULL DEFAULT 'initial',
    current_strategy      TEXT         NOT NULL DEFAULT '',
    current_instruction   TEXT         NOT NULL DEFAULT '',
    attempt_count         INTEGER      NOT NULL DEFAULT 0,
    created_at            TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at            TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlProviderRecords = `
CREATE TABLE IF NOT EXISTS provider_records (
    name                 TEXT         PRIMARY KEY,
    kind                 TEXT         NOT NULL,
    encrypted_credential BYTEA,
    active               BOOLEAN      NOT NULL DEFAULT FALSE,
    deactivated          BOOLEAN      NOT NULL DEFAULT FALSE,
    model                TEXT         NOT NULL DEFAULT '',
    config               JSONB        NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlModeOverrides = `
CREATE TABLE IF NOT EXISTS mode_overrides (
    id            BIGSERIAL    PRIMARY KEY,
    mode          TEXT         NOT NULL,
    system_prompt TEXT         NOT NULL DEFAULT '',
    temperature   DOUBLE PRECISION NOT NULL DEFAULT 0,
    max_tokens    INTEGER      NOT NULL DEFAULT 0,
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mode_overrides_mode_updated
    ON mode_overrides (mode, updated_at DESC);
`

const ddlTeacherNotifications = `
CREATE TABLE IF NOT EXISTS teacher_notifications (
    id            TEXT         PRIMARY KEY,
    session_id    BIGINT       NOT NULL,
    attempt_count INTEGER      NOT NULL,
    strategy      TEXT         NOT NULL DEFAULT '',
    instruction   TEXT         NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (session_id, attempt_count)
);
`

// Migrate creates all required tables. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{
		ddlConversationStates,
		ddlProviderRecords,
		ddlModeOverrides,
		ddlTeacherNotifications,
	} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres store: migrate: %w", err)
		}
	}
	return nil
}
