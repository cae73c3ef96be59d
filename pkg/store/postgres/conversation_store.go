package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// Conversations is the conversation-state view of the store. Obtain one via
// [Store.Conversations] rather than constructing directly.
type Conversations struct {
	pool *pgxpool.Pool
}

// Get implements [store.ConversationStore].
func (c *Conversations) Get(ctx context.Context, sessionID int64) (store.ConversationState, error) {
	const q = `
		SELECT session_id, failed_strategies, comprehension_history,
		       last_comprehension, current_strategy, current_instruction,
		       attempt_count, created_at, updated_at
		FROM   conversation_states
		WHERE  session_id = $1`

	row := c.pool.QueryRow(ctx, q, sessionID)

	var (
		st          store.ConversationState
		failedJSON  []byte
		historyJSON []byte
	)
	err := row.Scan(
		&st.SessionID,
		&failedJSON,
		&historyJSON,
		&st.LastComprehension,
		&st.CurrentStrategy,
		&st.CurrentInstruction,
		&st.AttemptCount,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ConversationState{}, store.ErrNotFound
	}
	if err != nil {
		return store.ConversationState{}, fmt.Errorf("conversation store: get: %w", err)
	}

	if err := json.Unmarshal(failedJSON, &st.FailedStrategies); err != nil {
		return store.ConversationState{}, fmt.Errorf("conversation store: decode failed strategies: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &st.ComprehensionHistory); err != nil {
		return store.ConversationState{}, fmt.Errorf("conversation store: decode comprehension history: %w", err)
	}
	return st, nil
}

// Upsert implements [store.ConversationStore]. The JSON columns preserve
// insertion order for failed strategies and history.
func (c *Conversations) Upsert(ctx context.Context, st store.ConversationState) error {
	failedJSON, err := json.Marshal(orEmptyStrategies(st.FailedStrategies))
	if err != nil {
		return fmt.Errorf("conversation store: encode failed strategies: %w", err)
	}
	historyJSON, err := json.Marshal(orEmptyLabels(st.ComprehensionHistory))
	if err != nil {
		return fmt.Errorf("conversation store: encode comprehension history: %w", err)
	}

	const q = `
		INSERT INTO conversation_states
		    (session_id, failed_strategies, comprehension_history, last_comprehension,
		     current_strategy, current_instruction, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
		    failed_strategies     = EXCLUDED.failed_strategies,
		    comprehension_history = EXCLUDED.comprehension_history,
		    last_comprehension    = EXCLUDED.last_comprehension,
		    current_strategy      = EXCLUDED.current_strategy,
		    current_instruction   = EXCLUDED.current_instruction,
		    attempt_count         = EXCLUDED.attempt_count,
		    updated_at            = EXCLUDED.updated_at`

	_, err = c.pool.Exec(ctx, q,
		st.SessionID,
		failedJSON,
		historyJSON,
		st.LastComprehension,
		st.CurrentStrategy,
		st.CurrentInstruction,
		st.AttemptCount,
		st.CreatedAt,
		st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("conversation store: upsert: %w", err)
	}
	return nil
}

// Delete implements [store.ConversationStore].
func (c *Conversations) Delete(ctx context.Context, sessionID int64) error {
	const q = `DELETE FROM conversation_states WHERE session_id = $1`
	if _, err := c.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("conversation store: delete: %w", err)
	}
	return nil
}

// orEmptyStrategies keeps nil slices out of the JSON columns so they encode
// as [] rather than null.
func orEmptyStrategies(s []types.Strategy) []types.Strategy {
	if s == nil {
		return []types.Strategy{}
	}
	return s
}

func orEmptyLabels(s []types.ComprehensionLabel) []types.ComprehensionLabel {
	if s == nil {
		return []types.ComprehensionLabel{}
	}
	return s
}
