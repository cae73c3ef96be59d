package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// Overrides is the mode-override view of the store. Obtain one via
// [Store.Overrides] rather than constructing directly.
type Overrides struct {
	pool *pgxpool.Pool
}

// Latest implements [store.OverrideStore]. Most-recent-by-update wins.
func (o *Overrides) Latest(ctx context.Context, mode types.Mode) (store.ModeOverride, error) {
	const q = `
		SELECT mode, system_prompt, temperature, max_tokens, updated_at
		FROM   mode_overrides
		WHERE  mode = $1
		ORDER  BY updated_at DESC
		LIMIT  1`

	var ov store.ModeOverride
	err := o.pool.QueryRow(ctx, q, mode).Scan(
		&ov.Mode,
		&ov.SystemPrompt,
		&ov.Temperature,
		&ov.MaxTokens,
		&ov.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ModeOverride{}, store.ErrNotFound
	}
	if err != nil {
		return store.ModeOverride{}, fmt.Errorf("override store: latest: %w", err)
	}
	return ov, nil
}

// Put implements [store.OverrideStore].
func (o *Overrides) Put(ctx context.Context, ov store.ModeOverride) error {
	const q = `
		INSERT INTO mode_overrides (mode, system_prompt, temperature, max_tokens, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := o.pool.Exec(ctx, q,
		ov.Mode,
		ov.SystemPrompt,
		ov.Temperature,
		ov.MaxTokens,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("override store: put: %w", err)
	}
	return nil
}
