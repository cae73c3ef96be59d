package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lernobot/lernobot/pkg/store"
)

// Providers is the provider-registry view of the store. Obtain one via
// [Store.Providers] rather than constructing directly.
type Providers struct {
	pool *pgxpool.Pool
}

// Get implements [store.ProviderStore].
func (p *Providers) Get(ctx context.Context, name string) (store.ProviderRecord, error) {
	const q = `
		SELECT name, kind, encrypted_credential, active, deactivated,
		       model, config, created_at, updated_at
		FROM   provider_records
		WHERE  name = $1`

	rec, err := scanRecord(p.pool.QueryRow(ctx, q, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ProviderRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ProviderRecord{}, fmt.Errorf("provider store: get: %w", err)
	}
	return rec, nil
}

// Upsert implements [store.ProviderStore]. Removal never deletes a row; the
// tombstone flags on the record keep bootstrap precedence working across
// restarts.
func (p *Providers) Upsert(ctx context.Context, rec store.ProviderRecord) error {
	cfg := rec.Config
	if cfg == nil {
		cfg = map[string]string{}
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("provider store: encode config: %w", err)
	}

	now := time.Now().UTC()
	const q = `
		INSERT INTO provider_records
		    (name, kind, encrypted_credential, active, deactivated, model, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (name) DO UPDATE SET
		    kind                 = EXCLUDED.kind,
		    encrypted_credential = EXCLUDED.encrypted_credential,
		    active               = EXCLUDED.active,
		    deactivated          = EXCLUDED.deactivated,
		    model                = EXCLUDED.model,
		    config               = EXCLUDED.config,
		    updated_at           = EXCLUDED.updated_at`

	_, err = p.pool.Exec(ctx, q,
		rec.Name,
		rec.Kind,
		rec.EncryptedCredential,
		rec.Active,
		rec.Deactivated,
		rec.Model,
		cfgJSON,
		now,
	)
	if err != nil {
		return fmt.Errorf("provider store: upsert: %w", err)
	}
	return nil
}

// List implements [store.ProviderStore].
func (p *Providers) List(ctx context.Context) ([]store.ProviderRecord, error) {
	const q = `
		SELECT name, kind, encrypted_credential, active, deactivated,
		       model, config, created_at, updated_at
		FROM   provider_records
		ORDER  BY name`

	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("provider store: list: %w", err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ProviderRecord, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("provider store: scan rows: %w", err)
	}
	if recs == nil {
		recs = []store.ProviderRecord{}
	}
	return recs, nil
}

// scanRecord scans one provider row.
func scanRecord(row pgx.Row) (store.ProviderRecord, error) {
	var (
		rec     store.ProviderRecord
		cfgJSON []byte
	)
	if err := row.Scan(
		&rec.Name,
		&rec.Kind,
		&rec.EncryptedCredential,
		&rec.Active,
		&rec.Deactivated,
		&rec.Model,
		&cfgJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return store.ProviderRecord{}, err
	}
	if len(cfgJSON) > 0 {
		if err := json.Unmarshal(cfgJSON, &rec.Config); err != nil {
			return store.ProviderRecord{}, fmt.Errorf("decode config: %w", err)
		}
	}
	return rec, nil
}
