// Package registry owns the truth about model providers: which exist, whether
// they are usable, their credentials, and the live adapter instances the
// engine dispatches to.
//
// The durable provider store is authoritative. Bootstrap configuration is
// consulted only for provider keys with no registry record (first-time
// setup); a record with a usable credential shadows config, and a tombstoned
// record both shadows config and clears the key from the in-memory config
// snapshot so it cannot leak through other paths.
//
// Every mutating operation commits to the store before the in-memory map is
// updated. Removal never deletes a row — the tombstone is what keeps
// precedence working across restarts.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lernobot/lernobot/internal/config"
	"github.com/lernobot/lernobot/internal/resilience"
	"github.com/lernobot/lernobot/internal/secrets"
	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/provider/model/gemini"
	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// ErrUnavailable is returned by [Registry.Resolve] when no usable provider
// instance exists.
var ErrUnavailable = errors.New("registry: no usable provider")

// Factory constructs a live adapter instance for a registry record.
// credential is the decrypted plaintext, empty for local providers.
type Factory func(ctx context.Context, rec store.ProviderRecord, credential string) (model.Provider, error)

// ProviderView is the read-only listing shape for admin surfaces.
type ProviderView struct {
	Name           string
	Kind           types.ProviderKind
	Model          string
	Active         bool
	Deactivated    bool
	Default        bool
	SupportsVision bool
}

// Registry manages provider records and live instances. All exported methods
// are safe for concurrent use: mutating operations take the write lock,
// lookup and listing take the read lock.
type Registry struct {
	records store.ProviderStore
	cipher  secrets.Cipher
	factory Factory

	// preferredDefault is the operator-configured default provider name;
	// it wins the default election whenever its instance is live.
	preferredDefault string

	mu          sync.RWMutex
	providers   map[string]model.Provider
	breakers    map[string]*resilience.CircuitBreaker
	defaultName string
}

// Option configures a Registry.
type Option func(*Registry)

// WithFactory overrides the adapter factory. Tests use this to install fake
// instances.
func WithFactory(f Factory) Option {
	return func(r *Registry) { r.factory = f }
}

// WithPreferredDefault sets the operator-configured default provider name.
func WithPreferredDefault(name string) Option {
	return func(r *Registry) { r.preferredDefault = name }
}

// New creates a Registry over the given record store and credential cipher.
func New(records store.ProviderStore, cipher secrets.Cipher, opts ...Option) *Registry {
	r := &Registry{
		records:   records,
		cipher:    cipher,
		factory:   defaultFactory,
		providers: make(map[string]model.Provider),
		breakers:  make(map[string]*resilience.CircuitBreaker),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// StartupLoad reads all registry records, decrypts credentials, and
// constructs live instances. Deactivated records and records without a
// credential (other than local ones) are skipped. Records whose credential
// fails to decrypt are logged and skipped, not fatal. Idempotent.
func (r *Registry) StartupLoad(ctx context.Context) error {
	recs, err := r.records.List(ctx)
	if err != nil {
		return fmt.Errorf("registry: startup load: %w", err)
	}

	type built struct {
		name string
		prov model.Provider
	}

	var (
		buildMu sync.Mutex
		results []built
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range recs {
		if rec.Deactivated {
			continue
		}

		var credential string
		if rec.Kind != types.KindLocal {
			if len(rec.EncryptedCredential) == 0 {
				continue
			}
			plain, err := r.cipher.Decrypt(rec.EncryptedCredential)
			if err != nil {
				slog.Error("skipping provider: credential decrypt failed",
					"provider", rec.Name, "err", err)
				continue
			}
			credential = string(plain)
		}

		g.Go(func() error {
			prov, err := r.factory(gctx, rec, credential)
			if err != nil {
				slog.Error("skipping provider: construction failed",
					"provider", rec.Name, "err", err)
				return nil
			}
			buildMu.Lock()
			results = append(results, built{name: rec.Name, prov: prov})
			buildMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("registry: startup load: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range results {
		r.install(b.name, b.prov)
	}
	r.electDefaultLocked()
	slog.Info("provider registry loaded", "providers", len(r.providers), "default", r.defaultName)
	return nil
}

// BootstrapFromConfig seeds providers from bootstrap config for keys absent
// from the registry. For keys the registry already knows, config is ignored;
// when the record is tombstoned or credential-less, the key is also cleared
// from cfg so it cannot be re-read elsewhere.
func (r *Registry) BootstrapFromConfig(ctx context.Context, cfg *config.ProvidersConfig) error {
	entries := []struct {
		key       string
		credRef   *string
		modelName string
	}{
		{"openai", &cfg.OpenAIKey, orDefault(cfg.OpenAIModel, defaultModels["openai"])},
		{"anthropic", &cfg.AnthropicKey, orDefault(cfg.AnthropicModel, defaultModels["anthropic"])},
		{"cohere", &cfg.CohereKey, orDefault(cfg.CohereModel, defaultModels["cohere"])},
	}

	for _, e := range entries {
		if *e.credRef == "" {
			continue
		}
		blocked, err := r.bootstrapOne(ctx, e.key, kindFor(e.key), e.modelName, *e.credRef)
		if err != nil {
			return err
		}
		if blocked {
			*e.credRef = ""
		}
	}

	// The Google key fans out to one record per family model.
	if cfg.GoogleKey != "" {
		anyBlocked := false
		for _, m := range gemini.FamilyModels {
			blocked, err := r.bootstrapOne(ctx, gemini.KeyFor(m), types.KindMultimodalRemote, m, cfg.GoogleKey)
			if err != nil {
				return err
			}
			anyBlocked = anyBlocked || blocked
		}
		if anyBlocked {
			cfg.GoogleKey = ""
		}
	}

	r.mu.Lock()
	r.electDefaultLocked()
	r.mu.Unlock()
	return nil
}

// bootstrapOne applies the precedence rules for a single provider key.
// Reports whether the config key must be cleared from the snapshot.
func (r *Registry) bootstrapOne(ctx context.Context, name string, kind types.ProviderKind, modelName, credential string) (blocked bool, err error) {
	rec, err := r.records.Get(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// First-time setup: the registry takes ownership of the key.
		return false, r.addOne(ctx, name, kind, modelName, credential)

	case err != nil:
		return false, fmt.Errorf("registry: bootstrap %s: %w", name, err)

	case rec.Deactivated || len(rec.EncryptedCredential) == 0:
		// Tombstoned or cleared: config must not resurrect it.
		slog.Info("ignoring bootstrap credential for removed provider", "provider", name)
		return true, nil

	default:
		// Usable registry record shadows config.
		return false, nil
	}
}

// AddCredential encrypts and persists a credential for name and initialises
// the live instance(s). The name "google" fans out to every family member.
func (r *Registry) AddCredential(ctx context.Context, name, plaintext string) error {
	if plaintext == "" {
		return fmt.Errorf("registry: add credential %s: empty credential", name)
	}

	if name == "google" {
		for _, m := range gemini.FamilyModels {
			if err := r.addOne(ctx, gemini.KeyFor(m), types.KindMultimodalRemote, m, plaintext); err != nil {
				return err
			}
		}
	} else {
		if err := r.addOne(ctx, name, kindFor(name), defaultModels[name], plaintext); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.electDefaultLocked()
	r.mu.Unlock()
	return nil
}

// addOne persists one record and installs its instance.
func (r *Registry) addOne(ctx context.Context, name string, kind types.ProviderKind, modelName, credential string) error {
	encrypted, err := r.cipher.Encrypt([]byte(credential))
	if err != nil {
		return fmt.Errorf("registry: encrypt credential for %s: %w", name, err)
	}

	rec := store.ProviderRecord{
		Name:                name,
		Kind:                kind,
		EncryptedCredential: encrypted,
		Active:              true,
		Deactivated:         false,
		Model:               modelName,
	}
	if err := r.records.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("registry: persist %s: %w", name, err)
	}

	prov, err := r.factory(ctx, rec, credential)
	if err != nil {
		// The committed row stays; the instance becomes live on the next
		// successful startup load.
		return fmt.Errorf("registry: construct %s: %w", name, err)
	}

	r.mu.Lock()
	r.install(name, prov)
	r.mu.Unlock()
	return nil
}

// RemoveCredential clears the credential for name, tombstones the row, and
// drops the live instance(s). The row is retained so bootstrap precedence
// keeps behaving correctly on subsequent restarts. The name "google" fans
// out to every family member.
func (r *Registry) RemoveCredential(ctx context.Context, name string) error {
	names := []string{name}
	if name == "google" {
		names = names[:0]
		for _, m := range gemini.FamilyModels {
			names = append(names, gemini.KeyFor(m))
		}
	}

	for _, n := range names {
		rec, err := r.records.Get(ctx, n)
		if errors.Is(err, store.ErrNotFound) {
			rec = store.ProviderRecord{Name: n, Kind: kindFor(n)}
		} else if err != nil {
			return fmt.Errorf("registry: remove %s: %w", n, err)
		}

		rec.EncryptedCredential = nil
		rec.Active = false
		rec.Deactivated = true
		if err := r.records.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("registry: remove %s: %w", n, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		delete(r.providers, n)
		delete(r.breakers, n)
	}
	r.electDefaultLocked()
	return nil
}

// SetDeactivated flips the administrator tombstone for name. Deactivating
// drops the live instance; reactivating takes effect on the next startup
// load (the credential is not kept in memory).
func (r *Registry) SetDeactivated(ctx context.Context, name string, flag bool) error {
	rec, err := r.records.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("registry: deactivate %s: %w", name, err)
	}
	rec.Deactivated = flag
	if flag {
		rec.Active = false
	} else {
		rec.Active = len(rec.EncryptedCredential) > 0 || rec.Kind == types.KindLocal
	}
	if err := r.records.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("registry: deactivate %s: %w", name, err)
	}

	if flag {
		r.mu.Lock()
		delete(r.providers, name)
		delete(r.breakers, name)
		r.electDefaultLocked()
		r.mu.Unlock()
	}
	return nil
}

// RegisterLocal creates active local records for discovered model names and
// installs their instances. Tombstoned local records stay dead.
func (r *Registry) RegisterLocal(ctx context.Context, keys []string, modelFor func(key string) string) error {
	for _, key := range keys {
		rec, err := r.records.Get(ctx, key)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("registry: register local %s: %w", key, err)
		}
		if err == nil && rec.Deactivated {
			continue
		}

		rec = store.ProviderRecord{
			Name:   key,
			Kind:   types.KindLocal,
			Active: true,
			Model:  modelFor(key),
		}
		if err := r.records.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("registry: register local %s: %w", key, err)
		}

		prov, err := r.factory(ctx, rec, "")
		if err != nil {
			slog.Error("skipping local provider: construction failed", "provider", key, "err", err)
			continue
		}
		r.mu.Lock()
		r.install(key, prov)
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.electDefaultLocked()
	r.mu.Unlock()
	return nil
}

// List returns a view of every registry record, including tombstoned ones.
func (r *Registry) List(ctx context.Context) ([]ProviderView, error) {
	recs, err := r.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]ProviderView, 0, len(recs))
	for _, rec := range recs {
		v := ProviderView{
			Name:        rec.Name,
			Kind:        rec.Kind,
			Model:       rec.Model,
			Active:      rec.Active,
			Deactivated: rec.Deactivated,
			Default:     rec.Name == r.defaultName,
		}
		if prov, ok := r.providers[rec.Name]; ok {
			v.SupportsVision = prov.Info().SupportsVision
		}
		views = append(views, v)
	}
	return views, nil
}

// ListActive returns the views of non-deactivated providers only.
func (r *Registry) ListActive(ctx context.Context) ([]ProviderView, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, v := range all {
		if !v.Deactivated {
			active = append(active, v)
		}
	}
	return active, nil
}

// Resolve returns the provider instance for dispatch: the preferred one when
// it is live and its breaker admits calls, otherwise the default, otherwise
// any live instance with a willing breaker. Returns [ErrUnavailable] when
// nothing qualifies.
func (r *Registry) Resolve(preferred string) (model.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if preferred != "" {
		if prov, ok := r.providers[preferred]; ok && r.breakers[preferred].Allows() {
			return prov, nil
		}
		slog.Debug("preferred provider unavailable, falling back to default", "preferred", preferred)
	}

	if r.defaultName != "" {
		if prov, ok := r.providers[r.defaultName]; ok && r.breakers[r.defaultName].Allows() {
			return prov, nil
		}
	}

	for name, prov := range r.providers {
		if r.breakers[name].Allows() {
			return prov, nil
		}
	}
	return nil, ErrUnavailable
}

// ResolveVision returns a vision-capable provider, preferring the named one.
// Returns [ErrUnavailable] when no live instance supports vision.
func (r *Registry) ResolveVision(preferred string) (model.VisionProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if preferred != "" {
		if prov, ok := r.providers[preferred]; ok && r.breakers[preferred].Allows() {
			if vp, ok := prov.(model.VisionProvider); ok && prov.Info().SupportsVision {
				return vp, nil
			}
		}
	}

	for name, prov := range r.providers {
		if !r.breakers[name].Allows() {
			continue
		}
		if vp, ok := prov.(model.VisionProvider); ok && prov.Info().SupportsVision {
			return vp, nil
		}
	}
	return nil, ErrUnavailable
}

// Do runs fn under the circuit breaker of the named provider. Unknown names
// run fn directly.
func (r *Registry) Do(name string, fn func() error) error {
	r.mu.RLock()
	cb := r.breakers[name]
	r.mu.RUnlock()

	if cb == nil {
		return fn()
	}
	return cb.Execute(fn)
}

// DefaultName returns the current default provider key, or empty when none.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// install puts a provider and a fresh breaker into the live map. Caller
// holds the write lock.
func (r *Registry) install(name string, prov model.Provider) {
	r.providers[name] = prov
	if _, ok := r.breakers[name]; !ok {
		r.breakers[name] = resilience.New(resilience.Config{Name: name})
	}
}

// electDefaultLocked picks the dispatch default: the operator-preferred name
// when live, otherwise the lexicographically first live instance for
// determinism, otherwise empty. Caller holds the write lock.
func (r *Registry) electDefaultLocked() {
	if r.preferredDefault != "" {
		if _, ok := r.providers[r.preferredDefault]; ok {
			r.defaultName = r.preferredDefault
			return
		}
	}
	if _, ok := r.providers[r.defaultName]; ok && r.defaultName != "" {
		return
	}

	r.defaultName = ""
	for name := range r.providers {
		if r.defaultName == "" || name < r.defaultName {
			r.defaultName = name
		}
	}
}

// orDefault returns v when non-empty, else def.
func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
