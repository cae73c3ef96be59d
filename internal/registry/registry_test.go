package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lernobot/lernobot/internal/config"
	"github.com/lernobot/lernobot/internal/secrets"
	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/provider/model/gemini"
	"github.com/lernobot/lernobot/pkg/provider/model/mock"
	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// fakeFactory records construction calls and hands out mock providers without
// touching any SDK.
type fakeFactory struct {
	mu    sync.Mutex
	built map[string]string // name → credential used
	fail  map[string]bool
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{built: make(map[string]string), fail: make(map[string]bool)}
}

func (f *fakeFactory) factory(_ context.Context, rec store.ProviderRecord, credential string) (model.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[rec.Name] {
		return nil, fmt.Errorf("construction failed for %s", rec.Name)
	}
	f.built[rec.Name] = credential
	return &mock.Provider{
		Name:   rec.Name,
		Kind:   rec.Kind,
		Model:  rec.Model,
		Vision: rec.Kind == types.KindMultimodalRemote,
	}, nil
}

func (f *fakeFactory) credentialUsed(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.built[name]
	return cred, ok
}

func newTestRegistry(t *testing.T, records store.ProviderStore, opts ...Option) (*Registry, *fakeFactory) {
	t.Helper()
	f := newFakeFactory()
	opts = append([]Option{WithFactory(f.factory)}, opts...)
	return New(records, secrets.Plaintext{}, opts...), f
}

// ─── credential lifecycle ───

func TestAddCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records := store.NewMemStore().Providers()
	reg, f := newTestRegistry(t, records)

	if err := reg.AddCredential(ctx, "openai", "K1"); err != nil {
		t.Fatalf("AddCredential: %v", err)
	}

	if cred, ok := f.credentialUsed("openai"); !ok || cred != "K1" {
		t.Errorf("factory credential = %q, %v; want K1", cred, ok)
	}
	rec, err := records.Get(ctx, "openai")
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if !rec.Active || rec.Deactivated {
		t.Errorf("record flags = active=%t deactivated=%t", rec.Active, rec.Deactivated)
	}
	if string(rec.EncryptedCredential) != "K1" {
		t.Errorf("stored credential = %q (plaintext cipher)", rec.EncryptedCredential)
	}
	if reg.DefaultName() != "openai" {
		t.Errorf("default = %q, want openai", reg.DefaultName())
	}
}

func TestAddCredential_GoogleFamilyFanOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records := store.NewMemStore().Providers()
	reg, f := newTestRegistry(t, records)

	if err := reg.AddCredential(ctx, "google", "G1"); err != nil {
		t.Fatalf("AddCredential: %v", err)
	}

	for _, m := range gemini.FamilyModels {
		key := gemini.KeyFor(m)
		if _, ok := f.credentialUsed(key); !ok {
			t.Errorf("family member %s not constructed", key)
		}
		rec, err := records.Get(ctx, key)
		if err != nil {
			t.Errorf("family member %s not persisted: %v", key, err)
			continue
		}
		if rec.Kind != types.KindMultimodalRemote || rec.Model != m {
			t.Errorf("member %s: kind=%s model=%s", key, rec.Kind, rec.Model)
		}
	}
}

func TestAddCredential_Empty(t *testing.T) {
	t.Parallel()
	reg, _ := newTestRegistry(t, store.NewMemStore().Providers())
	if err := reg.AddCredential(context.Background(), "openai", ""); err == nil {
		t.Error("empty credential accepted")
	}
}

func TestRemoveCredential_TombstonesAndSurvivesRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore().Providers()

	reg, _ := newTestRegistry(t, mem)
	if err := reg.AddCredential(ctx, "openai", "K1"); err != nil {
		t.Fatalf("AddCredential: %v", err)
	}
	if err := reg.RemoveCredential(ctx, "openai"); err != nil {
		t.Fatalf("RemoveCredential: %v", err)
	}

	if _, err := reg.Resolve("openai"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Resolve after removal = %v, want ErrUnavailable", err)
	}

	rec, err := mem.Get(ctx, "openai")
	if err != nil {
		t.Fatalf("row deleted, want tombstone: %v", err)
	}
	if !rec.Deactivated || rec.Active || rec.EncryptedCredential != nil {
		t.Errorf("tombstone = %+v", rec)
	}

	// Simulated restart: fresh registry over the same store, startup load,
	// then bootstrap with the old key present in config. The tombstone must
	// shadow the config and the key must be cleared from the snapshot.
	reg2, f2 := newTestRegistry(t, mem)
	if err := reg2.StartupLoad(ctx); err != nil {
		t.Fatalf("StartupLoad: %v", err)
	}
	cfg := config.ProvidersConfig{OpenAIKey: "K1"}
	if err := reg2.BootstrapFromConfig(ctx, &cfg); err != nil {
		t.Fatalf("BootstrapFromConfig: %v", err)
	}

	if _, ok := f2.credentialUsed("openai"); ok {
		t.Error("removed provider was re-initialized from config")
	}
	if cfg.OpenAIKey != "" {
		t.Error("config key was not cleared for the removed provider")
	}
}

func TestRemoveCredential_GoogleFanOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore().Providers()
	reg, _ := newTestRegistry(t, mem)

	if err := reg.AddCredential(ctx, "google", "G1"); err != nil {
		t.Fatalf("AddCredential: %v", err)
	}
	if err := reg.RemoveCredential(ctx, "google"); err != nil {
		t.Fatalf("RemoveCredential: %v", err)
	}

	for _, m := range gemini.FamilyModels {
		rec, err := mem.Get(ctx, gemini.KeyFor(m))
		if err != nil {
			t.Fatalf("member row missing: %v", err)
		}
		if !rec.Deactivated || rec.EncryptedCredential != nil {
			t.Errorf("member %s not tombstoned: %+v", rec.Name, rec)
		}
	}
	if _, err := reg.ResolveVision(""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ResolveVision = %v, want ErrUnavailable", err)
	}
}

// ─── startup load ───

func TestStartupLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore().Providers()

	seed := []store.ProviderRecord{
		{Name: "openai", Kind: types.KindTextRemote, EncryptedCredential: []byte("K1"), Active: true, Model: "gpt-4o-mini"},
		{Name: "anthropic", Kind: types.KindTextRemote, EncryptedCredential: []byte("K2"), Active: true},
		{Name: "cohere", Kind: types.KindTextRemote, Deactivated: true, Model: "command-r"},
		{Name: "removed", Kind: types.KindTextRemote, Active: false}, // credential cleared
		{Name: "ollama-llama3", Kind: types.KindLocal, Active: true, Model: "llama3"},
	}
	for _, rec := range seed {
		if err := mem.Upsert(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	reg, f := newTestRegistry(t, mem)
	if err := reg.StartupLoad(ctx); err != nil {
		t.Fatalf("StartupLoad: %v", err)
	}

	for _, want := range []string{"openai", "anthropic", "ollama-llama3"} {
		if _, err := reg.Resolve(want); err != nil {
			t.Errorf("Resolve(%s) after load: %v", want, err)
		}
	}
	if _, ok := f.credentialUsed("cohere"); ok {
		t.Error("deactivated record was constructed")
	}
	if _, ok := f.credentialUsed("removed"); ok {
		t.Error("credential-less record was constructed")
	}
	if cred, _ := f.credentialUsed("openai"); cred != "K1" {
		t.Errorf("decrypted credential = %q, want K1", cred)
	}
}

func TestStartupLoad_ConstructionFailureIsSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore().Providers()
	_ = mem.Upsert(ctx, store.ProviderRecord{
		Name: "openai", Kind: types.KindTextRemote,
		EncryptedCredential: []byte("K1"), Active: true,
	})
	_ = mem.Upsert(ctx, store.ProviderRecord{
		Name: "anthropic", Kind: types.KindTextRemote,
		EncryptedCredential: []byte("K2"), Active: true,
	})

	f := newFakeFactory()
	f.fail["openai"] = true
	reg := New(mem, secrets.Plaintext{}, WithFactory(f.factory))

	if err := reg.StartupLoad(ctx); err != nil {
		t.Fatalf("StartupLoad: %v", err)
	}
	if _, err := reg.Resolve("anthropic"); err != nil {
		t.Errorf("healthy provider not loaded: %v", err)
	}
	prov, err := reg.Resolve("openai")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if prov.Info().Name == "openai" {
		t.Error("failed construction still produced an instance")
	}
}

// ─── bootstrap precedence ───

func TestBootstrapFromConfig_InitializesAbsentProviders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore().Providers()
	reg, f := newTestRegistry(t, mem)

	cfg := config.ProvidersConfig{
		OpenAIKey:    "K1",
		CohereKey:    "K2",
		GoogleKey:    "G1",
		OpenAIModel:  "gpt-4.1",
		AnthropicKey: "",
	}
	if err := reg.BootstrapFromConfig(ctx, &cfg); err != nil {
		t.Fatalf("BootstrapFromConfig: %v", err)
	}

	if cred, _ := f.credentialUsed("openai"); cred != "K1" {
		t.Errorf("openai credential = %q", cred)
	}
	rec, err := mem.Get(ctx, "openai")
	if err != nil {
		t.Fatalf("openai record missing: %v", err)
	}
	if rec.Model != "gpt-4.1" {
		t.Errorf("model override ignored: %q", rec.Model)
	}

	if _, ok := f.credentialUsed("anthropic"); ok {
		t.Error("anthropic initialized without a config key")
	}
	for _, m := range gemini.FamilyModels {
		if _, ok := f.credentialUsed(gemini.KeyFor(m)); !ok {
			t.Errorf("google member %s not initialized", gemini.KeyFor(m))
		}
	}
}

func TestBootstrapFromConfig_RegistryShadowsConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore().Providers()
	_ = mem.Upsert(ctx, store.ProviderRecord{
		Name: "openai", Kind: types.KindTextRemote,
		EncryptedCredential: []byte("REGISTRY-KEY"), Active: true, Model: "gpt-4o-mini",
	})

	reg, f := newTestRegistry(t, mem)
	if err := reg.StartupLoad(ctx); err != nil {
		t.Fatalf("StartupLoad: %v", err)
	}

	cfg := config.ProvidersConfig{OpenAIKey: "CONFIG-KEY"}
	if err := reg.BootstrapFromConfig(ctx, &cfg); err != nil {
		t.Fatalf("BootstrapFromConfig: %v", err)
	}

	if cred, _ := f.credentialUsed("openai"); cred != "REGISTRY-KEY" {
		t.Errorf("instance built from %q, want the registry credential", cred)
	}
	if cfg.OpenAIKey != "CONFIG-KEY" {
		t.Error("usable registry record should leave the config key in place")
	}
}

// ─── deactivation ───

func TestSetDeactivated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore().Providers()
	reg, _ := newTestRegistry(t, mem)

	if err := reg.AddCredential(ctx, "openai", "K1"); err != nil {
		t.Fatalf("AddCredential: %v", err)
	}
	if err := reg.SetDeactivated(ctx, "openai", true); err != nil {
		t.Fatalf("SetDeactivated: %v", err)
	}

	if _, err := reg.Resolve("openai"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Resolve = %v, want ErrUnavailable", err)
	}
	rec, _ := mem.Get(ctx, "openai")
	if !rec.Deactivated || rec.Active {
		t.Errorf("record = %+v", rec)
	}
	// The credential is retained, unlike removal.
	if rec.EncryptedCredential == nil {
		t.Error("deactivation cleared the credential")
	}

	if err := reg.SetDeactivated(ctx, "openai", false); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	rec, _ = mem.Get(ctx, "openai")
	if rec.Deactivated || !rec.Active {
		t.Errorf("record after reactivation = %+v", rec)
	}
}

func TestSetDeactivated_UnknownProvider(t *testing.T) {
	t.Parallel()
	reg, _ := newTestRegistry(t, store.NewMemStore().Providers())
	err := reg.SetDeactivated(context.Background(), "nope", true)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ─── resolution and listing ───

func TestResolve_PreferredThenDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg, _ := newTestRegistry(t, store.NewMemStore().Providers(),
		WithPreferredDefault("anthropic"))

	_ = reg.AddCredential(ctx, "openai", "K1")
	_ = reg.AddCredential(ctx, "anthropic", "K2")

	prov, err := reg.Resolve("openai")
	if err != nil || prov.Info().Name != "openai" {
		t.Errorf("Resolve(openai) = %v, %v", prov, err)
	}

	// Unknown preferred falls back to the configured default.
	prov, err = reg.Resolve("missing")
	if err != nil || prov.Info().Name != "anthropic" {
		t.Errorf("Resolve(missing) = %v, %v; want anthropic", prov, err)
	}

	prov, err = reg.Resolve("")
	if err != nil || prov.Info().Name != "anthropic" {
		t.Errorf("Resolve(\"\") = %v, %v; want the default", prov, err)
	}
}

func TestResolve_Empty(t *testing.T) {
	t.Parallel()
	reg, _ := newTestRegistry(t, store.NewMemStore().Providers())
	if _, err := reg.Resolve(""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestResolveVision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg, _ := newTestRegistry(t, store.NewMemStore().Providers())

	_ = reg.AddCredential(ctx, "openai", "K1")
	if _, err := reg.ResolveVision(""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("text-only registry resolved a vision provider: %v", err)
	}

	_ = reg.AddCredential(ctx, "google", "G1")
	prov, err := reg.ResolveVision("")
	if err != nil {
		t.Fatalf("ResolveVision: %v", err)
	}
	if !prov.Info().SupportsVision {
		t.Error("resolved provider does not support vision")
	}
}

func TestListAndListActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg, _ := newTestRegistry(t, store.NewMemStore().Providers())

	_ = reg.AddCredential(ctx, "openai", "K1")
	_ = reg.AddCredential(ctx, "anthropic", "K2")
	_ = reg.RemoveCredential(ctx, "anthropic")

	all, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d records, want 2", len(all))
	}

	active, err := reg.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].Name != "openai" {
		t.Errorf("ListActive = %+v", active)
	}
	if !active[0].Default {
		t.Error("sole active provider is not the default")
	}
}
