package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lernobot/lernobot/pkg/types"
)

func TestMemConversations_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conv := NewMemStore().Conversations()

	if _, err := conv.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(absent) = %v, want ErrNotFound", err)
	}

	st := NewConversationState(1, time.Now().UTC())
	st.CurrentInstruction = "פתור 25+37"
	st.FailedStrategies = []types.Strategy{types.StrategyEmotionalSupport}
	if err := conv.Upsert(ctx, st); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := conv.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentInstruction != st.CurrentInstruction || len(got.FailedStrategies) != 1 {
		t.Errorf("Get = %+v", got)
	}

	if err := conv.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := conv.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}

	// Deleting an absent row is not an error.
	if err := conv.Delete(ctx, 42); err != nil {
		t.Errorf("Delete(absent) = %v", err)
	}
}

func TestMemConversations_StoresACopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conv := NewMemStore().Conversations()

	st := NewConversationState(2, time.Now().UTC())
	st.FailedStrategies = []types.Strategy{types.StrategyGuidedReading}
	if err := conv.Upsert(ctx, st); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Mutating the caller's slice after the write must not leak in.
	st.FailedStrategies[0] = types.StrategyProvideExample

	got, _ := conv.Get(ctx, 2)
	if got.FailedStrategies[0] != types.StrategyGuidedReading {
		t.Error("stored state aliases the caller's slice")
	}

	// Mutating a read result must not leak back either.
	got.FailedStrategies[0] = types.StrategyBreakdownSteps
	again, _ := conv.Get(ctx, 2)
	if again.FailedStrategies[0] != types.StrategyGuidedReading {
		t.Error("read result aliases the stored state")
	}
}

func TestMemProviders_UpsertAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	providers := NewMemStore().Providers()

	for _, name := range []string{"openai", "anthropic", "cohere"} {
		err := providers.Upsert(ctx, ProviderRecord{
			Name: name, Kind: types.KindTextRemote,
			EncryptedCredential: []byte("sealed"), Active: true,
		})
		if err != nil {
			t.Fatalf("Upsert %s: %v", name, err)
		}
	}

	recs, err := providers.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List returned %d rows", len(recs))
	}
	// Ordered by name.
	for i, want := range []string{"anthropic", "cohere", "openai"} {
		if recs[i].Name != want {
			t.Errorf("recs[%d].Name = %q, want %q", i, recs[i].Name, want)
		}
	}
}

func TestMemProviders_UpsertPreservesCreatedAt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	providers := NewMemStore().Providers()

	if err := providers.Upsert(ctx, ProviderRecord{Name: "openai", Active: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	first, _ := providers.Get(ctx, "openai")

	if err := providers.Upsert(ctx, ProviderRecord{Name: "openai", Deactivated: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, _ := providers.Get(ctx, "openai")

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v → %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.Deactivated {
		t.Error("update lost the new field values")
	}
}

func TestMemOverrides_LatestWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	overrides := NewMemStore().Overrides()

	if _, err := overrides.Latest(ctx, types.ModeTest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest(empty) = %v, want ErrNotFound", err)
	}

	if err := overrides.Put(ctx, ModeOverride{Mode: types.ModeTest, SystemPrompt: "ראשון"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := overrides.Put(ctx, ModeOverride{Mode: types.ModeTest, SystemPrompt: "שני"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := overrides.Latest(ctx, types.ModeTest)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.SystemPrompt != "שני" {
		t.Errorf("Latest = %q, want the newer override", got.SystemPrompt)
	}

	// Modes are independent.
	if _, err := overrides.Latest(ctx, types.ModePractice); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(practice) = %v, want ErrNotFound", err)
	}
}

func TestMemNotifications_EmitDeduplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sink := NewMemStore().Notifications()

	ok, err := sink.Exists(ctx, 1, 3)
	if err != nil || ok {
		t.Fatalf("Exists(empty) = %t, %v", ok, err)
	}

	first := TeacherNotification{ID: "n-1", SessionID: 1, AttemptCount: 3, Strategy: types.StrategyGuidedReading}
	if err := sink.Emit(ctx, first); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// Same (session, attempt count) pair is a no-op, not an error.
	if err := sink.Emit(ctx, TeacherNotification{ID: "n-2", SessionID: 1, AttemptCount: 3}); err != nil {
		t.Fatalf("Emit(duplicate): %v", err)
	}

	ok, err = sink.Exists(ctx, 1, 3)
	if err != nil || !ok {
		t.Errorf("Exists = %t, %v", ok, err)
	}

	// A later attempt on the same session is a distinct notification.
	if ok, _ := sink.Exists(ctx, 1, 4); ok {
		t.Error("Exists(1, 4) = true before any emission")
	}
}
