// Package engine orchestrates mediation turns: it serializes work per
// session, classifies the learner utterance, routes a strategy, renders the
// prompt, dispatches to a model provider, and records the outcome.
//
// The public operations never fail for provider or OCR trouble — they degrade
// to canned fallback text and always return a well-formed result. They return
// errors only for store failures, lock-acquire timeouts, and invalid input.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lernobot/lernobot/internal/catalog"
	"github.com/lernobot/lernobot/internal/classify"
	"github.com/lernobot/lernobot/internal/conversation"
	"github.com/lernobot/lernobot/internal/notify"
	"github.com/lernobot/lernobot/internal/observe"
	"github.com/lernobot/lernobot/internal/registry"
	"github.com/lernobot/lernobot/internal/route"
	"github.com/lernobot/lernobot/internal/vision"
	"github.com/lernobot/lernobot/pkg/provider/model"
	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// ErrInvalidInput wraps caller mistakes (unknown mode etc.) so transports can
// distinguish them from store failures.
var ErrInvalidInput = errors.New("engine: invalid input")

// defaultTextTimeout bounds a single text generation call.
const defaultTextTimeout = 180 * time.Second

// TurnInput is one learner message turn.
type TurnInput struct {
	SessionID   int64
	Instruction string
	Utterance   string
	Mode        types.Mode

	// Assistance is an optional explicit request; empty when absent.
	Assistance types.AssistanceType

	// PreferredProvider names the provider to dispatch to first; empty lets
	// the registry pick the default.
	PreferredProvider string
}

// ImageInput is one learner image turn.
type ImageInput struct {
	SessionID int64
	Images    [][]byte

	// Caption is the optional companion text sent with the images.
	Caption string

	Mode              types.Mode
	PreferredProvider string
}

// Engine is the mediation orchestrator. Safe for concurrent use; turns within
// one session are strictly serialized.
type Engine struct {
	states    store.ConversationStore
	overrides store.OverrideStore
	registry  *registry.Registry
	catalog   *catalog.Catalog

	// pipeline handles image ingestion; nil answers image turns with the
	// fixed unreadable-image text.
	pipeline *vision.Pipeline

	// watchdog schedules inactivity notifications; nil disables them.
	watchdog *notify.Watchdog

	locks       *sessionLocks
	metrics     *observe.Metrics
	textTimeout time.Duration
}

// Config wires an Engine.
type Config struct {
	States    store.ConversationStore
	Overrides store.OverrideStore
	Registry  *registry.Registry
	Catalog   *catalog.Catalog
	Pipeline  *vision.Pipeline
	Watchdog  *notify.Watchdog
	Metrics   *observe.Metrics

	// LockStripes bounds the session lock pool. Zero selects the default.
	LockStripes int

	// TextTimeout bounds one generation call. Zero selects 180s.
	TextTimeout time.Duration
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.States == nil {
		return nil, errors.New("engine: conversation store is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("engine: provider registry is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("engine: prompt catalog is required")
	}
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = defaultTextTimeout
	}
	return &Engine{
		states:      cfg.States,
		overrides:   cfg.Overrides,
		registry:    cfg.Registry,
		catalog:     cfg.Catalog,
		pipeline:    cfg.Pipeline,
		watchdog:    cfg.Watchdog,
		locks:       newSessionLocks(cfg.LockStripes),
		metrics:     cfg.Metrics,
		textTimeout: cfg.TextTimeout,
	}, nil
}

// MessageTurn runs one mediation turn and returns the learner-facing result.
func (e *Engine) MessageTurn(ctx context.Context, in TurnInput) (types.TurnResult, error) {
	if !in.Mode.IsValid() {
		return types.TurnResult{}, fmt.Errorf("%w: mode %q", ErrInvalidInput, in.Mode)
	}

	ctx, span := observe.Tracer().Start(ctx, "engine.message_turn",
		trace.WithAttributes(attribute.Int64("session_id", in.SessionID)))
	defer span.End()
	start := time.Now()

	release, err := e.locks.acquire(ctx, in.SessionID)
	if err != nil {
		return types.TurnResult{}, err
	}
	defer release()

	state, created, err := e.loadOrCreate(ctx, in.SessionID)
	if err != nil {
		return types.TurnResult{}, err
	}
	if created && e.metrics != nil {
		e.metrics.ActiveSessions.Add(ctx, 1)
	}

	now := time.Now().UTC()
	conversation.BeginTurn(&state, in.Instruction, now)

	comprehension := classify.Classify(in.Utterance)

	// Greeting shortcut: no model call, no strategy attempt recorded.
	if comprehension == types.ComprehensionInitial && classify.IsGreetingOrEmpty(in.Utterance) {
		if err := e.states.Upsert(ctx, state); err != nil {
			return types.TurnResult{}, fmt.Errorf("engine: persist state: %w", err)
		}
		return e.finish(ctx, start, types.TurnResult{
			ResponseText:       e.catalog.Greeting(),
			StrategyUsed:       types.OutcomeInitialGreeting,
			ComprehensionLevel: types.ComprehensionInitial,
			AttemptCount:       state.AttemptCount,
		}), nil
	}

	strategy := route.Next(comprehension, conversation.FailedSet(&state), in.Mode, in.Assistance)

	result := types.TurnResult{
		StrategyUsed:       strategy,
		ComprehensionLevel: comprehension,
	}

	switch {
	case strategy == types.StrategyTeacherEscalation:
		result.ResponseText = e.catalog.Escalation()
		if e.metrics != nil {
			e.metrics.Escalations.Add(ctx, 1)
		}

	case strategy == types.StrategyEmotionalSupport && e.emotionalFastPath(in.Utterance, &result):
		// Response filled from the direct-response table, no model call.

	default:
		e.generate(ctx, &state, in, strategy, &result)
	}

	// Recording is mandatory whether generation succeeded or fell back. The
	// state keeps the real routed strategy; only the result may carry a
	// synthetic degradation label.
	conversation.Record(&state, strategy, comprehension, time.Now().UTC())
	result.AttemptCount = state.AttemptCount

	if err := e.states.Upsert(ctx, state); err != nil {
		return types.TurnResult{}, fmt.Errorf("engine: persist state: %w", err)
	}

	e.armWatchdog(&state, strategy, comprehension)
	return e.finish(ctx, start, result), nil
}

// ImageTurn ingests instruction images and produces a learner-facing result.
// A response is returned for every image turn, even on total read failure.
// Mode is optional; an absent mode means practice.
func (e *Engine) ImageTurn(ctx context.Context, in ImageInput) (types.ImageTurnResult, error) {
	if in.Mode == "" {
		in.Mode = types.ModePractice
	}
	if !in.Mode.IsValid() {
		return types.ImageTurnResult{}, fmt.Errorf("%w: mode %q", ErrInvalidInput, in.Mode)
	}

	ctx, span := observe.Tracer().Start(ctx, "engine.image_turn",
		trace.WithAttributes(attribute.Int64("session_id", in.SessionID)))
	defer span.End()

	refs := make([]string, len(in.Images))
	for i := range refs {
		refs[i] = uuid.NewString()
	}

	if e.pipeline == nil {
		return e.unreadableResult(in.SessionID, refs), nil
	}

	res, err := e.pipeline.Ingest(ctx, in.Images, e.catalog.VisionPrompt(), in.PreferredProvider)
	if errors.Is(err, vision.ErrUnreadable) {
		return e.unreadableResult(in.SessionID, refs), nil
	}
	if err != nil {
		return types.ImageTurnResult{}, fmt.Errorf("engine: ingest images: %w", err)
	}

	if res.Method == types.MethodVision {
		// The vision model already produced the learner-facing reading of the
		// task with assistance choices. It is returned as an open question and
		// does not count as a strategy attempt.
		release, err := e.locks.acquire(ctx, in.SessionID)
		if err != nil {
			return types.ImageTurnResult{}, err
		}
		defer release()

		state, created, err := e.loadOrCreate(ctx, in.SessionID)
		if err != nil {
			return types.ImageTurnResult{}, err
		}
		if created && e.metrics != nil {
			e.metrics.ActiveSessions.Add(ctx, 1)
		}
		state.UpdatedAt = time.Now().UTC()
		if err := e.states.Upsert(ctx, state); err != nil {
			return types.ImageTurnResult{}, fmt.Errorf("engine: persist state: %w", err)
		}

		return types.ImageTurnResult{
			TurnResult: types.TurnResult{
				ResponseText:       res.Text,
				StrategyUsed:       types.OutcomeOpenQuestion,
				ComprehensionLevel: types.ComprehensionInitial,
				AttemptCount:       state.AttemptCount,
			},
			ImageRefs: refs,
			Method:    types.MethodVision,
		}, nil
	}

	// OCR path: the extracted text becomes the instruction of a standard
	// mediation turn, with the caption as the utterance.
	turn, err := e.MessageTurn(ctx, TurnInput{
		SessionID:         in.SessionID,
		Instruction:       res.Text,
		Utterance:         in.Caption,
		Mode:              in.Mode,
		PreferredProvider: in.PreferredProvider,
	})
	if err != nil {
		return types.ImageTurnResult{}, err
	}
	return types.ImageTurnResult{
		TurnResult: turn,
		ImageRefs:  refs,
		Method:     types.MethodOCR,
	}, nil
}

// ResetSession clears the session's mediation record without ending the
// session: the failed-strategy set, comprehension history, attempt count, and
// tracked instruction are all dropped while the row survives. Resetting an
// unknown session is not an error.
func (e *Engine) ResetSession(ctx context.Context, sessionID int64) error {
	release, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	state, err := e.states.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: reset session: %w", err)
	}

	fresh := store.NewConversationState(sessionID, time.Now().UTC())
	fresh.CreatedAt = state.CreatedAt
	if err := e.states.Upsert(ctx, fresh); err != nil {
		return fmt.Errorf("engine: reset session: %w", err)
	}
	if e.watchdog != nil {
		e.watchdog.Cancel(sessionID)
	}
	return nil
}

// EndSession deletes the session's conversation state and disarms its
// watchdog. Ending an unknown session is not an error.
func (e *Engine) EndSession(ctx context.Context, sessionID int64) error {
	release, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	_, err = e.states.Get(ctx, sessionID)
	existed := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("engine: end session: %w", err)
	}

	if err := e.states.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("engine: end session: %w", err)
	}
	if e.watchdog != nil {
		e.watchdog.Cancel(sessionID)
	}
	if existed && e.metrics != nil {
		e.metrics.ActiveSessions.Add(ctx, -1)
	}
	return nil
}

// ─── turn internals ───

// loadOrCreate returns the session state, creating the initial record when
// absent.
func (e *Engine) loadOrCreate(ctx context.Context, sessionID int64) (store.ConversationState, bool, error) {
	state, err := e.states.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.NewConversationState(sessionID, time.Now().UTC()), true, nil
	}
	if err != nil {
		return store.ConversationState{}, false, fmt.Errorf("engine: load state: %w", err)
	}
	return state, false, nil
}

// emotionalFastPath fills result from the direct-response table. Reports
// whether a phrase matched.
func (e *Engine) emotionalFastPath(utterance string, result *types.TurnResult) bool {
	text, ok := e.catalog.EmotionalResponse(classify.Normalize(utterance))
	if !ok {
		return false
	}
	result.ResponseText = text
	return true
}

// generate renders the strategy prompt and dispatches to a model provider,
// substituting fallback text on any failure. result.StrategyUsed becomes a
// synthetic degradation label when the learner receives fallback text.
func (e *Engine) generate(ctx context.Context, state *store.ConversationState, in TurnInput, strategy types.Strategy, result *types.TurnResult) {
	prov, err := e.registry.Resolve(in.PreferredProvider)
	if err != nil {
		slog.Warn("no provider available, serving fallback",
			"session_id", in.SessionID, "strategy", strategy)
		result.ResponseText = e.catalog.FallbackFor(strategy)
		result.StrategyUsed = types.OutcomeServiceFallback
		if e.metrics != nil {
			e.metrics.Fallbacks.Add(ctx, 1,
				metric.WithAttributes(attribute.String("reason", "service")))
		}
		return
	}

	override := e.loadOverride(ctx, in.Mode)

	vars := catalog.Vars{"instruction": state.CurrentInstruction}
	if strategy == types.StrategyProvideExample {
		vars["concept"] = e.catalog.ConceptFor(state.CurrentInstruction)
	}

	prompt, err := e.catalog.Render(strategy, in.Mode, vars, override.SystemPrompt)
	if err != nil {
		slog.Error("prompt render failed, serving fallback",
			"session_id", in.SessionID, "strategy", strategy, "err", err)
		e.fallback(ctx, strategy, result)
		return
	}

	opts := model.Options{
		Timeout:     e.textTimeout,
		Temperature: override.Temperature,
		MaxTokens:   override.MaxTokens,
	}

	name := prov.Info().Name
	genStart := time.Now()
	var text string
	err = e.registry.Do(name, func() error {
		var innerErr error
		text, _, innerErr = prov.GenerateText(ctx, prompt, opts)
		return innerErr
	})

	if e.metrics != nil {
		e.metrics.GenerationDuration.Record(ctx, time.Since(genStart).Seconds(),
			metric.WithAttributes(observe.Provider(name)))
		e.metrics.RecordProviderCall(ctx, name, statusOf(err))
	}

	if err != nil {
		slog.Warn("generation failed, serving fallback",
			"session_id", in.SessionID, "provider", name,
			"strategy", strategy, "kind", model.KindOf(err), "err", err)
		if e.metrics != nil {
			e.metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
				observe.Provider(name),
				attribute.String("kind", string(model.KindOf(err))),
			))
		}
		e.fallback(ctx, strategy, result)
		return
	}

	result.ResponseText = text
}

// fallback fills result with the strategy's canned text under the
// error_fallback label.
func (e *Engine) fallback(ctx context.Context, strategy types.Strategy, result *types.TurnResult) {
	result.ResponseText = e.catalog.FallbackFor(strategy)
	result.StrategyUsed = types.OutcomeErrorFallback
	if e.metrics != nil {
		e.metrics.Fallbacks.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", "provider")))
	}
}

// loadOverride returns the mode's prompt override, or the zero value when
// none is configured or the store fails (an override is tuning, never worth
// failing a turn over).
func (e *Engine) loadOverride(ctx context.Context, mode types.Mode) store.ModeOverride {
	if e.overrides == nil {
		return store.ModeOverride{}
	}
	o, err := e.overrides.Latest(ctx, mode)
	if errors.Is(err, store.ErrNotFound) {
		return store.ModeOverride{}
	}
	if err != nil {
		slog.Error("load mode override", "mode", mode, "err", err)
		return store.ModeOverride{}
	}
	return o
}

// armWatchdog schedules or cancels the inactivity check based on the turn
// outcome: struggling learners get a timer, recovered ones lose it.
func (e *Engine) armWatchdog(state *store.ConversationState, strategy types.Strategy, comprehension types.ComprehensionLabel) {
	if e.watchdog == nil {
		return
	}
	switch {
	case comprehension == types.ComprehensionConfused || strategy == types.StrategyTeacherEscalation:
		e.watchdog.Schedule(state.SessionID, state.AttemptCount, strategy, state.CurrentInstruction)
	case comprehension == types.ComprehensionUnderstood:
		e.watchdog.Cancel(state.SessionID)
	}
}

// unreadableResult is the terminal image-turn outcome when no text could be
// read by any path.
func (e *Engine) unreadableResult(sessionID int64, refs []string) types.ImageTurnResult {
	slog.Info("image turn unreadable, serving fixed message", "session_id", sessionID)
	return types.ImageTurnResult{
		TurnResult: types.TurnResult{
			ResponseText:       e.catalog.OCRFailure(),
			StrategyUsed:       types.OutcomeErrorFallback,
			ComprehensionLevel: types.ComprehensionInitial,
		},
		ImageRefs: refs,
	}
}

// finish records turn metrics and returns result unchanged.
func (e *Engine) finish(ctx context.Context, start time.Time, result types.TurnResult) types.TurnResult {
	if e.metrics != nil {
		e.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Strategy(string(result.StrategyUsed))))
		e.metrics.Turns.Add(ctx, 1, metric.WithAttributes(
			observe.Strategy(string(result.StrategyUsed)),
			attribute.String("comprehension", string(result.ComprehensionLevel)),
		))
	}
	return result
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
