package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lernobot/lernobot/internal/engine"
	"github.com/lernobot/lernobot/internal/registry"
	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/types"
)

// server is the thin JSON ingress over the engine and registry. It translates
// HTTP requests into the core operations and carries no logic of its own.
type server struct {
	engine    *engine.Engine
	registry  *registry.Registry
	overrides store.OverrideStore
}

func newServer(eng *engine.Engine, reg *registry.Registry, overrides store.OverrideStore) *server {
	return &server{engine: eng, registry: reg, overrides: overrides}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/turns/message", s.handleMessageTurn)
	mux.HandleFunc("POST /v1/turns/image", s.handleImageTurn)
	mux.HandleFunc("POST /v1/sessions/{id}/reset", s.handleResetSession)
	mux.HandleFunc("POST /v1/sessions/{id}/end", s.handleEndSession)

	mux.HandleFunc("GET /v1/providers", s.handleListProviders)
	mux.HandleFunc("PUT /v1/providers/{name}/credential", s.handleAddCredential)
	mux.HandleFunc("DELETE /v1/providers/{name}/credential", s.handleRemoveCredential)
	mux.HandleFunc("PUT /v1/providers/{name}/deactivated", s.handleSetDeactivated)

	mux.HandleFunc("PUT /v1/modes/{mode}/override", s.handleSetOverride)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// ─── turn endpoints ───

type messageTurnRequest struct {
	SessionID         int64  `json:"session_id"`
	Instruction       string `json:"instruction"`
	Utterance         string `json:"utterance"`
	Mode              string `json:"mode"`
	AssistanceType    string `json:"assistance_type,omitempty"`
	PreferredProvider string `json:"preferred_provider,omitempty"`
}

type turnResponse struct {
	ResponseText       string   `json:"response_text"`
	StrategyUsed       string   `json:"strategy_used"`
	ComprehensionLevel string   `json:"comprehension_level"`
	AttemptCount       int      `json:"attempt_count"`
	ImageRefs          []string `json:"image_refs,omitempty"`
	Method             string   `json:"method,omitempty"`
}

func (s *server) handleMessageTurn(w http.ResponseWriter, r *http.Request) {
	var req messageTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.MessageTurn(r.Context(), engine.TurnInput{
		SessionID:         req.SessionID,
		Instruction:       req.Instruction,
		Utterance:         req.Utterance,
		Mode:              types.Mode(req.Mode),
		Assistance:        types.AssistanceType(req.AssistanceType),
		PreferredProvider: req.PreferredProvider,
	})
	if err != nil {
		turnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		ResponseText:       result.ResponseText,
		StrategyUsed:       string(result.StrategyUsed),
		ComprehensionLevel: string(result.ComprehensionLevel),
		AttemptCount:       result.AttemptCount,
	})
}

type imageTurnRequest struct {
	SessionID         int64    `json:"session_id"`
	Images            []string `json:"images"` // base64
	Caption           string   `json:"caption,omitempty"`
	Mode              string   `json:"mode"`
	PreferredProvider string   `json:"preferred_provider,omitempty"`
}

func (s *server) handleImageTurn(w http.ResponseWriter, r *http.Request) {
	var req imageTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	images := make([][]byte, 0, len(req.Images))
	for _, enc := range req.Images {
		img, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			httpError(w, http.StatusBadRequest, errors.New("images must be base64-encoded"))
			return
		}
		images = append(images, img)
	}

	result, err := s.engine.ImageTurn(r.Context(), engine.ImageInput{
		SessionID:         req.SessionID,
		Images:            images,
		Caption:           req.Caption,
		Mode:              types.Mode(req.Mode),
		PreferredProvider: req.PreferredProvider,
	})
	if err != nil {
		turnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		ResponseText:       result.ResponseText,
		StrategyUsed:       string(result.StrategyUsed),
		ComprehensionLevel: string(result.ComprehensionLevel),
		AttemptCount:       result.AttemptCount,
		ImageRefs:          result.ImageRefs,
		Method:             string(result.Method),
	})
}

func (s *server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, errors.New("session id must be an integer"))
		return
	}
	if err := s.engine.ResetSession(r.Context(), id); err != nil {
		turnError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, errors.New("session id must be an integer"))
		return
	}
	if err := s.engine.EndSession(r.Context(), id); err != nil {
		turnError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── admin endpoints ───

func (s *server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	views, err := s.registry.List(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	type providerJSON struct {
		Name           string `json:"name"`
		Kind           string `json:"kind"`
		Model          string `json:"model,omitempty"`
		Active         bool   `json:"active"`
		Deactivated    bool   `json:"deactivated"`
		Default        bool   `json:"default"`
		SupportsVision bool   `json:"supports_vision"`
	}
	out := make([]providerJSON, 0, len(views))
	for _, v := range views {
		out = append(out, providerJSON{
			Name:           v.Name,
			Kind:           string(v.Kind),
			Model:          v.Model,
			Active:         v.Active,
			Deactivated:    v.Deactivated,
			Default:        v.Default,
			SupportsVision: v.SupportsVision,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleAddCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.AddCredential(r.Context(), r.PathValue("name"), req.Credential); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRemoveCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RemoveCredential(r.Context(), r.PathValue("name")); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSetDeactivated(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deactivated bool `json:"deactivated"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	err := s.registry.SetDeactivated(r.Context(), r.PathValue("name"), req.Deactivated)
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	mode := types.Mode(r.PathValue("mode"))
	if !mode.IsValid() {
		httpError(w, http.StatusBadRequest, errors.New("mode must be practice or test"))
		return
	}

	var req struct {
		SystemPrompt string  `json:"system_prompt"`
		Temperature  float64 `json:"temperature"`
		MaxTokens    int     `json:"max_tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	err := s.overrides.Put(r.Context(), store.ModeOverride{
		Mode:         mode,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── helpers ───

func turnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionBusy):
		httpError(w, http.StatusTooManyRequests, err)
	case errors.Is(err, engine.ErrInvalidInput):
		httpError(w, http.StatusBadRequest, err)
	default:
		httpError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "err", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
