package game

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/auth"
	"github.com/classkit/live-quiz/internal/game/sequence"
	httperrors "github.com/classkit/live-quiz/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for session operations.
type HTTPHandlers struct {
	service *Service
	tokens  *auth.Manager
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints.
func NewHTTPHandlers(service *Service, tokens *auth.Manager, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		tokens:  tokens,
		logger:  logger.With().Str("component", "session_http").Logger(),
	}
}

// CreateSessionRequest is the payload for POST /v1/sessions.
type CreateSessionRequest struct {
	Category         string     `json:"category,omitempty"`
	Questions        []Question `json:"questions,omitempty"`
	Participants     []string   `json:"participants"`
	TimePerQuestion  int        `json:"time_per_question"`
	UnlimitedTime    bool       `json:"unlimited_time"`
	Sequencing       string     `json:"sequencing,omitempty"`
	Scoring          string     `json:"scoring,omitempty"`
	TimeoutAction    string     `json:"timeout_action,omitempty"`
	OvertimeInterval int        `json:"overtime_interval,omitempty"`
	OvertimePenalty  int        `json:"overtime_penalty,omitempty"`
}

// SubmitAnswerRequest is the payload for POST /v1/sessions/{id}/answers.
type SubmitAnswerRequest struct {
	Name        string `json:"name"`
	OptionIndex int    `json:"option_index"`
}

// CreateSession handles POST /v1/sessions.
func (h *HTTPHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.FromRequest(r)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or missing token")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	s, err := h.service.Create(r.Context(), CreateParams{
		PresenterID:      claims.PresenterID,
		Category:         req.Category,
		Questions:        req.Questions,
		Participants:     req.Participants,
		TimePerQuestion:  req.TimePerQuestion,
		UnlimitedTime:    req.UnlimitedTime,
		Sequencing:       sequence.Policy(req.Sequencing),
		Scoring:          ScoringMode(req.Scoring),
		Timeout:          TimeoutAction(req.TimeoutAction),
		OvertimeInterval: req.OvertimeInterval,
		OvertimePenalty:  req.OvertimePenalty,
	})
	if err != nil {
		h.respondServiceError(w, err, httperrors.ErrCodeSessionCreationFailed)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": s.ID,
		"join_code":  s.JoinCode,
	})
}

// LookupSession handles GET /v1/sessions/lookup?code=123456.
func (h *HTTPHandlers) LookupSession(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidJoinCode, "Missing join code")
		return
	}
	s, err := h.service.LookupByJoinCode(r.Context(), code)
	if err != nil {
		h.respondServiceError(w, err, httperrors.ErrCodeSessionNotFound)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"status":     s.Status,
		"category":   s.Category,
	})
}

// GetSession handles GET /v1/sessions/{id}.
func (h *HTTPHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err, httperrors.ErrCodeSessionNotFound)
		return
	}
	h.respondJSON(w, http.StatusOK, s)
}

// Lifecycle handles POST /v1/sessions/{id}/{start|pause|resume|finish}.
func (h *HTTPHandlers) Lifecycle(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.tokens.FromRequest(r)
		if err != nil {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or missing token")
			return
		}
		id := r.PathValue("id")

		var s *Session
		switch op {
		case "start":
			s, err = h.service.Start(r.Context(), id, claims.PresenterID)
		case "pause":
			s, err = h.service.Pause(r.Context(), id, claims.PresenterID)
		case "resume":
			s, err = h.service.Resume(r.Context(), id, claims.PresenterID)
		case "finish":
			s, err = h.service.Finish(r.Context(), id, claims.PresenterID)
		default:
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Unknown operation")
			return
		}
		if err != nil {
			h.respondServiceError(w, err, httperrors.ErrCodeInternalError)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]any{
			"session_id": s.ID,
			"status":     s.Status,
		})
	}
}

// SubmitAnswer handles POST /v1/sessions/{id}/answers.
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if err := h.service.SubmitAnswer(r.Context(), r.PathValue("id"), req.Name, req.OptionIndex); err != nil {
		h.respondServiceError(w, err, httperrors.ErrCodeSubmitFailed)
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
	case errors.Is(err, ErrNotYourTurn):
		httperrors.RespondConflict(w, httperrors.ErrCodeNotYourTurn, "It is not this participant's turn")
	case errors.Is(err, ErrAlreadyAnswered):
		httperrors.RespondConflict(w, httperrors.ErrCodeAlreadyAnswered, "An answer was already submitted for this turn")
	case errors.Is(err, ErrNotAuthorized):
		httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, "Only the session presenter may do this")
	case errors.Is(err, ErrCorruptSession):
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeSessionCorrupted, "Session record is corrupted")
	default:
		h.logger.Error().Err(err).Msg("session operation failed")
		httperrors.RespondError(w, http.StatusInternalServerError, fallback, "Internal error")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
