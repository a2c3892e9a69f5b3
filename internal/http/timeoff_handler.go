package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/application"
	"github.com/example/appointment-scheduler/internal/persistence"
)

type timeOffService interface {
	ListTimeOff(ctx context.Context, principal application.Principal) ([]persistence.TimeOff, error)
	CreateTimeOff(ctx context.Context, principal application.Principal, input application.TimeOffInput) (persistence.TimeOff, error)
	DeleteTimeOff(ctx context.Context, principal application.Principal, id string) error
}

type TimeOffHandler struct {
	service   timeOffService
	responder responder
}

func NewTimeOffHandler(service timeOffService, logger *slog.Logger) *TimeOffHandler {
	return &TimeOffHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *TimeOffHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	entries, err := h.service.ListTimeOff(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTimeOffDTOs(entries))
}

func (h *TimeOffHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req timeOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	entry, err := h.service.CreateTimeOff(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTimeOffDTO(entry))
}

func (h *TimeOffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteTimeOff(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type timeOffRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

func (r timeOffRequest) toInput() application.TimeOffInput {
	input := application.TimeOffInput{Reason: strings.TrimSpace(r.Reason)}
	if ts := parseDateArg(r.StartDate); ts != nil {
		input.StartDate = *ts
	}
	if ts := parseDateArg(r.EndDate); ts != nil {
		input.EndDate = *ts
	}
	return input
}

type timeOffDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTimeOffDTO(entry persistence.TimeOff) timeOffDTO {
	return timeOffDTO{
		ID:        entry.ID,
		UserID:    entry.UserID,
		StartDate: entry.StartDate.Format("2006-01-02"),
		EndDate:   entry.EndDate.Format("2006-01-02"),
		Reason:    entry.Reason,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: entry.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toTimeOffDTOs(entries []persistence.TimeOff) []timeOffDTO {
	if len(entries) == 0 {
		return nil
	}
	out := make([]timeOffDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toTimeOffDTO(entry))
	}
	return out
}
