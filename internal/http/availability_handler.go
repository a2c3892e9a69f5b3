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

type availabilityService interface {
	ListRules(ctx context.Context, principal application.Principal) ([]persistence.AvailabilityRule, error)
	CreateRule(ctx context.Context, principal application.Principal, input application.AvailabilityInput) (persistence.AvailabilityRule, error)
	DeleteRule(ctx context.Context, principal application.Principal, ruleID string) error
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	rules, err := h.service.ListRules(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAvailabilityRuleDTOs(rules))
}

func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req availabilityRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	rule, err := h.service.CreateRule(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toAvailabilityRuleDTO(rule))
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ruleID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(ruleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteRule(r.Context(), principal, ruleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type availabilityRuleRequest struct {
	Kind         string `json:"kind"`
	DayOfWeek    *int   `json:"day_of_week"`
	SpecificDate string `json:"specific_date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	ValidUntil   string `json:"valid_until"`
}

func (r availabilityRuleRequest) toInput() application.AvailabilityInput {
	input := application.AvailabilityInput{
		Kind:         strings.TrimSpace(r.Kind),
		SpecificDate: parseDateArg(r.SpecificDate),
		StartTime:    strings.TrimSpace(r.StartTime),
		EndTime:      strings.TrimSpace(r.EndTime),
		ValidUntil:   parseDateArg(r.ValidUntil),
	}
	if r.DayOfWeek != nil {
		weekday := time.Weekday(*r.DayOfWeek)
		input.Weekday = &weekday
	}
	return input
}

func parseDateArg(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &ts
}

type availabilityRuleDTO struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Kind         string `json:"kind"`
	DayOfWeek    *int   `json:"day_of_week,omitempty"`
	SpecificDate string `json:"specific_date,omitempty"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	ValidUntil   string `json:"valid_until,omitempty"`
	BatchManaged bool   `json:"batch_managed"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toAvailabilityRuleDTO(rule persistence.AvailabilityRule) availabilityRuleDTO {
	dto := availabilityRuleDTO{
		ID:           rule.ID,
		UserID:       rule.UserID,
		Kind:         rule.Kind,
		StartTime:    rule.StartTime,
		EndTime:      rule.EndTime,
		BatchManaged: rule.OwnerBatchID != nil,
		CreatedAt:    rule.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    rule.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if rule.Weekday != nil {
		day := int(*rule.Weekday)
		dto.DayOfWeek = &day
	}
	if rule.SpecificDate != nil {
		dto.SpecificDate = rule.SpecificDate.Format("2006-01-02")
	}
	if rule.ValidUntil != nil {
		dto.ValidUntil = rule.ValidUntil.Format("2006-01-02")
	}
	return dto
}

func toAvailabilityRuleDTOs(rules []persistence.AvailabilityRule) []availabilityRuleDTO {
	if len(rules) == 0 {
		return nil
	}
	out := make([]availabilityRuleDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toAvailabilityRuleDTO(rule))
	}
	return out
}
