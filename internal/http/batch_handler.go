package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/application"
	"github.com/example/appointment-scheduler/internal/recurrence"
)

type batchService interface {
	CreateBatch(ctx context.Context, principal application.Principal, input application.BatchInput) (application.BatchSummary, error)
	UpdateBatch(ctx context.Context, principal application.Principal, batchID string, input application.BatchUpdateInput) (application.BatchSummary, error)
	DeleteBatch(ctx context.Context, principal application.Principal, batchID string) error
	GetBatch(ctx context.Context, principal application.Principal, batchID string) (application.BatchSummary, error)
	ListBatches(ctx context.Context, principal application.Principal) ([]application.BatchSummary, error)
}

type BatchHandler struct {
	service   batchService
	responder responder
	logger    *slog.Logger
}

func NewBatchHandler(service batchService, logger *slog.Logger) *BatchHandler {
	base := defaultLogger(logger)
	return &BatchHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BatchHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BatchHandler", operation, attrs...)
}

func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	batches, err := h.service.ListBatches(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatchDTOs(batches))
}

func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	batchID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(batchID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	batch, err := h.service.GetBatch(r.Context(), principal, batchID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatchDTO(batch))
}

func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "rule_type", req.RuleType)

	batch, err := h.service.CreateBatch(r.Context(), principal, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create batch rule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("batch_id", batch.ID).InfoContext(r.Context(), "batch rule created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBatchDTO(batch))
}

func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	batchID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(batchID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	var req batchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "batch_id", batchID)

	batch, err := h.service.UpdateBatch(r.Context(), principal, batchID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update batch rule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "batch rule updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatchDTO(batch))
}

func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	batchID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(batchID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "batch_id", batchID)

	if err := h.service.DeleteBatch(r.Context(), principal, batchID); err != nil {
		logger.ErrorContext(r.Context(), "failed to delete batch rule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "batch rule deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type batchRequest struct {
	Name          string           `json:"name"`
	RuleType      string           `json:"rule_type"`
	TargetType    string           `json:"target_type"`
	Template      batchTemplateDTO `json:"template"`
	ApplyToFuture bool             `json:"apply_to_future"`
	UserIDs       []string         `json:"user_ids"`
	DepartmentIDs []string         `json:"department_ids"`
}

func (r batchRequest) toInput() application.BatchInput {
	return application.BatchInput{
		Name:          strings.TrimSpace(r.Name),
		RuleType:      strings.TrimSpace(r.RuleType),
		TargetType:    strings.TrimSpace(r.TargetType),
		Template:      r.Template.toTemplate(),
		ApplyToFuture: r.ApplyToFuture,
		UserIDs:       append([]string(nil), r.UserIDs...),
		DepartmentIDs: append([]string(nil), r.DepartmentIDs...),
	}
}

type batchUpdateRequest struct {
	Name          *string           `json:"name"`
	Template      *batchTemplateDTO `json:"template"`
	ApplyToFuture *bool             `json:"apply_to_future"`
	TargetType    *string           `json:"target_type"`
	UserIDs       []string          `json:"user_ids"`
	DepartmentIDs []string          `json:"department_ids"`
}

func (r batchUpdateRequest) toInput() application.BatchUpdateInput {
	input := application.BatchUpdateInput{
		ApplyToFuture: r.ApplyToFuture,
		UserIDs:       r.UserIDs,
		DepartmentIDs: r.DepartmentIDs,
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		input.Name = &name
	}
	if r.TargetType != nil {
		targetType := strings.TrimSpace(*r.TargetType)
		input.TargetType = &targetType
	}
	if r.Template != nil {
		template := r.Template.toTemplate()
		input.Template = &template
	}
	return input
}

type batchTemplateDTO struct {
	Topic        *topicTemplateDTO        `json:"topic,omitempty"`
	Availability *availabilityTemplateDTO `json:"availability,omitempty"`
}

func (d batchTemplateDTO) toTemplate() application.BatchTemplate {
	var template application.BatchTemplate
	if d.Topic != nil {
		template.Topic = &application.TopicTemplate{
			Title:           strings.TrimSpace(d.Topic.Title),
			DurationMinutes: d.Topic.DurationMinutes,
			Description:     strings.TrimSpace(d.Topic.Description),
		}
	}
	if d.Availability != nil {
		availability := &application.AvailabilityTemplate{
			Kind:      recurrence.Kind(strings.TrimSpace(d.Availability.Kind)),
			StartTime: strings.TrimSpace(d.Availability.StartTime),
			EndTime:   strings.TrimSpace(d.Availability.EndTime),
		}
		if d.Availability.DayOfWeek != nil {
			weekday := time.Weekday(*d.Availability.DayOfWeek)
			availability.Weekday = &weekday
		}
		if date := strings.TrimSpace(d.Availability.SpecificDate); date != "" {
			availability.SpecificDate = &date
		}
		if date := strings.TrimSpace(d.Availability.ValidUntil); date != "" {
			availability.ValidUntil = &date
		}
		template.Availability = availability
	}
	return template
}

func toBatchTemplateDTO(template application.BatchTemplate) batchTemplateDTO {
	var dto batchTemplateDTO
	if template.Topic != nil {
		dto.Topic = &topicTemplateDTO{
			Title:           template.Topic.Title,
			DurationMinutes: template.Topic.DurationMinutes,
			Description:     template.Topic.Description,
		}
	}
	if template.Availability != nil {
		availability := &availabilityTemplateDTO{
			Kind:      string(template.Availability.Kind),
			StartTime: template.Availability.StartTime,
			EndTime:   template.Availability.EndTime,
		}
		if template.Availability.Weekday != nil {
			day := int(*template.Availability.Weekday)
			availability.DayOfWeek = &day
		}
		if template.Availability.SpecificDate != nil {
			availability.SpecificDate = *template.Availability.SpecificDate
		}
		if template.Availability.ValidUntil != nil {
			availability.ValidUntil = *template.Availability.ValidUntil
		}
		dto.Availability = availability
	}
	return dto
}

type topicTemplateDTO struct {
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description,omitempty"`
}

type availabilityTemplateDTO struct {
	Kind         string `json:"kind"`
	DayOfWeek    *int   `json:"day_of_week,omitempty"`
	SpecificDate string `json:"specific_date,omitempty"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	ValidUntil   string `json:"valid_until,omitempty"`
}

type batchDTO struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	RuleType      string           `json:"rule_type"`
	TargetType    string           `json:"target_type"`
	Template      batchTemplateDTO `json:"template"`
	ApplyToFuture bool             `json:"apply_to_future"`
	UserIDs       []string         `json:"user_ids,omitempty"`
	DepartmentIDs []string         `json:"department_ids,omitempty"`
	CreatedAt     string           `json:"created_at"`
	UpdatedAt     string           `json:"updated_at"`
}

func toBatchDTO(batch application.BatchSummary) batchDTO {
	return batchDTO{
		ID:            batch.ID,
		Name:          batch.Name,
		RuleType:      batch.RuleType,
		TargetType:    batch.TargetType,
		Template:      toBatchTemplateDTO(batch.Template),
		ApplyToFuture: batch.ApplyToFuture,
		UserIDs:       append([]string(nil), batch.UserIDs...),
		DepartmentIDs: append([]string(nil), batch.DepartmentIDs...),
		CreatedAt:     batch.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     batch.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toBatchDTOs(batches []application.BatchSummary) []batchDTO {
	if len(batches) == 0 {
		return nil
	}
	out := make([]batchDTO, 0, len(batches))
	for _, batch := range batches {
		out = append(out, toBatchDTO(batch))
	}
	return out
}
