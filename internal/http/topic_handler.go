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

type topicService interface {
	ListTopics(ctx context.Context, principal application.Principal) ([]persistence.Topic, error)
	CreateTopic(ctx context.Context, principal application.Principal, input application.TopicInput) (persistence.Topic, error)
	UpdateTopic(ctx context.Context, principal application.Principal, topicID string, input application.TopicInput) (persistence.Topic, error)
	DeleteTopic(ctx context.Context, principal application.Principal, topicID string) error
}

type TopicHandler struct {
	service   topicService
	responder responder
}

func NewTopicHandler(service topicService, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	topics, err := h.service.ListTopics(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTopicDTOs(topics))
}

func (h *TopicHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req topicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	topic, err := h.service.CreateTopic(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTopicDTO(topic))
}

func (h *TopicHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	topicID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(topicID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	var req topicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	topic, err := h.service.UpdateTopic(r.Context(), principal, topicID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTopicDTO(topic))
}

func (h *TopicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	topicID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(topicID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteTopic(r.Context(), principal, topicID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type topicRequest struct {
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description"`
}

func (r topicRequest) toInput() application.TopicInput {
	return application.TopicInput{
		Title:           strings.TrimSpace(r.Title),
		DurationMinutes: r.DurationMinutes,
		Description:     strings.TrimSpace(r.Description),
	}
}

type topicDTO struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description,omitempty"`
	BatchManaged    bool   `json:"batch_managed"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toTopicDTO(topic persistence.Topic) topicDTO {
	return topicDTO{
		ID:              topic.ID,
		UserID:          topic.UserID,
		Title:           topic.Title,
		DurationMinutes: topic.DurationMinutes,
		Description:     topic.Description,
		BatchManaged:    topic.OwnerBatchID != nil,
		CreatedAt:       topic.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       topic.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toTopicDTOs(topics []persistence.Topic) []topicDTO {
	if len(topics) == 0 {
		return nil
	}
	out := make([]topicDTO, 0, len(topics))
	for _, topic := range topics {
		out = append(out, toTopicDTO(topic))
	}
	return out
}
