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

type settingsService interface {
	ListSettings(ctx context.Context, principal application.Principal) ([]persistence.Setting, error)
	UpsertSetting(ctx context.Context, principal application.Principal, key, value string) (persistence.Setting, error)
}

type SettingsHandler struct {
	service   settingsService
	responder responder
}

func NewSettingsHandler(service settingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	settings, err := h.service.ListSettings(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSettingDTOs(settings))
}

func (h *SettingsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	key, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(key) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingSettings)
		return
	}

	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	setting, err := h.service.UpsertSetting(r.Context(), principal, key, req.Value)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSettingDTO(setting))
}

type settingRequest struct {
	Value string `json:"value"`
}

type settingDTO struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

func toSettingDTO(setting persistence.Setting) settingDTO {
	return settingDTO{
		Key:       setting.Key,
		Value:     setting.Value,
		UpdatedAt: setting.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toSettingDTOs(settings []persistence.Setting) []settingDTO {
	if len(settings) == 0 {
		return nil
	}
	out := make([]settingDTO, 0, len(settings))
	for _, setting := range settings {
		out = append(out, toSettingDTO(setting))
	}
	return out
}
