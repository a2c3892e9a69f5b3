package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/application"
)

type departmentService interface {
	CreateDepartment(ctx context.Context, principal application.Principal, input application.DepartmentInput) (application.DepartmentWithMembers, error)
	UpdateDepartment(ctx context.Context, principal application.Principal, departmentID string, input application.DepartmentInput) (application.DepartmentWithMembers, error)
	DeleteDepartment(ctx context.Context, principal application.Principal, departmentID string) error
	GetDepartment(ctx context.Context, departmentID string) (application.DepartmentWithMembers, error)
	ListDepartments(ctx context.Context) ([]application.DepartmentWithMembers, error)
}

type DepartmentHandler struct {
	service   departmentService
	responder responder
}

func NewDepartmentHandler(service departmentService, logger *slog.Logger) *DepartmentHandler {
	return &DepartmentHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *DepartmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departments, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDepartmentDTOs(departments))
}

func (h *DepartmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departmentID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(departmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	department, err := h.service.GetDepartment(r.Context(), departmentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDepartmentDTO(department))
}

func (h *DepartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	department, err := h.service.CreateDepartment(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toDepartmentDTO(department))
}

func (h *DepartmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departmentID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(departmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	department, err := h.service.UpdateDepartment(r.Context(), principal, departmentID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDepartmentDTO(department))
}

func (h *DepartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departmentID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(departmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteDepartment(r.Context(), principal, departmentID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type departmentRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	// MemberIDs replaces the full membership when present; omitting the key
	// leaves the current members untouched.
	MemberIDs []string `json:"member_ids"`
}

func (r departmentRequest) toInput() application.DepartmentInput {
	return application.DepartmentInput{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		MemberIDs:   r.MemberIDs,
	}
}

type departmentDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	MemberIDs   []string `json:"member_ids"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toDepartmentDTO(department application.DepartmentWithMembers) departmentDTO {
	members := department.MemberIDs
	if members == nil {
		members = []string{}
	}
	return departmentDTO{
		ID:          department.ID,
		Name:        department.Name,
		Description: department.Description,
		MemberIDs:   members,
		CreatedAt:   department.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   department.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toDepartmentDTOs(departments []application.DepartmentWithMembers) []departmentDTO {
	if len(departments) == 0 {
		return nil
	}
	out := make([]departmentDTO, 0, len(departments))
	for _, department := range departments {
		out = append(out, toDepartmentDTO(department))
	}
	return out
}
