package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/application"
	"github.com/example/appointment-scheduler/internal/persistence"
)

type bookingService interface {
	ListBookings(ctx context.Context, principal application.Principal, archived bool) ([]persistence.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID, reason string) (persistence.Booking, error)
	ArchiveBooking(ctx context.Context, principal application.Principal, bookingID string) error
	UnarchiveBooking(ctx context.Context, principal application.Principal, bookingID string) error
	DeleteBooking(ctx context.Context, principal application.Principal, bookingID string) error
}

type BookingHandler struct {
	service   bookingService
	responder responder
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	archived, _ := strconv.ParseBool(r.URL.Query().Get("archived"))

	bookings, err := h.service.ListBookings(r.Context(), principal, archived)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTOs(bookings))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	var req cancelRequest
	if r.Body != nil {
		// The cancellation reason is optional, so an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	principal, _ := PrincipalFromContext(r.Context())

	booking, err := h.service.CancelBooking(r.Context(), principal, bookingID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *BookingHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *BookingHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var err error
	if archived {
		err = h.service.ArchiveBooking(r.Context(), principal, bookingID)
	} else {
		err = h.service.UnarchiveBooking(r.Context(), principal, bookingID)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteBooking(r.Context(), principal, bookingID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type bookingDTO struct {
	ID                 string `json:"id"`
	TopicID            string `json:"topic_id"`
	ProviderID         string `json:"provider_id"`
	SlotStart          string `json:"slot_start"`
	SlotEnd            string `json:"slot_end"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
	CustomerPhone      string `json:"customer_phone,omitempty"`
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	IsArchived         bool   `json:"is_archived"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

func toBookingDTO(booking persistence.Booking) bookingDTO {
	return bookingDTO{
		ID:                 booking.ID,
		TopicID:            booking.TopicID,
		ProviderID:         booking.ProviderID,
		SlotStart:          booking.SlotStart.UTC().Format(time.RFC3339),
		SlotEnd:            booking.SlotEnd.UTC().Format(time.RFC3339),
		CustomerName:       booking.CustomerName,
		CustomerEmail:      booking.CustomerEmail,
		CustomerPhone:      booking.CustomerPhone,
		Status:             booking.Status,
		CancellationReason: booking.CancellationReason,
		IsArchived:         booking.IsArchived,
		CreatedAt:          booking.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          booking.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toBookingDTOs(bookings []persistence.Booking) []bookingDTO {
	if len(bookings) == 0 {
		return nil
	}
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}
