package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/application"
	"github.com/example/appointment-scheduler/internal/persistence"
	"github.com/example/appointment-scheduler/internal/scheduler"
)

type publicSlotService interface {
	ResolveSlots(ctx context.Context, params application.ResolveSlotsParams) ([]scheduler.Slot, error)
}

type publicBookingService interface {
	Book(ctx context.Context, request application.BookingRequest) (persistence.Booking, error)
	CancelByToken(ctx context.Context, token, reason string) (persistence.Booking, error)
}

type publicDirectoryService interface {
	ListDirectory(ctx context.Context) ([]application.DirectoryEntry, error)
}

type publicTopicService interface {
	ListTopicsForProvider(ctx context.Context, providerID string) ([]persistence.Topic, error)
}

type publicDepartmentService interface {
	ListDepartments(ctx context.Context) ([]application.DepartmentWithMembers, error)
}

type publicSettingsService interface {
	PublicSettings(ctx context.Context) (map[string]string, error)
}

// PublicHandler serves the unauthenticated booking surface: the provider
// directory, slot search, and the booking wizard endpoints.
type PublicHandler struct {
	slots       publicSlotService
	bookings    publicBookingService
	directory   publicDirectoryService
	topics      publicTopicService
	departments publicDepartmentService
	settings    publicSettingsService
	responder   responder
	logger      *slog.Logger
	now         func() time.Time
}

type PublicHandlerConfig struct {
	Slots       publicSlotService
	Bookings    publicBookingService
	Directory   publicDirectoryService
	Topics      publicTopicService
	Departments publicDepartmentService
	Settings    publicSettingsService
	Logger      *slog.Logger
	Now         func() time.Time
}

func NewPublicHandler(cfg PublicHandlerConfig) *PublicHandler {
	base := defaultLogger(cfg.Logger)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &PublicHandler{
		slots:       cfg.Slots,
		bookings:    cfg.Bookings,
		directory:   cfg.Directory,
		topics:      cfg.Topics,
		departments: cfg.Departments,
		settings:    cfg.Settings,
		responder:   newResponder(base),
		logger:      base,
		now:         now,
	}
}

func (h *PublicHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PublicHandler", operation, attrs...)
}

func (h *PublicHandler) Directory(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.directory == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	entries, err := h.directory.ListDirectory(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDirectoryDTOs(entries))
}

// ProviderTopics lists the bookable topics published by one provider.
func (h *PublicHandler) ProviderTopics(w http.ResponseWriter, r *http.Request, providerID string) {
	if h == nil || h.topics == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	topics, err := h.topics.ListTopicsForProvider(r.Context(), providerID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTopicDTOs(topics))
}

// Slots resolves the open slots for a provider and topic across a date range.
// The range defaults to the next two weeks when from/to are omitted.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request, providerID string) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	topicID := strings.TrimSpace(query.Get("topic_id"))
	if topicID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingTopicID)
		return
	}

	from, to, err := h.slotRange(query)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	slots, err := h.slots.ResolveSlots(r.Context(), application.ResolveSlotsParams{
		UserID:  providerID,
		TopicID: topicID,
		From:    from,
		To:      to,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotsResponse{Slots: toSlotDTOs(slots)})
}

func (h *PublicHandler) slotRange(query url.Values) (time.Time, time.Time, error) {
	today := h.now().UTC().Truncate(24 * time.Hour)
	from := today
	to := today.AddDate(0, 0, 13)

	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidDateArg
		}
		from = parsed
		to = from.AddDate(0, 0, 13)
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidDateArg
		}
		to = parsed
	}
	return from, to, nil
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Book", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if fieldErrs := validateDTO(req); fieldErrs != nil {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			Message: "The submitted values are invalid.",
			Errors:  fieldErrs,
		})
		return
	}

	slotStart, err := time.Parse(time.RFC3339, strings.TrimSpace(req.SlotStart))
	if err != nil {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			Message: "The submitted values are invalid.",
			Errors:  map[string]string{"slot_start": "the value is not a valid timestamp"},
		})
		return
	}

	logger := h.log(r.Context(), "Book", "topic_id", req.TopicID)

	booking, err := h.bookings.Book(r.Context(), application.BookingRequest{
		TopicID:       strings.TrimSpace(req.TopicID),
		SlotTimestamp: slotStart,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking confirmed")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, publicBookingDTO{
		bookingDTO:        toBookingDTO(booking),
		CancellationToken: booking.CancellationToken,
	})
}

// CancelByToken cancels a booking using the token issued at booking time.
func (h *PublicHandler) CancelByToken(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req tokenCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingToken)
		return
	}

	booking, err := h.bookings.CancelByToken(r.Context(), token, strings.TrimSpace(req.Reason))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "CancelByToken", "booking_id", booking.ID).InfoContext(r.Context(), "booking cancelled by customer")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

func (h *PublicHandler) Departments(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.departments == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departments, err := h.departments.ListDepartments(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDepartmentDTOs(departments))
}

func (h *PublicHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.settings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	values, err := h.settings.PublicSettings(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, values)
}

type bookingRequest struct {
	TopicID       string `json:"topic_id" validate:"required"`
	SlotStart     string `json:"slot_start" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	CustomerPhone string `json:"customer_phone"`
}

type tokenCancelRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

type publicBookingDTO struct {
	bookingDTO
	CancellationToken string `json:"cancellation_token"`
}

type slotsResponse struct {
	Slots []slotDTO `json:"slots"`
}

type slotDTO struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Timestamp string `json:"timestamp"`
}

func toSlotDTOs(slots []scheduler.Slot) []slotDTO {
	if len(slots) == 0 {
		return nil
	}
	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotDTO{
			Date:      slot.Date,
			Time:      slot.Time,
			Timestamp: slot.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return out
}

type directoryDTO struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	Email           string `json:"email,omitempty"`
	Position        string `json:"position,omitempty"`
	Location        string `json:"location,omitempty"`
	HasAvailability bool   `json:"has_availability"`
}

func toDirectoryDTOs(entries []application.DirectoryEntry) []directoryDTO {
	if len(entries) == 0 {
		return nil
	}
	out := make([]directoryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, directoryDTO{
			ID:              entry.ID,
			DisplayName:     entry.DisplayName,
			Email:           entry.Email,
			Position:        entry.Position,
			Location:        entry.Location,
			HasAvailability: entry.HasAvailability,
		})
	}
	return out
}
