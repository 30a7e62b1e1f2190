package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-reservation/internal/catalog"
	catalogdb "ms-reservation/internal/catalog/db"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/utils"
)

type Handler struct {
	Events *catalog.EventService
	Logger *logger.Logger
}

func NewHandler(events *catalog.EventService, log *logger.Logger) *Handler {
	return &Handler{Events: events, Logger: log}
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Title == "" || req.EventDate.IsZero() {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event", "title and event_date are required"))
		return
	}

	event, err := h.Events.CreateEvent(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to create event", err.Error()))
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	events, err := h.Events.ListEvents(r.Context(), includeInactive)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list events", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Events listed", events))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.Events.GetEvent(r.Context(), eventID)
	if err != nil {
		writeJSON(w, notFoundOr500(err), utils.ErrorResponse("Event not found", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Event found", event))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req models.UpdateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	event, err := h.Events.UpdateEvent(r.Context(), eventID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateEvent: %v", err))
		writeJSON(w, notFoundOr500(err), utils.ErrorResponse("Failed to update event", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Event updated", event))
}

func (h *Handler) UpdateTicketType(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	ticketTypeID := chi.URLParam(r, "ticketTypeId")

	var req models.UpdateTicketTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	tt, err := h.Events.UpdateTicketType(r.Context(), eventID, ticketTypeID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateTicketType: %v", err))
		writeJSON(w, notFoundOr500(err), utils.ErrorResponse("Failed to update ticket type", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Ticket type updated", tt))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	soft, err := h.Events.DeleteEvent(r.Context(), eventID)
	if err != nil {
		writeJSON(w, notFoundOr500(err), utils.ErrorResponse("Failed to delete event", err.Error()))
		return
	}

	if soft {
		writeJSON(w, http.StatusOK, utils.SuccessResponse("Event deactivated (sold tickets exist)", nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetEventAvailability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	availability, err := h.Events.GetEventAvailability(r.Context(), eventID)
	if err != nil {
		writeJSON(w, notFoundOr500(err), utils.ErrorResponse("Failed to get availability", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Availability", availability))
}

func notFoundOr500(err error) int {
	if errors.Is(err, catalogdb.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
