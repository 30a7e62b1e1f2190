package reservation_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/reservation"
	"ms-reservation/internal/utils"
)

type Handler struct {
	Service *reservation.Service
	Logger  *logger.Logger
}

func NewHandler(service *reservation.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req models.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reserve: failed to decode request body: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.Service.Reserve(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reserve: %v", err))
		writeJSON(w, statusFor(err), utils.ErrorResponse("Reservation failed", err.Error()))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Reserve: created hold %s", resp.HoldID))
	writeJSON(w, http.StatusCreated, utils.SuccessResponse(
		fmt.Sprintf("Reserved %d ticket(s). Complete purchase before %s.", len(resp.TicketSerials), resp.ExpiresAt.Format("15:04:05")),
		resp,
	))
}

func (h *Handler) GetHold(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdId")

	view, err := h.Service.GetHold(r.Context(), holdID)
	if err != nil {
		writeJSON(w, statusFor(err), utils.ErrorResponse("Hold not available", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Hold found", view))
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdId")

	var req models.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if err := h.Service.Confirm(r.Context(), holdID, req.PaymentReference, req.Notes); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Confirm: hold %s: %v", holdID, err))
		writeJSON(w, statusFor(err), utils.ErrorResponse("Confirmation failed", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Purchase confirmed", nil))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdId")

	if err := h.Service.Cancel(r.Context(), holdID); err != nil {
		writeJSON(w, statusFor(err), utils.ErrorResponse("Cancellation failed", err.Error()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	ticketTypeID := chi.URLParam(r, "ticketTypeId")

	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid quantity", err.Error()))
			return
		}
		quantity = parsed
	}

	available, err := h.Service.CheckAvailability(r.Context(), ticketTypeID, quantity)
	if err != nil {
		writeJSON(w, statusFor(err), utils.ErrorResponse("Availability check failed", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Availability checked", map[string]interface{}{
		"ticket_type_id": ticketTypeID,
		"quantity":       quantity,
		"available":      available,
	}))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, reservation.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrExpired):
		return http.StatusGone
	case errors.Is(err, reservation.ErrInvalidState),
		errors.Is(err, reservation.ErrInsufficientAvailability):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrWriteFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
