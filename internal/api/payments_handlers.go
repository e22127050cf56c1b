package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Fblink88/ComunidadElMaiten/internal/app"
)

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	var req app.NewPayment
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), person, req)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleMyPayments(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	payments, err := h.service.MyPayments(r.Context(), person)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handlePendingPayments(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPendingPayments(r.Context(), person)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handlePaymentsByPeriod(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPaymentsByPeriod(r.Context(), person, chi.URLParam(r, "periodo"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handlePaymentsByUnit(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPaymentsByUnit(r.Context(), person, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), person, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payment)
}

// handleVerifyPayment takes the decision from the "aprobado" query parameter
// and optional reviewer notes from "notas".
func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	approved, err := strconv.ParseBool(query.Get("aprobado"))
	if err != nil {
		respondWithDetail(w, http.StatusBadRequest, "aprobado must be a boolean")
		return
	}
	var notes *string
	if query.Has("notas") {
		value := query.Get("notas")
		notes = &value
	}

	payment, err := h.service.VerifyPayment(r.Context(), person, chi.URLParam(r, "id"), approved, notes)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payment)
}
