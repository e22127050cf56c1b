package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Fblink88/ComunidadElMaiten/internal/app"
	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

type billPeriodRequest struct {
	Period string               `json:"periodo"`
	Items  []domain.ExpenseItem `json:"items"`
}

func (h *Handler) handleBillPeriod(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	var req billPeriodRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	result, err := h.service.BillPeriod(r.Context(), person, req.Period, req.Items)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListMonthlyExpenses(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("cantidad"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondWithDetail(w, http.StatusBadRequest, "cantidad must be an integer")
			return
		}
		limit = parsed
	}

	expenses, err := h.service.ListMonthlyExpenses(r.Context(), limit)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, expenses)
}

func (h *Handler) handleGetMonthlyExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := h.service.GetMonthlyExpense(r.Context(), chi.URLParam(r, "periodo"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, expense)
}

func (h *Handler) handleCreateExtraordinaryExpense(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	var req app.NewExtraordinaryExpense
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	expense, err := h.service.CreateExtraordinaryExpense(r.Context(), person, req)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, expense)
}

func (h *Handler) handleListExtraordinaryExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.service.ListExtraordinaryExpenses(r.Context())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, expenses)
}

func (h *Handler) handleGetExtraordinaryExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := h.service.GetExtraordinaryExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, expense)
}

func (h *Handler) handleMarkExtraordinaryPaid(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	_, err := h.service.MarkExtraordinaryPaid(r.Context(), person, chi.URLParam(r, "id"), chi.URLParam(r, "departamentoID"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithMessage(w, "Pago extraordinario registrado")
}
