package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Fblink88/ComunidadElMaiten/internal/app"
	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

func (h *Handler) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	var req app.NewUnit
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	unit, err := h.service.CreateUnit(r.Context(), person, req)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, unit)
}

func (h *Handler) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, units)
}

func (h *Handler) handleListActiveUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListActiveUnits(r.Context())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, units)
}

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.GetUnit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, unit)
}

func (h *Handler) handleUpdateUnit(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	var update domain.UnitUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	unit, err := h.service.UpdateUnit(r.Context(), person, chi.URLParam(r, "id"), update)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, unit)
}

func (h *Handler) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUnit(r.Context(), person, chi.URLParam(r, "id")); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddUnitMember(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	if _, err := h.service.AddMember(r.Context(), person, chi.URLParam(r, "id"), chi.URLParam(r, "usuarioID")); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithMessage(w, "Usuario agregado al departamento")
}

func (h *Handler) handleRemoveUnitMember(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	if _, err := h.service.RemoveMember(r.Context(), person, chi.URLParam(r, "id"), chi.URLParam(r, "usuarioID")); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithMessage(w, "Usuario removido del departamento")
}
