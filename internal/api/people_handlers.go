package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

func (h *Handler) handleListPeople(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	people, err := h.service.ListPeople(r.Context(), person)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, people)
}

func (h *Handler) handleListPeopleByUnit(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	people, err := h.service.ListPeopleByUnit(r.Context(), person, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, people)
}

func (h *Handler) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	target, err := h.service.GetPerson(r.Context(), person, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, target)
}

func (h *Handler) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	var update domain.PersonUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.UpdatePerson(r.Context(), person, chi.URLParam(r, "id"), update)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePerson(r.Context(), person, chi.URLParam(r, "id")); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChangeRole reads the new role from the "rol" query parameter and the
// admin flag from "es_admin", which defaults to false.
func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	role, err := domain.ParseRole(query.Get("rol"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	isAdmin := false
	if raw := query.Get("es_admin"); raw != "" {
		isAdmin, err = strconv.ParseBool(raw)
		if err != nil {
			respondWithDetail(w, http.StatusBadRequest, "es_admin must be a boolean")
			return
		}
	}

	updated, err := h.service.ChangeRole(r.Context(), person, chi.URLParam(r, "id"), role, isAdmin)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}
