package handler

import (
	"errors"
	"net/http"

	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/service"
	"github.com/ratethiscrow/crowapi/internal/validation"
)

type NameHandler struct {
	crowService *service.CrowService
}

func NewNameHandler(crowService *service.CrowService) *NameHandler {
	return &NameHandler{crowService: crowService}
}

func (h *NameHandler) NewName(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	crowID, name := f.str("crow_id"), f.str("name")
	if crowID == "" || name == "" {
		writeText(w, http.StatusBadRequest, "Missing crow_id or name")
		return
	}

	_, err = h.crowService.ProposeName(r.Context(), crowID, name)
	switch {
	case errors.Is(err, service.ErrInvalidName):
		writeText(w, http.StatusBadRequest, "Invalid name")
		return
	case errors.Is(err, repository.ErrCrowNotFound):
		writeText(w, http.StatusNotFound, "Crow not found")
		return
	case err != nil:
		serverError(w, r, "Error adding new name", err)
		return
	}

	writeText(w, http.StatusCreated, "Name added successfully")
}

func (h *NameHandler) Vote(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	crowID, nameID, voteType := f.str("crow_id"), f.str("name_id"), f.str("vote_type")
	if crowID == "" || nameID == "" || voteType == "" {
		writeText(w, http.StatusBadRequest, "Missing crow_id, name_id, or vote_type")
		return
	}

	err = h.crowService.VoteName(r.Context(), crowID, nameID, voteType)
	switch {
	case errors.Is(err, service.ErrInvalidVote):
		writeText(w, http.StatusBadRequest, "Invalid vote_type: use upvote or downvote")
		return
	case errors.Is(err, repository.ErrNameNotFound):
		writeText(w, http.StatusNotFound, "Name not found for this crow")
		return
	case err != nil:
		serverError(w, r, "Error voting on name", err)
		return
	}

	writeText(w, http.StatusOK, "Vote added successfully")
}

func (h *NameHandler) Names(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	crowID := f.str("crow_id")
	if crowID == "" {
		writeText(w, http.StatusBadRequest, "Missing crow_id")
		return
	}

	names, err := h.crowService.Names(r.Context(), crowID)
	if err != nil {
		serverError(w, r, "Error fetching names for crow", err)
		return
	}

	writeJSON(w, http.StatusOK, names)
}

func (h *NameHandler) Validate(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := f.str("name")
	if name == "" {
		writeText(w, http.StatusBadRequest, "Missing name")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": validation.IsValidName(name)})
}
