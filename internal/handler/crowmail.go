package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/service"
)

type CrowmailHandler struct {
	crowmailService *service.CrowmailService
}

func NewCrowmailHandler(crowmailService *service.CrowmailService) *CrowmailHandler {
	return &CrowmailHandler{crowmailService: crowmailService}
}

func (h *CrowmailHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email, subType := f.str("email"), f.str("type")
	if email == "" || subType == "" {
		writeText(w, http.StatusBadRequest, "Missing email or type")
		return
	}

	err = h.crowmailService.Subscribe(r.Context(), email, subType)
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		writeText(w, http.StatusBadRequest, "Invalid email")
		return
	case errors.Is(err, service.ErrInvalidType):
		writeText(w, http.StatusBadRequest, "Invalid type")
		return
	case errors.Is(err, service.ErrAlreadySubscribed), errors.Is(err, service.ErrAlreadyPending):
		writeText(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		serverError(w, r, "Error sending verification email", err)
		return
	}

	writeText(w, http.StatusOK, "Verification email sent")
}

func (h *CrowmailHandler) Verify(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeText(w, http.StatusBadRequest, "Missing key")
		return
	}

	sub, err := h.crowmailService.Verify(r.Context(), key)
	if errors.Is(err, service.ErrInvalidKey) {
		slog.Info("crowmail verify rejected", "remote_addr", r.RemoteAddr)
		writeText(w, http.StatusBadRequest, "Invalid or expired key")
		return
	}
	if err != nil {
		serverError(w, r, "Error verifying subscription", err)
		return
	}

	writeText(w, http.StatusOK, "Subscription confirmed for "+sub.Email)
}

func (h *CrowmailHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID := f.str("user_id")
	if userID == "" {
		writeText(w, http.StatusBadRequest, "Missing user_id")
		return
	}

	err = h.crowmailService.Unsubscribe(r.Context(), userID)
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		writeText(w, http.StatusNotFound, "Subscriber not found")
		return
	}
	if err != nil {
		serverError(w, r, "Error unsubscribing", err)
		return
	}

	writeText(w, http.StatusOK, "Unsubscribed successfully")
}
