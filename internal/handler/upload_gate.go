package handler

import (
	"log/slog"
	"net/http"

	"github.com/ratethiscrow/crowapi/internal/service"
)

type UploadGateHandler struct {
	gate *service.UploadGate
}

func NewUploadGateHandler(gate *service.UploadGate) *UploadGateHandler {
	return &UploadGateHandler{gate: gate}
}

func (h *UploadGateHandler) ValidatePassword(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	password, _ := f["password"].(string)
	err = h.gate.CheckPassword(password)
	if err != nil {
		slog.Warn("upload password rejected", "remote_addr", r.RemoteAddr)
		writeText(w, http.StatusUnauthorized, "Unauthorized: Incorrect password")
		return
	}

	token, expiresAt, err := h.gate.IssueToken()
	if err != nil {
		serverError(w, r, "Error issuing upload token", err)
		return
	}
	h.gate.SetTokenCookie(w, token, expiresAt)

	writeText(w, http.StatusOK, "Password validated successfully")
}
