package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ratethiscrow/crowapi/internal/model"
	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/service"
)

type CrowHandler struct {
	crowService *service.CrowService
	ratingMin   float64
	ratingMax   float64
}

func NewCrowHandler(crowService *service.CrowService, ratingMin, ratingMax float64) *CrowHandler {
	return &CrowHandler{
		crowService: crowService,
		ratingMin:   ratingMin,
		ratingMax:   ratingMax,
	}
}

type uploadResponse struct {
	CrowID     string `json:"crow_id"`
	ImgURL     string `json:"img_url"`
	CreditName string `json:"credit_name"`
	CreditLink string `json:"credit_link"`
}

func (h *CrowHandler) Random(w http.ResponseWriter, r *http.Request) {
	crow, err := h.crowService.Random(r.Context())
	if errors.Is(err, repository.ErrCrowNotFound) {
		writeText(w, http.StatusNotFound, "No data found")
		return
	}
	if err != nil {
		serverError(w, r, "Error fetching random crow", err)
		return
	}

	writeJSON(w, http.StatusOK, crow)
}

func (h *CrowHandler) Rate(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	crowID := f.str("crow_id")
	score, ok := f.number("rating")
	// A zero rating counts as missing, as the web client has always sent it.
	if crowID == "" || !ok || score == 0 {
		writeText(w, http.StatusBadRequest, "Missing crow_id or rating")
		return
	}

	_, err = h.crowService.Rate(r.Context(), crowID, score)
	switch {
	case errors.Is(err, service.ErrInvalidRating):
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Rating must be between %g and %g", h.ratingMin, h.ratingMax))
		return
	case errors.Is(err, repository.ErrCrowNotFound):
		writeText(w, http.StatusNotFound, "Crow not found")
		return
	case err != nil:
		serverError(w, r, "Error updating rating", err)
		return
	}

	writeText(w, http.StatusOK, "Rating updated successfully")
}

// Upload accepts either an img_url field or a multipart image file.
func (h *CrowHandler) Upload(w http.ResponseWriter, r *http.Request) {
	f, err := parseFields(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := service.NewCrow{
		ImgURL:     f.str("img_url"),
		CreditName: f.str("credit_name"),
		CreditLink: f.str("credit_link"),
	}

	var crow *model.Crow
	if r.MultipartForm != nil && len(r.MultipartForm.File["image"]) > 0 && in.ImgURL == "" {
		crow, err = h.crowService.UploadImage(r.Context(), r.MultipartForm.File["image"][0], in)
	} else {
		crow, err = h.crowService.Upload(r.Context(), in)
	}

	switch {
	case errors.Is(err, service.ErrMissingImage):
		writeText(w, http.StatusBadRequest, "Missing img_url")
		return
	case errors.Is(err, service.ErrStorageDisabled):
		writeText(w, http.StatusBadRequest, "Image uploads are not enabled")
		return
	case errors.Is(err, service.ErrInvalidImage):
		slog.Warn("image upload rejected", "error", err)
		writeText(w, http.StatusBadRequest, "Invalid image")
		return
	case err != nil:
		serverError(w, r, "Error uploading new crow", err)
		return
	}

	details := crow.Details()
	writeJSON(w, http.StatusOK, uploadResponse{
		CrowID:     details.CrowID,
		ImgURL:     details.ImgURL,
		CreditName: details.CreditName,
		CreditLink: details.CreditLink,
	})
}

func (h *CrowHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	crows, err := h.crowService.Leaderboard(r.Context())
	if err != nil {
		serverError(w, r, "Error fetching leaderboard", err)
		return
	}

	writeJSON(w, http.StatusOK, crows)
}

func (h *CrowHandler) AllCrows(w http.ResponseWriter, r *http.Request) {
	crows, err := h.crowService.All(r.Context())
	if err != nil {
		serverError(w, r, "Error fetching all crows", err)
		return
	}

	if len(crows) == 0 {
		writeText(w, http.StatusNotFound, "No data found")
		return
	}

	writeJSON(w, http.StatusOK, crows)
}

func (h *CrowHandler) Crow(w http.ResponseWriter, r *http.Request) {
	details, err := h.crowService.Crow(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrCrowNotFound) {
		writeText(w, http.StatusNotFound, "Crow not found")
		return
	}
	if err != nil {
		serverError(w, r, "Error fetching crow", err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}
