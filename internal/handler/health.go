package handler

import "net/http"

func Health(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "OK")
}
