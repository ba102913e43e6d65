package handler

import (
	"encoding/json"
	"net/http"
)

// fileResponse follows the status-in-body convention of the storage routes.
type fileResponse struct {
	StatusCode int    `json:"statusCode"`
	Link       string `json:"link,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
