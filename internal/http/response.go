package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fjod/marketplace/internal/domain"
	"go.uber.org/zap"
)

// Response is the envelope of every API response.
type Response struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Data       any                `json:"data,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondData(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func respondPage(w http.ResponseWriter, data any, pagination domain.Pagination) {
	respondJSON(w, http.StatusOK, Response{Success: true, Data: data, Pagination: &pagination})
}

func respondError(w http.ResponseWriter, status int, message string, details any) {
	respondJSON(w, status, Response{Success: false, Message: message, Data: details})
}

// parsePage reads ?page= and ?limit=, falling back to the defaults on bad input.
func parsePage(r *http.Request) domain.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return domain.NewPage(page, limit)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
