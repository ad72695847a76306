package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"kbservice/internal/kbs"
)

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type envelope struct {
	OK         bool        `json:"ok"`
	Data       any         `json:"data"`
	Error      any         `json:"error"`
	Pagination *pagination `json:"pagination"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any, pg *pagination) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		OK:         status >= 200 && status < 300,
		Data:       data,
		Error:      nil,
		Pagination: pg,
	})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		OK:    false,
		Data:  nil,
		Error: apiError{Code: code, Message: message},
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseLimit returns nil for an absent value so the model default applies.
func parseLimit(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil || v < 0 {
		return nil, errors.New("limit must be a non-negative integer")
	}
	return &v, nil
}

func parseOffset(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil || v < 0 {
		return 0, errors.New("offset must be a non-negative integer")
	}
	return v, nil
}

// writeServiceErr maps kbs sentinels onto status codes. Messages are the sentinel text only.
func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kbs.ErrDuplicateKB):
		writeErr(w, http.StatusConflict, "DUPLICATE_KB", err.Error())
	case errors.Is(err, kbs.ErrKBWasNotUpdated):
		writeErr(w, http.StatusNotFound, "KB_NOT_UPDATED", err.Error())
	case errors.Is(err, kbs.ErrUpdateKB):
		writeErr(w, http.StatusInternalServerError, "UPDATE_KB_ERROR", err.Error())
	case errors.Is(err, kbs.ErrCreateKB):
		writeErr(w, http.StatusInternalServerError, "CREATE_KB_ERROR", err.Error())
	case errors.Is(err, kbs.ErrGetKB):
		writeErr(w, http.StatusInternalServerError, "GET_KB_ERROR", err.Error())
	case errors.Is(err, kbs.ErrCreateCategory):
		writeErr(w, http.StatusInternalServerError, "CREATE_CATEGORY_ERROR", err.Error())
	case errors.Is(err, kbs.ErrListCategories):
		writeErr(w, http.StatusInternalServerError, "QUERY_ERROR", err.Error())
	case errors.Is(err, kbs.ErrSearch):
		writeErr(w, http.StatusInternalServerError, "SEARCH_ERROR", err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
