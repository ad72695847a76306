package handlers

import (
	"net/http"
	"strings"

	"kbservice/internal/model"
)

func (s *Server) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req model.Category
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
		return
	}
	ok, err := s.Service.AddCategory(r.Context(), req)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.SaveCategorySuccess{OK: ok}, nil)
}

func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	offset, err := parseOffset(q.Get("offset"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	categories, err := s.Service.ListCategories(r.Context(), model.CategoryFilter{
		Keyword: q.Get("keyword"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories}, nil)
}
