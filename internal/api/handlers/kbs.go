package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kbservice/internal/model"
)

func (s *Server) SearchKBs(w http.ResponseWriter, r *http.Request) {
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
	res, err := s.Service.Search(r.Context(), model.KBQueryFilter{
		Key:     q.Get("key"),
		Keyword: q.Get("keyword"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kbs": res.Items}, &pagination{
		Limit: res.Limit, Offset: res.Offset, Total: res.Total,
	})
}

func (s *Server) GetKB(w http.ResponseWriter, r *http.Request) {
	id := model.KBID(chi.URLParam(r, "id"))
	kb, err := s.Service.GetKBWithID(r.Context(), id)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	if !kb.Found() {
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "kb not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kb": kb}, nil)
}

func (s *Server) GetKBByKey(w http.ResponseWriter, r *http.Request) {
	kb, err := s.Service.GetKBWithKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	if !kb.Found() {
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "kb not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kb": kb}, nil)
}

func (s *Server) CreateKB(w http.ResponseWriter, r *http.Request) {
	var req model.NewKnowledgeBase
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "key is required")
		return
	}
	kb, err := s.Service.AddKB(r.Context(), req)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.SaveKBSuccess{ID: kb.ID}, nil)
}

func (s *Server) UpdateKB(w http.ResponseWriter, r *http.Request) {
	var req model.KnowledgeBase
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.ID == "" || strings.TrimSpace(req.Key) == "" {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "id and key are required")
		return
	}
	if err := s.Service.UpdateKB(r.Context(), req); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true}, nil)
}
