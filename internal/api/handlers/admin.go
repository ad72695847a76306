package handlers

import (
	"errors"
	"net/http"

	"kbservice/internal/storage"
)

func (s *Server) AdminBackup(w http.ResponseWriter, r *http.Request) {
	if s.Backup == nil {
		writeErr(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", storage.ErrBackupUnsupported.Error())
		return
	}
	path, err := s.Backup.Backup(r.Context())
	if errors.Is(err, storage.ErrBackupUnsupported) {
		writeErr(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", err.Error())
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "backup failed", "error", err)
		writeErr(w, http.StatusInternalServerError, "BACKUP_ERROR", "backup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup_path": path}, nil)
}

func (s *Server) AdminConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.Config
	cfg.Database.Password = ""
	cfg.Auth.KeyHashes = nil
	writeJSON(w, http.StatusOK, map[string]any{"config": cfg}, nil)
}
