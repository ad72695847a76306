package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"kbservice/internal/config"
	"kbservice/internal/kbs"
)

// Backuper snapshots the backing store. Drivers without a file return storage.ErrBackupUnsupported.
type Backuper interface {
	Backup(ctx context.Context) (string, error)
}

type Server struct {
	Service *kbs.Service
	Config  config.Config
	Backup  Backuper
	log     *slog.Logger
}

func New(svc *kbs.Service, cfg config.Config, backup Backuper, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Service: svc,
		Config:  cfg,
		Backup:  backup,
		log:     logger.With("component", "http"),
	}
}

func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"driver": s.Config.Database.Driver,
	}, nil)
}
