package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"kbservice/internal/api"
	"kbservice/internal/api/handlers"
	ws "kbservice/internal/api/websocket"
	"kbservice/internal/config"
	"kbservice/internal/kbs"
	mcpbridge "kbservice/internal/mcp"
	"kbservice/internal/storage"
	"kbservice/internal/storage/memory"
	"kbservice/internal/storage/pgstore"
	"kbservice/internal/storage/repos"
)

// runtime is the wired service graph shared by the server and mcp commands.
type runtime struct {
	cfg     config.Config
	service *kbs.Service
	backup  storage.Backuper
	hub     *ws.Hub
	router  http.Handler
	closers []func()
}

func openRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	var store kbs.Storer
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := storage.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		applied, err := storage.Migrate(ctx, db)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "versions", strings.Join(applied, ","))
		}
		store = repos.New(db, logger)
		rt.backup = storage.Backuper{DB: db, Dir: cfg.Database.BackupPath}
	case config.DriverPostgres:
		pool, err := pgstore.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := pgstore.Migrate(ctx, pool); err != nil {
			rt.Close()
			return nil, err
		}
		store = pgstore.New(pool, logger)
	case config.DriverMemory:
		store = memory.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	rt.service = kbs.NewService(store, logger)
	rt.hub = ws.NewHub(ws.Options{
		Events:      rt.service.Events,
		AuthEnabled: cfg.Auth.Enabled,
		KeyHashes:   cfg.Auth.KeyHashes,
		Logger:      logger,
	})
	server := handlers.New(rt.service, cfg, rt.backup, logger)
	rt.router = api.NewRouter(server, rt.hub, logger)
	return rt, nil
}

func (rt *runtime) bridge(defaultAPIKey string) *mcpbridge.Bridge {
	return mcpbridge.New(mcpbridge.Options{
		Config:        rt.cfg,
		Router:        rt.router,
		DefaultAPIKey: defaultAPIKey,
		Version:       version,
	})
}

// handler mounts the MCP streamable HTTP endpoint next to the REST routes when enabled.
func (rt *runtime) handler() http.Handler {
	if !rt.cfg.MCP.HTTP.Enabled {
		return rt.router
	}
	mcpPath := rt.cfg.MCP.HTTP.Path
	mcpHandler := rt.bridge("").HTTPHandler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == mcpPath || strings.HasPrefix(r.URL.Path, mcpPath+"/") {
			mcpHandler.ServeHTTP(w, r)
			return
		}
		rt.router.ServeHTTP(w, r)
	})
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
