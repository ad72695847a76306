// Package pgstore is the PostgreSQL kbs.Storer, backed by a pgx connection pool. Keyword search runs
// against a generated tsvector column over the tag list.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kbservice/internal/config"
	"kbservice/internal/kbs"
	"kbservice/internal/model"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS kbs (
  kb_id TEXT PRIMARY KEY,
  kb_key TEXT NOT NULL,
  kb_value TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL DEFAULT '',
  kb_reference TEXT,
  tags TEXT NOT NULL DEFAULT '',
  tags_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', tags)) STORED
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_kbs_key ON kbs (kb_key);
CREATE INDEX IF NOT EXISTS idx_kbs_tags_tsv ON kbs USING GIN (tags_tsv);
CREATE TABLE IF NOT EXISTS categories (
  category_name TEXT PRIMARY KEY,
  category_desc TEXT NOT NULL DEFAULT ''
);`

type Store struct {
	Pool *pgxpool.Pool
	log  *slog.Logger
}

var _ kbs.Storer = (*Store)(nil)

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Pool: pool, log: logger.With("component", "postgres")}
}

// Open connects to the database described by cfg.Database with MaxConns = max_connections.
func Open(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	return OpenURL(ctx, config.PostgresURL(cfg), cfg.Database.MaxConnections)
}

func OpenURL(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 5
	}
	pcfg.MaxConns = int32(maxConns)
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

const kbColumns = "kb_id, kb_key, kb_value, notes, kind, kb_reference, tags"

func (s *Store) GetKBByID(ctx context.Context, id model.KBID) (model.KnowledgeBase, error) {
	return s.getKB(ctx, "get kb by id", "kb_id", id.String())
}

func (s *Store) GetKBByKey(ctx context.Context, key string) (model.KnowledgeBase, error) {
	return s.getKB(ctx, "get kb by key", "kb_key", key)
}

func (s *Store) getKB(ctx context.Context, op, column, value string) (model.KnowledgeBase, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+kbColumns+" FROM kbs WHERE "+column+" = $1", value)
	var (
		kb        model.KnowledgeBase
		id        string
		reference *string
		tags      string
	)
	err := row.Scan(&id, &kb.Key, &kb.Value, &kb.Notes, &kb.Kind, &reference, &tags)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.KnowledgeBase{}, nil
	}
	if err != nil {
		return model.KnowledgeBase{}, s.queryErr(ctx, op, err)
	}
	kb.ID = model.KBID(id)
	if reference != nil {
		kb.Reference = *reference
	}
	kb.Tags = kbs.SplitTags(tags)
	return kb, nil
}

func (s *Store) SearchByKey(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	where := `WHERE kb_key LIKE $1 ESCAPE '\'`
	return s.searchKBs(ctx, "search by key", filter, where, "%"+kbs.EscapeLike(filter.Key)+"%")
}

func (s *Store) Search(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	query := kbs.BuildTSQuery(filter.Keyword)
	if query == "" {
		return model.EmptySearchResult(filter), nil
	}
	where := "WHERE tags_tsv @@ to_tsquery('simple', $1)"
	return s.searchKBs(ctx, "search by keyword", filter, where, query)
}

func (s *Store) searchKBs(ctx context.Context, op string, filter model.KBQueryFilter, where, term string) (model.SearchResult, error) {
	limit, offset := filter.PageLimit(), filter.PageOffset()

	var total int
	if err := s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM kbs "+where, term).Scan(&total); err != nil {
		return model.SearchResult{}, s.queryErr(ctx, op+" count", err)
	}

	rows, err := s.Pool.Query(ctx, `
SELECT kb_id, kb_key, kind, tags
FROM kbs `+where+`
ORDER BY kb_key ASC
LIMIT $2 OFFSET $3`, term, pgLimit(limit), offset)
	if err != nil {
		return model.SearchResult{}, s.queryErr(ctx, op, err)
	}
	defer rows.Close()

	items := make([]model.KBItem, 0)
	for rows.Next() {
		var (
			item model.KBItem
			id   string
			tags string
		)
		if err := rows.Scan(&id, &item.Key, &item.Kind, &tags); err != nil {
			return model.SearchResult{}, s.queryErr(ctx, op+" scan", err)
		}
		item.ID = model.KBID(id)
		item.Tags = kbs.SplitTags(tags)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return model.SearchResult{}, s.queryErr(ctx, op, err)
	}
	return model.SearchResult{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *Store) SaveKB(ctx context.Context, kb model.KnowledgeBase) (model.KBID, error) {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO kbs (kb_id, kb_key, kb_value, notes, kind, kb_reference, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		kb.ID.String(), kb.Key, kb.Value, kb.Notes, kb.Kind, nullable(kb.Reference), kbs.JoinTags(kb.Tags))
	if err != nil {
		return "", s.writeErr(ctx, "insert kb", err)
	}
	return kb.ID, nil
}

func (s *Store) UpdateKB(ctx context.Context, kb model.KnowledgeBase) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
UPDATE kbs
SET kb_key = $1, kb_value = $2, notes = $3, kind = $4, kb_reference = $5, tags = $6
WHERE kb_id = $7`,
		kb.Key, kb.Value, kb.Notes, kb.Kind, nullable(kb.Reference), kbs.JoinTags(kb.Tags), kb.ID.String())
	if err != nil {
		return false, s.writeErr(ctx, "update kb", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) SaveCategory(ctx context.Context, c model.Category) (string, error) {
	_, err := s.Pool.Exec(ctx,
		"INSERT INTO categories (category_name, category_desc) VALUES ($1, $2)", c.Name, c.Description)
	if err != nil {
		return "", s.writeErr(ctx, "insert category", err)
	}
	return c.Name, nil
}

func (s *Store) ListCategories(ctx context.Context, f model.CategoryFilter) ([]model.Category, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT category_name, category_desc
FROM categories
WHERE $1 = '' OR category_name LIKE '%' || $1 || '%' ESCAPE '\'
ORDER BY category_name ASC
LIMIT $2 OFFSET $3`, kbs.EscapeLike(f.Keyword), pgLimit(f.PageLimit()), f.PageOffset())
	if err != nil {
		return nil, s.queryErr(ctx, "list categories", err)
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Name, &c.Description); err != nil {
			return nil, s.queryErr(ctx, "scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr(ctx, "list categories", err)
	}
	return out, nil
}

func (s *Store) queryErr(ctx context.Context, op string, err error) error {
	s.log.ErrorContext(ctx, "postgres query failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", kbs.ErrStorageQuery, op, err)
}

func (s *Store) writeErr(ctx context.Context, op string, err error) error {
	s.log.ErrorContext(ctx, "postgres write failed", "op", op, "error", err)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "idx_kbs_key" {
		return fmt.Errorf("%w: %s: %w: %w", kbs.ErrStorageWrite, op, kbs.ErrDuplicateKB, err)
	}
	return fmt.Errorf("%w: %s: %w", kbs.ErrStorageWrite, op, err)
}

// pgLimit maps the "0 is unbounded" page limit onto LIMIT NULL.
func pgLimit(limit int) any {
	if limit == 0 {
		return nil
	}
	return limit
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
