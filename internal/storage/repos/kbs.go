package repos

import (
	"context"
	"database/sql"
	"errors"

	"kbservice/internal/kbs"
	"kbservice/internal/model"
)

const kbColumns = "kb_id, kb_key, kb_value, notes, kind, kb_reference, tags"

func (s *Store) GetKBByID(ctx context.Context, id model.KBID) (model.KnowledgeBase, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+kbColumns+" FROM kbs WHERE kb_id = ?", id.String())
	kb, err := scanKB(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.KnowledgeBase{}, nil
	}
	if err != nil {
		return model.KnowledgeBase{}, s.queryErr(ctx, "get kb by id", err)
	}
	return kb, nil
}

func (s *Store) GetKBByKey(ctx context.Context, key string) (model.KnowledgeBase, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+kbColumns+" FROM kbs WHERE kb_key = ?", key)
	kb, err := scanKB(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.KnowledgeBase{}, nil
	}
	if err != nil {
		return model.KnowledgeBase{}, s.queryErr(ctx, "get kb by key", err)
	}
	return kb, nil
}

func (s *Store) SearchByKey(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	where := `WHERE kb_key LIKE ? ESCAPE '\'`
	args := []any{"%" + kbs.EscapeLike(filter.Key) + "%"}
	return s.searchKBs(ctx, "search by key", filter, where, args)
}

// Search matches the keyword against the FTS5 index over tags.
func (s *Store) Search(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	match := kbs.BuildFTSQuery(filter.Keyword)
	if match == "" {
		return model.EmptySearchResult(filter), nil
	}
	where := "WHERE rowid IN (SELECT rowid FROM kbs_fts WHERE kbs_fts MATCH ?)"
	return s.searchKBs(ctx, "search by keyword", filter, where, []any{match})
}

func (s *Store) searchKBs(ctx context.Context, op string, filter model.KBQueryFilter, where string, args []any) (model.SearchResult, error) {
	limit, offset := filter.PageLimit(), filter.PageOffset()

	var total int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM kbs "+where, args...).Scan(&total); err != nil {
		return model.SearchResult{}, s.queryErr(ctx, op+" count", err)
	}

	query := `
SELECT kb_id, kb_key, kind, tags
FROM kbs ` + where + `
ORDER BY kb_key ASC
LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), sqlLimit(limit), offset)
	rows, err := s.DB.QueryContext(ctx, query, pageArgs...)
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
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO kbs(kb_id, kb_key, kb_value, notes, kind, kb_reference, tags)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		kb.ID.String(),
		kb.Key,
		kb.Value,
		kb.Notes,
		kb.Kind,
		nullString(kb.Reference),
		kbs.JoinTags(kb.Tags),
	)
	if err != nil {
		return "", s.writeErr(ctx, "insert kb", err)
	}
	return kb.ID, nil
}

func (s *Store) UpdateKB(ctx context.Context, kb model.KnowledgeBase) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
UPDATE kbs
SET kb_key = ?, kb_value = ?, notes = ?, kind = ?, kb_reference = ?, tags = ?
WHERE kb_id = ?`,
		kb.Key,
		kb.Value,
		kb.Notes,
		kb.Kind,
		nullString(kb.Reference),
		kbs.JoinTags(kb.Tags),
		kb.ID.String(),
	)
	if err != nil {
		return false, s.writeErr(ctx, "update kb", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.writeErr(ctx, "update kb rows affected", err)
	}
	return n > 0, nil
}

func scanKB(scanner interface {
	Scan(dest ...any) error
}) (model.KnowledgeBase, error) {
	var (
		kb        model.KnowledgeBase
		id        string
		reference sql.NullString
		tags      string
	)
	if err := scanner.Scan(&id, &kb.Key, &kb.Value, &kb.Notes, &kb.Kind, &reference, &tags); err != nil {
		return model.KnowledgeBase{}, err
	}
	kb.ID = model.KBID(id)
	kb.Reference = reference.String
	kb.Tags = kbs.SplitTags(tags)
	return kb, nil
}
