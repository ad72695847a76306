package repos

import (
	"context"

	"kbservice/internal/kbs"
	"kbservice/internal/model"
)

func (s *Store) SaveCategory(ctx context.Context, c model.Category) (string, error) {
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO categories(category_name, category_desc) VALUES (?, ?)",
		c.Name, c.Description)
	if err != nil {
		return "", s.writeErr(ctx, "insert category", err)
	}
	return c.Name, nil
}

func (s *Store) ListCategories(ctx context.Context, f model.CategoryFilter) ([]model.Category, error) {
	where := ""
	args := []any{}
	if f.Keyword != "" {
		where = `WHERE category_name LIKE ? ESCAPE '\'`
		args = append(args, "%"+kbs.EscapeLike(f.Keyword)+"%")
	}
	query := `
SELECT category_name, category_desc
FROM categories ` + where + `
ORDER BY category_name ASC
LIMIT ? OFFSET ?`
	args = append(args, sqlLimit(f.PageLimit()), f.PageOffset())

	rows, err := s.DB.QueryContext(ctx, query, args...)
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
