package repos

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbservice/internal/config"
	"kbservice/internal/kbs"
	"kbservice/internal/logging"
	"kbservice/internal/model"
	"kbservice/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "kbs.db")

	db, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = storage.Migrate(ctx, db)
	require.NoError(t, err)
	return New(db, logging.Discard())
}

func seedKB(t *testing.T, s *Store, key string, tags ...string) model.KnowledgeBase {
	t.Helper()
	kb := model.NewKnowledgeBase{
		Key:   key,
		Value: key + " value",
		Notes: key + " notes",
		Kind:  "person",
		Tags:  tags,
	}.ToKnowledgeBase()
	id, err := s.SaveKB(context.Background(), kb)
	require.NoError(t, err)
	require.Equal(t, kb.ID, id)
	return kb
}

func countKBs(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM kbs").Scan(&n))
	return n
}

func itemKeys(items []model.KBItem) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	return keys
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	kb := model.NewKnowledgeBase{
		Key:       "frederick",
		Value:     "v",
		Notes:     "n",
		Kind:      "k",
		Reference: "https://example.org/frederick",
		Tags:      []string{"it's", "a", `"quoted"`, "", "tag"},
	}.ToKnowledgeBase()
	_, err := s.SaveKB(ctx, kb)
	require.NoError(t, err)

	byID, err := s.GetKBByID(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, kb.ID, byID.ID)
	assert.Equal(t, "https://example.org/frederick", byID.Reference)
	assert.Equal(t, []string{"its", "a", "quoted", "tag"}, byID.Tags)

	byKey, err := s.GetKBByKey(ctx, "frederick")
	require.NoError(t, err)
	assert.Equal(t, byID, byKey)
}

func TestGetMissingReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	kb, err := s.GetKBByID(ctx, model.NewKBID())
	require.NoError(t, err)
	assert.False(t, kb.Found())

	kb, err = s.GetKBByKey(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, kb.Found())
}

func TestEmptyReferenceStoredAsNull(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kb := seedKB(t, s, "rick")

	var isNull bool
	require.NoError(t, s.DB.QueryRowContext(ctx, "SELECT kb_reference IS NULL FROM kbs WHERE kb_id = ?", kb.ID.String()).Scan(&isNull))
	assert.True(t, isNull)
}

func TestSearchByKeyOrderingAndTotal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, key := range []string{"rick", "patrick", "frederick", "morty"} {
		seedKB(t, s, key)
	}

	res, err := s.SearchByKey(ctx, model.KBQueryFilter{Key: "rick"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{"frederick", "patrick", "rick"}, itemKeys(res.Items))
	assert.Equal(t, model.DefaultPageLimit, res.Limit)
}

func TestSearchByKeyPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, key := range []string{"frederick", "patrick", "rick"} {
		seedKB(t, s, key)
	}

	tests := []struct {
		limit  *int
		offset int
		want   int
	}{
		{limit: model.Limit(1), offset: 0, want: 1},
		{limit: model.Limit(2), offset: 2, want: 1},
		{limit: model.Limit(2), offset: 3, want: 0},
		{limit: model.Limit(5), offset: 10, want: 0},
		{limit: model.Limit(0), offset: 1, want: 2},
		{limit: nil, offset: -4, want: 3},
	}
	for _, tt := range tests {
		res, err := s.SearchByKey(ctx, model.KBQueryFilter{Key: "rick", Limit: tt.limit, Offset: tt.offset})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Len(t, res.Items, tt.want, "limit=%v offset=%d", tt.limit, tt.offset)
	}
}

func TestSearchByKeyEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedKB(t, s, "100%_done")
	seedKB(t, s, "100 done")

	res, err := s.SearchByKey(ctx, model.KBQueryFilter{Key: "%_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"100%_done"}, itemKeys(res.Items))
}

func TestSearchByKeyword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedKB(t, s, "golang", "language", "compiled")
	seedKB(t, s, "python", "language", "interpreted")
	seedKB(t, s, "postgres", "database")

	res, err := s.Search(ctx, model.KBQueryFilter{Keyword: "language"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"golang", "python"}, itemKeys(res.Items))
	assert.Equal(t, []string{"language", "compiled"}, res.Items[0].Tags)

	res, err = s.Search(ctx, model.KBQueryFilter{Keyword: "language compiled"})
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, itemKeys(res.Items))

	res, err = s.Search(ctx, model.KBQueryFilter{Keyword: `"'`})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.NotNil(t, res.Items)
}

// The index tokenizes the raw column, so a quoted tag is searchable by its pieces, not by the stripped
// token returned on read.
func TestSearchByKeywordUsesIndexedTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kb := seedKB(t, s, "contraction", "it's")

	got, err := s.GetKBByID(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"its"}, got.Tags)

	res, err := s.Search(ctx, model.KBQueryFilter{Keyword: "its"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	res, err = s.Search(ctx, model.KBQueryFilter{Keyword: "it"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestSearchByKeywordSplitsOnAnyWhitespace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedKB(t, s, "palette", "color", "concepts")
	seedKB(t, s, "paint", "color")

	res, err := s.Search(ctx, model.KBQueryFilter{Keyword: "color\tconcepts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"palette"}, itemKeys(res.Items))
}

func TestSearchByKeywordFollowsUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kb := seedKB(t, s, "golang", "language")

	kb.Tags = []string{"gopher"}
	ok, err := s.UpdateKB(ctx, kb)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := s.Search(ctx, model.KBQueryFilter{Keyword: "language"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	res, err = s.Search(ctx, model.KBQueryFilter{Keyword: "gopher"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestUpdateKB(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kb := seedKB(t, s, "frederick")

	kb.Value = "new value"
	kb.Reference = "ref"
	ok, err := s.UpdateKB(ctx, kb)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetKBByID(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, "new value", got.Value)
	assert.Equal(t, "ref", got.Reference)

	ok, err = s.UpdateKB(ctx, model.KnowledgeBase{ID: model.NewKBID(), Key: "ghost"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDuplicateKeyIsReported(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedKB(t, s, "frederick")
	patrick := seedKB(t, s, "patrick")

	_, err := s.SaveKB(ctx, model.NewKnowledgeBase{Key: "frederick"}.ToKnowledgeBase())
	assert.ErrorIs(t, err, kbs.ErrStorageWrite)
	assert.ErrorIs(t, err, kbs.ErrDuplicateKB)

	patrick.Key = "frederick"
	_, err = s.UpdateKB(ctx, patrick)
	assert.ErrorIs(t, err, kbs.ErrDuplicateKB)

	assert.Equal(t, 2, countKBs(t, s))
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, c := range []model.Category{
		{Name: "languages", Description: "programming languages"},
		{Name: "databases", Description: "storage engines"},
		{Name: "language_tools", Description: "linters"},
	} {
		name, err := s.SaveCategory(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, c.Name, name)
	}

	_, err := s.SaveCategory(ctx, model.Category{Name: "databases"})
	assert.ErrorIs(t, err, kbs.ErrStorageWrite)

	all, err := s.ListCategories(ctx, model.CategoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "databases", all[0].Name)

	filtered, err := s.ListCategories(ctx, model.CategoryFilter{Keyword: "language"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	byDescription, err := s.ListCategories(ctx, model.CategoryFilter{Keyword: "engines"})
	require.NoError(t, err)
	assert.Empty(t, byDescription)

	paged, err := s.ListCategories(ctx, model.CategoryFilter{Limit: model.Limit(1), Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "language_tools", paged[0].Name)
}
