package sdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbservice/internal/api"
	"kbservice/internal/api/handlers"
	ws "kbservice/internal/api/websocket"
	"kbservice/internal/config"
	"kbservice/internal/kbs"
	"kbservice/internal/logging"
	"kbservice/internal/storage"
	"kbservice/internal/storage/memory"
	"kbservice/pkg/sdk"
)

func newTestClient(t *testing.T) *sdk.Client {
	t.Helper()
	log := logging.Discard()
	cfg := config.Default()
	cfg.Database.Driver = config.DriverMemory

	svc := kbs.NewService(memory.New(), log)
	hub := ws.NewHub(ws.Options{Events: svc.Events, Logger: log})
	server := handlers.New(svc, cfg, storage.Backuper{}, log)
	ts := httptest.NewServer(api.NewRouter(server, hub, log))
	t.Cleanup(ts.Close)
	return sdk.New(sdk.Config{BaseURL: ts.URL + "/"})
}

func TestClientKBRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.KBs.Add(ctx, sdk.KB{Key: "rick", Value: "sanchez", Kind: "person", Tags: []string{"scientist"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	kb, err := c.KBs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "sanchez", kb.Value)
	assert.Equal(t, []string{"scientist"}, kb.Tags)

	kb.Notes = "grandpa"
	require.NoError(t, c.KBs.Update(ctx, kb))

	byKey, err := c.KBs.GetByKey(ctx, "rick")
	require.NoError(t, err)
	assert.Equal(t, "grandpa", byKey.Notes)

	_, err = c.KBs.Add(ctx, sdk.KB{Key: "rick"})
	var apiErr *sdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "DUPLICATE_KB", apiErr.Code)

	_, err = c.KBs.Get(ctx, "nope")
	assert.True(t, sdk.IsNotFound(err))
}

func TestClientSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	for _, key := range []string{"rick", "patrick", "frederick"} {
		_, err := c.KBs.Add(ctx, sdk.KB{Key: key, Tags: []string{"cast"}})
		require.NoError(t, err)
	}

	page, err := c.KBs.Search(ctx, sdk.SearchQuery{Key: "rick"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 5, page.Pagination.Limit)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "frederick", page.Items[0].Key)

	one := 1
	page, err = c.KBs.Search(ctx, sdk.SearchQuery{Keyword: "cast", Limit: &one, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "patrick", page.Items[0].Key)

	page, err = c.KBs.Search(ctx, sdk.SearchQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestClientCategories(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Categories.Add(ctx, sdk.Category{Name: "languages", Description: "programming"}))
	require.NoError(t, c.Categories.Add(ctx, sdk.Category{Name: "people"}))

	list, err := c.Categories.List(ctx, "lang", nil, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "programming", list[0].Description)
}

func TestClientBackupUnsupported(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Admin.Backup(context.Background())
	var apiErr *sdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotImplemented, apiErr.Status)
}
