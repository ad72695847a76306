package mcpbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbservice/internal/api"
	"kbservice/internal/api/handlers"
	ws "kbservice/internal/api/websocket"
	"kbservice/internal/auth"
	"kbservice/internal/config"
	"kbservice/internal/kbs"
	"kbservice/internal/logging"
	"kbservice/internal/storage"
	"kbservice/internal/storage/memory"
)

func TestMCPInProcessToolRoundTrip(t *testing.T) {
	env := setupMCPTestEnv(t, false)
	bridge := New(Options{Config: env.cfg, Router: env.router})

	client, err := mcpclient.NewInProcessClient(bridge.MCPServer())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	_, err = client.Initialize(ctx, initializeRequest())
	require.NoError(t, err)

	tools, err := client.ListTools(ctx, mcptypes.ListToolsRequest{})
	require.NoError(t, err)
	for _, spec := range ToolSpecs() {
		assert.True(t, hasTool(tools.Tools, spec.Name), spec.Name)
	}

	added, err := client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name: "kbs_add",
			Arguments: map[string]any{
				"payload": map[string]any{"key": "frederick", "value": "king", "tags": []string{"prussia"}},
			},
		},
	})
	require.NoError(t, err)
	require.False(t, added.IsError, "%#v", added)

	var out struct {
		StatusCode int `json:"status_code"`
		Data       struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeResult(t, added, &out)
	assert.Equal(t, http.StatusCreated, out.StatusCode)
	require.NotEmpty(t, out.Data.ID)

	got, err := client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{Name: "kbs_get", Arguments: map[string]any{"id": out.Data.ID}},
	})
	require.NoError(t, err)
	assert.False(t, got.IsError)

	search, err := client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      "kbs_search",
			Arguments: map[string]any{"query": map[string]any{"keyword": "prussia", "limit": 10}},
		},
	})
	require.NoError(t, err)
	require.False(t, search.IsError)
	var page struct {
		Pagination struct {
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"pagination"`
	}
	decodeResult(t, search, &page)
	assert.Equal(t, 10, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.Total)

	dup, err := client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      "kbs_add",
			Arguments: map[string]any{"payload": map[string]any{"key": "frederick"}},
		},
	})
	require.NoError(t, err)
	assert.True(t, dup.IsError)

	missing, err := client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{Name: "kbs_get"},
	})
	require.NoError(t, err)
	assert.True(t, missing.IsError)
}

func TestMCPHTTPAuth(t *testing.T) {
	env := setupMCPTestEnv(t, true)
	bridge := New(Options{Config: env.cfg, Router: env.router})

	ts := httptest.NewServer(bridge.HTTPHandler())
	defer ts.Close()

	ctx := context.Background()
	call := func(headers map[string]string) *mcptypes.CallToolResult {
		t.Helper()
		client, err := mcpclient.NewStreamableHttpClient(ts.URL+env.cfg.MCP.HTTP.Path, transport.WithHTTPHeaders(headers))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		require.NoError(t, client.Start(ctx))
		_, err = client.Initialize(ctx, initializeRequest())
		require.NoError(t, err)
		res, err := client.CallTool(ctx, mcptypes.CallToolRequest{
			Params: mcptypes.CallToolParams{
				Name:      "categories_add",
				Arguments: map[string]any{"payload": map[string]any{"name": "languages"}},
			},
		})
		require.NoError(t, err)
		return res
	}

	denied := call(map[string]string{})
	assert.True(t, denied.IsError)

	allowed := call(map[string]string{"Authorization": "Bearer " + env.apiKey})
	assert.False(t, allowed.IsError)
}

func TestToolTarget(t *testing.T) {
	byKey := ToolSpec{Path: "/api/v1/kbs/key/{key}"}
	target, err := byKey.target(map[string]any{"key": "a b/c"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/kbs/key/a%20b%2Fc", target)

	_, err = ToolSpec{Path: "/api/v1/kbs/{id}"}.target(map[string]any{})
	assert.Error(t, err)

	search := ToolSpec{Path: "/api/v1/kbs", HasQuery: true}
	target, err = search.target(map[string]any{"query": map[string]any{"keyword": "cast", "limit": float64(10), "offset": nil}})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/kbs?keyword=cast&limit=10", target)

	target, err = search.target(nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/kbs", target)
}

type mcpTestEnv struct {
	cfg    config.Config
	router http.Handler
	apiKey string
}

func setupMCPTestEnv(t *testing.T, authEnabled bool) mcpTestEnv {
	t.Helper()
	log := logging.Discard()

	cfg := config.Default()
	cfg.Database.Driver = config.DriverMemory
	cfg.MCP.HTTP.Enabled = true
	cfg.MCP.HTTP.Path = "/mcp"

	var apiKey string
	if authEnabled {
		key, hash, err := auth.GenerateAPIKey("test")
		require.NoError(t, err)
		cfg.Auth.Enabled = true
		cfg.Auth.KeyHashes = []string{hash}
		apiKey = key
	}

	svc := kbs.NewService(memory.New(), log)
	hub := ws.NewHub(ws.Options{Events: svc.Events, Logger: log})
	server := handlers.New(svc, cfg, storage.Backuper{}, log)
	return mcpTestEnv{
		cfg:    cfg,
		router: api.NewRouter(server, hub, log),
		apiKey: apiKey,
	}
}

func decodeResult(t *testing.T, res *mcptypes.CallToolResult, dst any) {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := mcptypes.AsTextContent(res.Content[0])
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), dst))
}

func initializeRequest() mcptypes.InitializeRequest {
	return mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcptypes.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcptypes.Implementation{
				Name:    "kbservice-test-client",
				Version: "0.0.1",
			},
			Capabilities: mcptypes.ClientCapabilities{},
		},
	}
}

func hasTool(tools []mcptypes.Tool, name string) bool {
	for _, tool := range tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}
