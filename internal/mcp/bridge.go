package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	apimw "kbservice/internal/api/middleware"
	"kbservice/internal/auth"
	"kbservice/internal/config"
)

type Options struct {
	Config        config.Config
	Router        http.Handler
	DefaultAPIKey string
	Version       string
}

// Bridge exposes the REST routes as MCP tools. Calls are served in-process by the router, so the
// HTTP error mapping and auth rules apply unchanged.
type Bridge struct {
	cfg           config.Config
	router        http.Handler
	defaultAPIKey string
	server        *mcpserver.MCPServer
}

type ToolSpec struct {
	Name        string
	Description string
	Method      string
	Path        string
	HasPayload  bool
	HasQuery    bool
}

type apiEnvelope struct {
	OK    bool `json:"ok"`
	Data  any  `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Pagination any `json:"pagination"`
}

var routeParamPattern = regexp.MustCompile(`\{([^{}]+)\}`)

func New(opts Options) *Bridge {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	b := &Bridge{
		cfg:           opts.Config,
		router:        opts.Router,
		defaultAPIKey: strings.TrimSpace(opts.DefaultAPIKey),
	}
	b.server = mcpserver.NewMCPServer(
		"kbservice",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions("Use kbservice tools to look up, search, add and update knowledge-base entries and categories."),
	)
	for _, spec := range ToolSpecs() {
		b.server.AddTool(spec.toTool(), b.makeToolHandler(spec))
	}
	return b
}

func (b *Bridge) MCPServer() *mcpserver.MCPServer {
	return b.server
}

func (b *Bridge) ServeStdio() error {
	return mcpserver.ServeStdio(b.server)
}

func (b *Bridge) HTTPHandler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(
		b.server,
		mcpserver.WithEndpointPath(b.cfg.MCP.HTTP.Path),
	)
}

func ToolSpecs() []ToolSpec {
	return []ToolSpec{
		{Name: "kbs_search", Description: "Search KBs by key substring or by tag keyword; key wins when both are set", Method: http.MethodGet, Path: "/api/v1/kbs", HasQuery: true},
		{Name: "kbs_get", Description: "Get a KB by id", Method: http.MethodGet, Path: "/api/v1/kbs/{id}"},
		{Name: "kbs_get_by_key", Description: "Get a KB by its exact key", Method: http.MethodGet, Path: "/api/v1/kbs/key/{key}"},
		{Name: "kbs_add", Description: "Add a KB: key, value, notes, kind, reference, tags", Method: http.MethodPost, Path: "/api/v1/kbs", HasPayload: true},
		{Name: "kbs_update", Description: "Overwrite a KB by id", Method: http.MethodPatch, Path: "/api/v1/kbs", HasPayload: true},
		{Name: "categories_add", Description: "Add a category: name, description", Method: http.MethodPost, Path: "/api/v1/categories", HasPayload: true},
		{Name: "categories_list", Description: "List categories, optionally filtered by keyword", Method: http.MethodGet, Path: "/api/v1/categories", HasQuery: true},
	}
}

func (s ToolSpec) toTool() mcptypes.Tool {
	opts := []mcptypes.ToolOption{
		mcptypes.WithDescription(s.Description),
	}
	for _, param := range pathParams(s.Path) {
		opts = append(opts, mcptypes.WithString(param, mcptypes.Required(), mcptypes.Description("Path parameter: "+param)))
	}
	if s.HasQuery {
		opts = append(opts, mcptypes.WithObject("query", mcptypes.Description("Query string parameters")))
	}
	if s.HasPayload {
		opts = append(opts, mcptypes.WithObject("payload", mcptypes.Description("JSON request payload")))
	}
	return mcptypes.NewTool(s.Name, opts...)
}

func (b *Bridge) makeToolHandler(spec ToolSpec) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
		token := apimw.ExtractBearer(request.Header.Get("Authorization"))
		if token == "" {
			token = b.defaultAPIKey
		}
		if b.cfg.Auth.Enabled && !auth.VerifyAny(token, b.cfg.Auth.KeyHashes) {
			return mcptypes.NewToolResultError("authentication failed: provide Authorization header or --api-key for stdio mode"), nil
		}

		args := request.GetArguments()
		target, err := spec.target(args)
		if err != nil {
			return mcptypes.NewToolResultError(err.Error()), nil
		}
		var payload map[string]any
		if spec.HasPayload {
			payload, _ = args["payload"].(map[string]any)
			if payload == nil {
				payload = map[string]any{}
			}
		}

		status, env, err := b.forward(ctx, token, spec.Method, target, payload)
		if err != nil {
			return mcptypes.NewToolResultError(err.Error()), nil
		}
		if !env.OK {
			if env.Error.Code == "" {
				return mcptypes.NewToolResultError(fmt.Sprintf("request failed with status %d", status)), nil
			}
			return mcptypes.NewToolResultError(env.Error.Code + ": " + env.Error.Message), nil
		}

		out := map[string]any{"status_code": status, "data": env.Data}
		if env.Pagination != nil {
			out["pagination"] = env.Pagination
		}
		return mcptypes.NewToolResultJSON(out)
	}
}

// target expands {param} placeholders from args and appends the query object, if the tool takes one.
func (s ToolSpec) target(args map[string]any) (string, error) {
	path := s.Path
	for _, m := range routeParamPattern.FindAllStringSubmatch(s.Path, -1) {
		value := strings.TrimSpace(argString(args, m[1]))
		if value == "" {
			return "", fmt.Errorf("missing required path argument: %s", m[1])
		}
		path = strings.ReplaceAll(path, m[0], url.PathEscape(value))
	}
	if !s.HasQuery {
		return path, nil
	}
	query, _ := args["query"].(map[string]any)
	values := url.Values{}
	for k, v := range query {
		switch n := v.(type) {
		case nil:
		case float64:
			// JSON numbers arrive as float64; limit and offset must stay integral.
			values.Set(k, strconv.FormatInt(int64(n), 10))
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	if len(values) == 0 {
		return path, nil
	}
	return path + "?" + values.Encode(), nil
}

// forward serves one call through the REST router in-process.
func (b *Bridge) forward(ctx context.Context, apiKey, method, target string, payload map[string]any) (int, apiEnvelope, error) {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, apiEnvelope{}, err
		}
		body = raw
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rr := httptest.NewRecorder()
	b.router.ServeHTTP(rr, req)

	var env apiEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		return rr.Code, apiEnvelope{}, fmt.Errorf("invalid API response: %w", err)
	}
	return rr.Code, env, nil
}

func pathParams(path string) []string {
	var out []string
	for _, m := range routeParamPattern.FindAllStringSubmatch(path, -1) {
		out = append(out, m[1])
	}
	return out
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
