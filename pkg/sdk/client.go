package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultURL = "http://localhost:3030"

type Config struct {
	// BaseURL is the kbservice server URL. Empty → KB_URL env var → http://localhost:3030.
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	KBs        *KBService
	Categories *CategoriesService
	Admin      *AdminService
}

// APIError is returned for any response whose envelope has ok=false.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error: %s: %s", e.Code, e.Message)
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		BaseURL: resolveURL(cfg.BaseURL),
		APIKey:  cfg.APIKey,
		HTTP:    &http.Client{Timeout: cfg.Timeout},
	}
	c.KBs = &KBService{client: c}
	c.Categories = &CategoriesService{client: c}
	c.Admin = &AdminService{client: c}
	return c
}

func resolveURL(override string) string {
	if v := strings.TrimSpace(override); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("KB_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultURL
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type envelope[T any] struct {
	OK         bool        `json:"ok"`
	Data       T           `json:"data"`
	Error      *apiError   `json:"error"`
	Pagination *Pagination `json:"pagination"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends one request and decodes data into out. The pagination block, when present, is returned.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (*Pagination, error) {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !raw.OK {
		apiErr := &APIError{Status: resp.StatusCode}
		if raw.Error != nil {
			apiErr.Code = raw.Error.Code
			apiErr.Message = raw.Error.Message
		}
		return nil, apiErr
	}
	if out != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			return nil, err
		}
	}
	return raw.Pagination, nil
}

type AdminService struct{ client *Client }

func (a *AdminService) Backup(ctx context.Context) (string, error) {
	var out struct {
		BackupPath string `json:"backup_path"`
	}
	if _, err := a.client.do(ctx, http.MethodPost, "/api/v1/admin/backup", nil, &out); err != nil {
		return "", err
	}
	return out.BackupPath, nil
}

func (a *AdminService) Config(ctx context.Context) (map[string]any, error) {
	var out struct {
		Config map[string]any `json:"config"`
	}
	if _, err := a.client.do(ctx, http.MethodGet, "/api/v1/admin/config", nil, &out); err != nil {
		return nil, err
	}
	return out.Config, nil
}
