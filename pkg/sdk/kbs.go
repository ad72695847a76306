package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

type KB struct {
	ID        string   `json:"id" yaml:"-"`
	Key       string   `json:"key" yaml:"key"`
	Value     string   `json:"value" yaml:"value"`
	Notes     string   `json:"notes" yaml:"notes"`
	Kind      string   `json:"kind" yaml:"kind"`
	Reference string   `json:"reference,omitempty" yaml:"reference,omitempty"`
	Tags      []string `json:"tags" yaml:"tags"`
}

type KBItem struct {
	ID   string   `json:"id"`
	Key  string   `json:"key"`
	Kind string   `json:"kind"`
	Tags []string `json:"tags"`
}

type Category struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type SearchQuery struct {
	Key     string
	Keyword string
	// Limit nil lets the server default apply; 0 asks for every match.
	Limit  *int
	Offset int
}

type SearchPage struct {
	Items      []KBItem
	Pagination Pagination
}

// IsNotFound reports whether err is an API error for a missing entry.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type KBService struct {
	client *Client
}

func (k *KBService) Get(ctx context.Context, id string) (KB, error) {
	return k.get(ctx, "/api/v1/kbs/"+url.PathEscape(id))
}

func (k *KBService) GetByKey(ctx context.Context, key string) (KB, error) {
	return k.get(ctx, "/api/v1/kbs/key/"+url.PathEscape(key))
}

func (k *KBService) get(ctx context.Context, path string) (KB, error) {
	var out struct {
		KB KB `json:"kb"`
	}
	if _, err := k.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return KB{}, err
	}
	return out.KB, nil
}

func (k *KBService) Search(ctx context.Context, q SearchQuery) (SearchPage, error) {
	values := url.Values{}
	if q.Key != "" {
		values.Set("key", q.Key)
	}
	if q.Keyword != "" {
		values.Set("keyword", q.Keyword)
	}
	if q.Limit != nil {
		values.Set("limit", strconv.Itoa(*q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/api/v1/kbs"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var out struct {
		KBs []KBItem `json:"kbs"`
	}
	pg, err := k.client.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return SearchPage{}, err
	}
	page := SearchPage{Items: out.KBs}
	if pg != nil {
		page.Pagination = *pg
	}
	return page, nil
}

// Add creates the entry and returns its server-assigned id. Any ID on kb is ignored.
func (k *KBService) Add(ctx context.Context, kb KB) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	_, err := k.client.do(ctx, http.MethodPost, "/api/v1/kbs", map[string]any{
		"key":       kb.Key,
		"value":     kb.Value,
		"notes":     kb.Notes,
		"kind":      kb.Kind,
		"reference": kb.Reference,
		"tags":      kb.Tags,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (k *KBService) Update(ctx context.Context, kb KB) error {
	_, err := k.client.do(ctx, http.MethodPatch, "/api/v1/kbs", kb, nil)
	return err
}

type CategoriesService struct {
	client *Client
}

func (c *CategoriesService) Add(ctx context.Context, cat Category) error {
	_, err := c.client.do(ctx, http.MethodPost, "/api/v1/categories", cat, nil)
	return err
}

func (c *CategoriesService) List(ctx context.Context, keyword string, limit *int, offset int) ([]Category, error) {
	values := url.Values{}
	if keyword != "" {
		values.Set("keyword", keyword)
	}
	if limit != nil {
		values.Set("limit", strconv.Itoa(*limit))
	}
	if offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/categories"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var out struct {
		Categories []Category `json:"categories"`
	}
	if _, err := c.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}
