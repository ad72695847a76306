package model

import "github.com/google/uuid"

// DefaultPageLimit is applied when a filter does not carry a limit.
const DefaultPageLimit = 5

type KBID string

func NewKBID() KBID {
	return KBID(uuid.NewString())
}

func (id KBID) String() string {
	return string(id)
}

// KnowledgeBase is one catalog entry. An entry with an empty ID means "not found".
type KnowledgeBase struct {
	ID        KBID     `json:"id" yaml:"-"`
	Key       string   `json:"key" yaml:"key"`
	Value     string   `json:"value" yaml:"value"`
	Notes     string   `json:"notes" yaml:"notes"`
	Kind      string   `json:"kind" yaml:"kind"`
	Reference string   `json:"reference,omitempty" yaml:"reference,omitempty"`
	Tags      []string `json:"tags" yaml:"tags"`
}

func (kb KnowledgeBase) Found() bool {
	return kb.ID != ""
}

func (kb KnowledgeBase) Item() KBItem {
	return KBItem{
		ID:   kb.ID,
		Key:  kb.Key,
		Kind: kb.Kind,
		Tags: kb.Tags,
	}
}

type NewKnowledgeBase struct {
	Key       string   `json:"key" yaml:"key"`
	Value     string   `json:"value" yaml:"value"`
	Notes     string   `json:"notes" yaml:"notes"`
	Kind      string   `json:"kind" yaml:"kind"`
	Reference string   `json:"reference,omitempty" yaml:"reference,omitempty"`
	Tags      []string `json:"tags" yaml:"tags"`
}

// ToKnowledgeBase mints a fresh KBID for the new entry.
func (n NewKnowledgeBase) ToKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		ID:        NewKBID(),
		Key:       n.Key,
		Value:     n.Value,
		Notes:     n.Notes,
		Kind:      n.Kind,
		Reference: n.Reference,
		Tags:      append([]string(nil), n.Tags...),
	}
}

// KBItem is the search projection of a KnowledgeBase. It never carries value, notes or reference.
type KBItem struct {
	ID   KBID     `json:"id"`
	Key  string   `json:"key"`
	Kind string   `json:"kind"`
	Tags []string `json:"tags"`
}

type KBQueryFilter struct {
	Key     string `json:"key"`
	Keyword string `json:"keyword"`
	// nil means DefaultPageLimit, 0 means unbounded.
	Limit  *int `json:"limit,omitempty"`
	Offset int  `json:"offset"`
}

func (f KBQueryFilter) PageLimit() int {
	return pageLimit(f.Limit)
}

func (f KBQueryFilter) PageOffset() int {
	return pageOffset(f.Offset)
}

type SearchResult struct {
	Items  []KBItem `json:"items"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

func EmptySearchResult(f KBQueryFilter) SearchResult {
	return SearchResult{
		Items:  []KBItem{},
		Total:  0,
		Limit:  f.PageLimit(),
		Offset: f.PageOffset(),
	}
}

type Category struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type CategoryFilter struct {
	Keyword string `json:"keyword"`
	Limit   *int   `json:"limit,omitempty"`
	Offset  int    `json:"offset"`
}

func (f CategoryFilter) PageLimit() int {
	return pageLimit(f.Limit)
}

func (f CategoryFilter) PageOffset() int {
	return pageOffset(f.Offset)
}

type SaveKBSuccess struct {
	ID KBID `json:"id"`
}

type SaveCategorySuccess struct {
	OK bool `json:"ok"`
}

type KBEventType string

const (
	KBEventCreated KBEventType = "kb_created"
	KBEventUpdated KBEventType = "kb_updated"
)

type KBEvent struct {
	Type KBEventType `json:"type"`
	ID   KBID        `json:"id"`
	Key  string      `json:"key"`
}

func Limit(n int) *int {
	return &n
}

func pageLimit(limit *int) int {
	if limit == nil {
		return DefaultPageLimit
	}
	if *limit < 0 {
		return DefaultPageLimit
	}
	return *limit
}

func pageOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
