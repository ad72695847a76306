// Package memory is an in-process kbs.Storer used by tests and by the server's memory driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"kbservice/internal/kbs"
	"kbservice/internal/model"
)

// Operation names accepted by Calls and FailOn.
const (
	OpGetKBByID      = "GetKBByID"
	OpGetKBByKey     = "GetKBByKey"
	OpSearchByKey    = "SearchByKey"
	OpSearch         = "Search"
	OpSaveKB         = "SaveKB"
	OpUpdateKB       = "UpdateKB"
	OpSaveCategory   = "SaveCategory"
	OpListCategories = "ListCategories"
)

type Store struct {
	mu         sync.Mutex
	kbs        map[model.KBID]model.KnowledgeBase
	categories map[string]model.Category
	calls      map[string]int
	failures   map[string]error
}

func New() *Store {
	return &Store{
		kbs:        map[model.KBID]model.KnowledgeBase{},
		categories: map[string]model.Category{},
		calls:      map[string]int{},
		failures:   map[string]error{},
	}
}

// Calls reports how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls reports invocations across every operation.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// FailOn makes op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) GetKBByID(_ context.Context, id model.KBID) (model.KnowledgeBase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetKBByID); err != nil {
		return model.KnowledgeBase{}, err
	}
	return cloneKB(s.kbs[id]), nil
}

func (s *Store) GetKBByKey(_ context.Context, key string) (model.KnowledgeBase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetKBByKey); err != nil {
		return model.KnowledgeBase{}, err
	}
	for _, kb := range s.kbs {
		if kb.Key == key {
			return cloneKB(kb), nil
		}
	}
	return model.KnowledgeBase{}, nil
}

func (s *Store) SearchByKey(_ context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSearchByKey); err != nil {
		return model.SearchResult{}, err
	}
	needle := strings.ToLower(filter.Key)
	return s.page(filter, func(kb model.KnowledgeBase) bool {
		return strings.Contains(strings.ToLower(kb.Key), needle)
	}), nil
}

// Search matches entries whose tags contain every keyword term, ignoring case.
func (s *Store) Search(_ context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSearch); err != nil {
		return model.SearchResult{}, err
	}
	terms := kbs.SearchTerms(strings.ToLower(filter.Keyword))
	if len(terms) == 0 {
		return model.EmptySearchResult(filter), nil
	}
	return s.page(filter, func(kb model.KnowledgeBase) bool {
		have := make(map[string]bool, len(kb.Tags))
		for _, t := range kb.Tags {
			have[strings.ToLower(t)] = true
		}
		for _, term := range terms {
			if !have[term] {
				return false
			}
		}
		return true
	}), nil
}

func (s *Store) SaveKB(_ context.Context, kb model.KnowledgeBase) (model.KBID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSaveKB); err != nil {
		return "", err
	}
	if _, ok := s.kbs[kb.ID]; ok {
		return "", fmt.Errorf("%w: id %s exists", kbs.ErrStorageWrite, kb.ID)
	}
	if s.keyTaken(kb.Key, kb.ID) {
		return "", fmt.Errorf("%w: key %q", kbs.ErrDuplicateKB, kb.Key)
	}
	s.kbs[kb.ID] = storedKB(kb)
	return kb.ID, nil
}

func (s *Store) UpdateKB(_ context.Context, kb model.KnowledgeBase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateKB); err != nil {
		return false, err
	}
	if _, ok := s.kbs[kb.ID]; !ok {
		return false, nil
	}
	if s.keyTaken(kb.Key, kb.ID) {
		return false, fmt.Errorf("%w: key %q", kbs.ErrDuplicateKB, kb.Key)
	}
	s.kbs[kb.ID] = storedKB(kb)
	return true, nil
}

func (s *Store) SaveCategory(_ context.Context, c model.Category) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSaveCategory); err != nil {
		return "", err
	}
	if _, ok := s.categories[c.Name]; ok {
		return "", fmt.Errorf("%w: category %q exists", kbs.ErrStorageWrite, c.Name)
	}
	s.categories[c.Name] = c
	return c.Name, nil
}

func (s *Store) ListCategories(_ context.Context, filter model.CategoryFilter) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListCategories); err != nil {
		return nil, err
	}
	needle := strings.ToLower(filter.Keyword)
	out := []model.Category{}
	for _, c := range s.categories {
		if needle == "" || strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return window(out, filter.PageLimit(), filter.PageOffset()), nil
}

func (s *Store) keyTaken(key string, id model.KBID) bool {
	for _, other := range s.kbs {
		if other.Key == key && other.ID != id {
			return true
		}
	}
	return false
}

func (s *Store) page(filter model.KBQueryFilter, match func(model.KnowledgeBase) bool) model.SearchResult {
	matched := make([]model.KnowledgeBase, 0)
	for _, kb := range s.kbs {
		if match(kb) {
			matched = append(matched, kb)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Key == matched[j].Key {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Key < matched[j].Key
	})

	limit, offset := filter.PageLimit(), filter.PageOffset()
	items := make([]model.KBItem, 0)
	for _, kb := range window(matched, limit, offset) {
		items = append(items, cloneKB(kb).Item())
	}
	return model.SearchResult{Items: items, Total: len(matched), Limit: limit, Offset: offset}
}

// window applies offset then limit; limit 0 is unbounded.
func window[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return in[:0]
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// storedKB mirrors the relational round trip: tags come back split on spaces with quotes stripped.
func storedKB(kb model.KnowledgeBase) model.KnowledgeBase {
	if kb.Tags != nil {
		kb.Tags = kbs.SplitTags(kbs.JoinTags(kb.Tags))
	}
	return kb
}

func cloneKB(kb model.KnowledgeBase) model.KnowledgeBase {
	if kb.Tags != nil {
		kb.Tags = append([]string(nil), kb.Tags...)
	}
	return kb
}
