package kbs

import (
	"context"
	"errors"
	"log/slog"

	"kbservice/internal/model"
)

const eventBufferSize = 256

// Service enforces the catalog rules on top of a Storer: key uniqueness, search dispatch and error
// translation. Storage detail is logged here and never returned.
type Service struct {
	store  Storer
	log    *slog.Logger
	Events chan model.KBEvent
}

func NewService(store Storer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		log:    logger.With("component", "kbs"),
		Events: make(chan model.KBEvent, eventBufferSize),
	}
}

func (s *Service) GetKBWithID(ctx context.Context, id model.KBID) (model.KnowledgeBase, error) {
	s.log.DebugContext(ctx, "getting kb", "id", id)

	kb, err := s.store.GetKBByID(ctx, id)
	if err != nil {
		s.log.ErrorContext(ctx, "getting kb from repository with id", "id", id, "error", err)
		return model.KnowledgeBase{}, ErrGetKB
	}
	return kb, nil
}

func (s *Service) GetKBWithKey(ctx context.Context, key string) (model.KnowledgeBase, error) {
	s.log.DebugContext(ctx, "getting kb", "key", key)

	kb, err := s.store.GetKBByKey(ctx, key)
	if err != nil {
		s.log.ErrorContext(ctx, "getting kb from repository with key", "key", key, "error", err)
		return model.KnowledgeBase{}, ErrGetKB
	}
	return kb, nil
}

// AddKB stores a new entry under a freshly minted id. The duplicate check and the insert are separate
// round trips; the key's unique index catches writers that race past the check.
func (s *Service) AddKB(ctx context.Context, newKB model.NewKnowledgeBase) (model.KnowledgeBase, error) {
	s.log.DebugContext(ctx, "adding kb", "key", newKB.Key)

	existing, err := s.store.GetKBByKey(ctx, newKB.Key)
	if err != nil {
		s.log.ErrorContext(ctx, "checking kb key before insert", "key", newKB.Key, "error", err)
		return model.KnowledgeBase{}, ErrCreateKB
	}
	if existing.Found() {
		s.log.WarnContext(ctx, "kb key already exists", "key", newKB.Key, "id", existing.ID)
		return model.KnowledgeBase{}, ErrDuplicateKB
	}

	kb := newKB.ToKnowledgeBase()
	savedID, err := s.store.SaveKB(ctx, kb)
	if err != nil {
		if errors.Is(err, ErrDuplicateKB) {
			s.log.WarnContext(ctx, "kb key taken by a concurrent write", "key", kb.Key, "error", err)
			return model.KnowledgeBase{}, ErrDuplicateKB
		}
		s.log.ErrorContext(ctx, "saving kb", "key", kb.Key, "error", err)
		return model.KnowledgeBase{}, ErrCreateKB
	}
	if savedID != kb.ID {
		s.log.ErrorContext(ctx, "repository changed kb id", "want", kb.ID, "got", savedID)
		return model.KnowledgeBase{}, ErrCreateKB
	}

	s.emit(model.KBEvent{Type: model.KBEventCreated, ID: kb.ID, Key: kb.Key})
	return kb, nil
}

// UpdateKB overwrites the entry with kb.ID. ErrKBWasNotUpdated means the id does not exist, which
// callers must tell apart from ErrUpdateKB.
func (s *Service) UpdateKB(ctx context.Context, kb model.KnowledgeBase) error {
	s.log.DebugContext(ctx, "updating kb", "id", kb.ID, "key", kb.Key)

	existing, err := s.store.GetKBByKey(ctx, kb.Key)
	if err != nil {
		s.log.ErrorContext(ctx, "checking kb key before update", "key", kb.Key, "error", err)
		return ErrUpdateKB
	}
	if existing.Found() && existing.ID != kb.ID {
		s.log.WarnContext(ctx, "kb key owned by another entry", "key", kb.Key, "owner", existing.ID, "id", kb.ID)
		return ErrDuplicateKB
	}

	updated, err := s.store.UpdateKB(ctx, kb)
	if err != nil {
		if errors.Is(err, ErrDuplicateKB) {
			s.log.WarnContext(ctx, "kb key taken by a concurrent write", "key", kb.Key, "error", err)
			return ErrDuplicateKB
		}
		s.log.ErrorContext(ctx, "updating kb", "id", kb.ID, "error", err)
		return ErrUpdateKB
	}
	if !updated {
		s.log.InfoContext(ctx, "kb was not updated", "id", kb.ID)
		return ErrKBWasNotUpdated
	}

	s.emit(model.KBEvent{Type: model.KBEventUpdated, ID: kb.ID, Key: kb.Key})
	return nil
}

func (s *Service) AddCategory(ctx context.Context, category model.Category) (bool, error) {
	s.log.DebugContext(ctx, "adding category", "name", category.Name)

	if _, err := s.store.SaveCategory(ctx, category); err != nil {
		s.log.ErrorContext(ctx, "saving category", "name", category.Name, "error", err)
		return false, ErrCreateCategory
	}
	return true, nil
}

func (s *Service) ListCategories(ctx context.Context, filter model.CategoryFilter) ([]model.Category, error) {
	categories, err := s.store.ListCategories(ctx, filter)
	if err != nil {
		s.log.ErrorContext(ctx, "listing categories", "keyword", filter.Keyword, "error", err)
		return nil, ErrListCategories
	}
	if categories == nil {
		categories = []model.Category{}
	}
	return categories, nil
}

// Search dispatches on the filter shape. A filter without key and keyword yields an empty result and
// never reaches storage. When both are set, key wins.
func (s *Service) Search(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	switch {
	case filter.Key == "" && filter.Keyword == "":
		return model.EmptySearchResult(filter), nil
	case filter.Key != "":
		return s.searchByKey(ctx, filter)
	default:
		return s.searchByKeyword(ctx, filter)
	}
}

func (s *Service) searchByKey(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	s.log.DebugContext(ctx, "searching by key", "key", filter.Key, "limit", filter.PageLimit(), "offset", filter.PageOffset())

	result, err := s.store.SearchByKey(ctx, filter)
	if err != nil {
		s.log.ErrorContext(ctx, "searching by key", "key", filter.Key, "error", err)
		return model.SearchResult{}, ErrSearch
	}
	return result, nil
}

func (s *Service) searchByKeyword(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error) {
	s.log.DebugContext(ctx, "searching by keyword", "keyword", filter.Keyword, "limit", filter.PageLimit(), "offset", filter.PageOffset())

	result, err := s.store.Search(ctx, filter)
	if err != nil {
		s.log.ErrorContext(ctx, "searching by keyword", "keyword", filter.Keyword, "error", err)
		return model.SearchResult{}, ErrSearch
	}
	return result, nil
}

func (s *Service) emit(ev model.KBEvent) {
	select {
	case s.Events <- ev:
	default:
	}
}
