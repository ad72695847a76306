package kbs

import (
	"context"

	"kbservice/internal/model"
)

// Storer is the persistence contract the Service relies on. Implementations hold no business rules:
// uniqueness and defaults are enforced by the Service.
type Storer interface {
	// GetKBByID returns a zero KnowledgeBase (empty ID) when no entry matches.
	GetKBByID(ctx context.Context, id model.KBID) (model.KnowledgeBase, error)
	// GetKBByKey returns a zero KnowledgeBase (empty ID) when no entry matches.
	GetKBByKey(ctx context.Context, key string) (model.KnowledgeBase, error)
	// SearchByKey matches filter.Key as a substring of entry keys.
	SearchByKey(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error)
	// Search matches filter.Keyword against the indexed tag representation.
	Search(ctx context.Context, filter model.KBQueryFilter) (model.SearchResult, error)
	SaveKB(ctx context.Context, kb model.KnowledgeBase) (model.KBID, error)
	// UpdateKB reports false when no row with kb.ID exists.
	UpdateKB(ctx context.Context, kb model.KnowledgeBase) (bool, error)
	SaveCategory(ctx context.Context, category model.Category) (string, error)
	ListCategories(ctx context.Context, filter model.CategoryFilter) ([]model.Category, error)
}
