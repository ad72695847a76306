package kbs

import "errors"

// Errors returned by Service. They carry no storage detail.
var (
	ErrGetKB           = errors.New("unable to get this kb")
	ErrCreateKB        = errors.New("unable to create kb")
	ErrUpdateKB        = errors.New("unable to update kb")
	ErrDuplicateKB     = errors.New("kb already exists")
	ErrKBWasNotUpdated = errors.New("kb was not updated")
	ErrCreateCategory  = errors.New("unable to create category")
	ErrListCategories  = errors.New("unable to query categories")
	ErrSearch          = errors.New("unable to search knowledge base")
)

// Errors returned by Storer implementations. Service never lets them reach its callers.
var (
	ErrStorageQuery = errors.New("unable to query repository")
	ErrStorageWrite = errors.New("unable to write to repository")
)
