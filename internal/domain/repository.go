package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// IdentifierSource lists every product identifier currently published by INIES
type IdentifierSource interface {
	FetchAllIdentifiers(ctx context.Context) ([]string, error)
}

// Page is a browser tab able to render one product detail view at a time.
// Selectors are XPath expressions.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	ReadText(ctx context.Context, selector string) (string, error)
	ReadAllText(ctx context.Context, selector string) ([]string, error)
	Close() error
}

// PageOpener opens independent browser sessions
type PageOpener interface {
	Open(ctx context.Context) (Page, error)
}

// ProductExtractor turns a product identifier into a record.
// Extraction never fails: unreadable fields fall back to their sentinels.
type ProductExtractor interface {
	Extract(ctx context.Context, id string) ProductRecord
}

// CatalogueRepository persists the catalogue wholesale
type CatalogueRepository interface {
	Load(ctx context.Context) (*Catalogue, error)
	Save(ctx context.Context, catalogue *Catalogue) error
}

// CatalogueMirror receives newly synced records (e.g. a reporting database)
type CatalogueMirror interface {
	Publish(ctx context.Context, records []ProductRecord) (int, error)
}

// SolutionRepository persists solutions
type SolutionRepository interface {
	Load(ctx context.Context) (Solutions, error)
	Save(ctx context.Context, solutions Solutions) error
}
