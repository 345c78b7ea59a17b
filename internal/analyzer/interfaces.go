package analyzer

import (
	"context"
	"time"
)

// Repository persists URLs and their append-only check history.
type Repository interface {
	FindByAddress(ctx context.Context, address string) (URL, error)
	// InsertURL stores address, or returns the existing row with created=false.
	InsertURL(ctx context.Context, address string, createdAt time.Time) (URL, bool, error)
	GetURL(ctx context.Context, id int64) (URL, error)
	ListURLs(ctx context.Context, page, pageSize int) (URLPage, error)
	ListChecks(ctx context.Context, urlID int64) ([]Check, error)
	AppendCheck(ctx context.Context, urlID int64, result FetchResult, checkedAt time.Time) (Check, error)
}

// Fetcher performs a single GET against a normalized address.
type Fetcher interface {
	Fetch(ctx context.Context, address string) (FetchResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
