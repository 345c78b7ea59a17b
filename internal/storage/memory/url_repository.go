// Package memory provides in-process repository implementations for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
)

// URLRepository keeps URLs and checks in maps guarded by one lock.
type URLRepository struct {
	mu        sync.RWMutex
	nextURL   int64
	nextCheck int64
	urls      map[int64]analyzer.URL
	byAddress map[string]int64
	checks    map[int64][]analyzer.Check
}

var _ analyzer.Repository = (*URLRepository)(nil)

// NewURLRepository constructs an empty URLRepository.
func NewURLRepository() *URLRepository {
	return &URLRepository{
		urls:      make(map[int64]analyzer.URL),
		byAddress: make(map[string]int64),
		checks:    make(map[int64][]analyzer.Check),
	}
}

// Ping always succeeds.
func (r *URLRepository) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (r *URLRepository) Close() {}

// FindByAddress returns the URL stored under address.
func (r *URLRepository) FindByAddress(_ context.Context, address string) (analyzer.URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAddress[address]
	if !ok {
		return analyzer.URL{}, analyzer.ErrURLNotFound
	}
	return r.urls[id], nil
}

// InsertURL stores address or returns the existing row with created=false.
func (r *URLRepository) InsertURL(_ context.Context, address string, createdAt time.Time) (analyzer.URL, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byAddress[address]; ok {
		return r.urls[id], false, nil
	}
	r.nextURL++
	u := analyzer.URL{ID: r.nextURL, Address: address, CreatedAt: createdAt}
	r.urls[u.ID] = u
	r.byAddress[address] = u.ID
	return u, true, nil
}

// GetURL returns the URL with the given id.
func (r *URLRepository) GetURL(_ context.Context, id int64) (analyzer.URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.urls[id]
	if !ok {
		return analyzer.URL{}, analyzer.ErrURLNotFound
	}
	return u, nil
}

// ListURLs returns one page of URLs ordered by id descending with their latest check.
func (r *URLRepository) ListURLs(_ context.Context, page, pageSize int) (analyzer.URLPage, error) {
	if pageSize <= 0 {
		return analyzer.URLPage{}, fmt.Errorf("page size must be > 0")
	}
	page = analyzer.ClampPage(page, pageSize)
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.urls))
	for id := range r.urls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	result := analyzer.URLPage{
		Rows:     []analyzer.URLSummary{},
		Total:    len(ids),
		Page:     page,
		PageSize: pageSize,
	}
	if page-1 > len(ids)/pageSize {
		return result, nil
	}
	start := (page - 1) * pageSize
	if start >= len(ids) {
		return result, nil
	}
	end := min(start+pageSize, len(ids))
	for _, id := range ids[start:end] {
		row := analyzer.URLSummary{URL: r.urls[id]}
		if history := r.checks[id]; len(history) > 0 {
			last := history[len(history)-1]
			status, checkedAt := last.StatusCode, last.CheckedAt
			row.LastStatusCode = &status
			row.LastCheckedAt = &checkedAt
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// ListChecks returns a copy of the checks of urlID, most recent first.
func (r *URLRepository) ListChecks(_ context.Context, urlID int64) ([]analyzer.Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := r.checks[urlID]
	out := make([]analyzer.Check, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

// AppendCheck stores result as the next check of urlID.
func (r *URLRepository) AppendCheck(
	_ context.Context,
	urlID int64,
	result analyzer.FetchResult,
	checkedAt time.Time,
) (analyzer.Check, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.urls[urlID]; !ok {
		return analyzer.Check{}, analyzer.ErrURLNotFound
	}
	r.nextCheck++
	check := analyzer.Check{
		ID:             r.nextCheck,
		URLID:          urlID,
		SequenceNumber: len(r.checks[urlID]) + 1,
		StatusCode:     result.StatusCode,
		H1:             result.SEO.H1,
		Title:          result.SEO.Title,
		Description:    result.SEO.Description,
		CheckedAt:      checkedAt,
	}
	r.checks[urlID] = append(r.checks[urlID], check)
	return check, nil
}
