package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/metrics"
	"github.com/JakeFAU/page-analyzer/internal/urlnorm"
)

const defaultPageSize = 10

// Config controls Service behavior.
type Config struct {
	PageSize int
}

// Service runs the submit/check pipeline on top of a Repository and Fetcher.
type Service struct {
	repo     Repository
	fetcher  Fetcher
	clock    Clock
	pageSize int
	logger   *zap.Logger
}

// NewService constructs a Service. A nil clock falls back to the system clock.
func NewService(repo Repository, fetcher Fetcher, clock Clock, cfg Config, logger *zap.Logger) *Service {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Service{
		repo:     repo,
		fetcher:  fetcher,
		clock:    clock,
		pageSize: cfg.PageSize,
		logger:   logger,
	}
}

// PageSize reports the number of URLs per listing page.
func (s *Service) PageSize() int {
	return s.pageSize
}

// AddURL normalizes raw and stores it unless it is already tracked.
// It returns ErrInvalidInput without touching the repository when raw does not normalize.
func (s *Service) AddURL(ctx context.Context, raw string) (AddResult, error) {
	address, ok := urlnorm.Normalize(raw)
	if !ok {
		metrics.ObserveSubmission(string(OutcomeInvalid))
		return AddResult{}, ErrInvalidInput
	}

	existing, err := s.repo.FindByAddress(ctx, address)
	switch {
	case err == nil:
		metrics.ObserveSubmission(string(OutcomeExists))
		return AddResult{URL: existing, Outcome: OutcomeExists}, nil
	case !errors.Is(err, ErrURLNotFound):
		return AddResult{}, fmt.Errorf("find url: %w", err)
	}

	// A concurrent submission may win between the lookup and the insert;
	// InsertURL reports that as created=false.
	stored, created, err := s.repo.InsertURL(ctx, address, s.today())
	if err != nil {
		return AddResult{}, fmt.Errorf("insert url: %w", err)
	}
	outcome := OutcomeExists
	if created {
		outcome = OutcomeCreated
		s.logger.Info("url added", zap.Int64("url_id", stored.ID), zap.String("address", stored.Address))
	}
	metrics.ObserveSubmission(string(outcome))
	return AddResult{URL: stored, Outcome: outcome}, nil
}

// RunCheck fetches the URL identified by urlID and appends the outcome to its history.
// Unreachable sites return an error wrapping ErrUnreachable and write nothing.
func (s *Service) RunCheck(ctx context.Context, urlID int64) (Check, error) {
	u, err := s.repo.GetURL(ctx, urlID)
	if err != nil {
		return Check{}, fmt.Errorf("load url %d: %w", urlID, err)
	}

	start := time.Now()
	result, err := s.fetcher.Fetch(ctx, u.Address)
	metrics.ObserveFetchDuration(time.Since(start))
	if err != nil {
		metrics.ObserveCheck("unreachable")
		s.logger.Warn("check failed",
			zap.Int64("url_id", u.ID),
			zap.String("address", u.Address),
			zap.Error(err),
		)
		if !errors.Is(err, ErrUnreachable) {
			err = fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		return Check{}, err
	}

	checkedAt := result.ServerDate
	if checkedAt.IsZero() {
		checkedAt = s.clock.Now()
	}
	check, err := s.repo.AppendCheck(ctx, u.ID, result, truncateToDate(checkedAt))
	if err != nil {
		return Check{}, fmt.Errorf("append check: %w", err)
	}
	metrics.ObserveCheck(metrics.StatusClass(result.StatusCode))
	s.logger.Info("check recorded",
		zap.Int64("url_id", u.ID),
		zap.Int("sequence", check.SequenceNumber),
		zap.Int("status_code", check.StatusCode),
	)
	return check, nil
}

// GetURL loads a URL and its check history.
func (s *Service) GetURL(ctx context.Context, id int64) (URLDetail, error) {
	u, err := s.repo.GetURL(ctx, id)
	if err != nil {
		return URLDetail{}, fmt.Errorf("load url %d: %w", id, err)
	}
	checks, err := s.repo.ListChecks(ctx, id)
	if err != nil {
		return URLDetail{}, fmt.Errorf("list checks: %w", err)
	}
	return URLDetail{URL: u, Checks: checks}, nil
}

// ListURLs returns one page of tracked URLs. Pages below 1 are treated as 1 and
// pages whose offset would overflow are capped, which yields an empty page.
func (s *Service) ListURLs(ctx context.Context, page int) (URLPage, error) {
	page = ClampPage(page, s.pageSize)
	result, err := s.repo.ListURLs(ctx, page, s.pageSize)
	if err != nil {
		return URLPage{}, fmt.Errorf("list urls: %w", err)
	}
	return result, nil
}

// ClampPage bounds page to [1, math.MaxInt/pageSize] so (page-1)*pageSize
// cannot overflow.
func ClampPage(page, pageSize int) int {
	if page < 1 {
		return 1
	}
	if pageSize > 0 && page > math.MaxInt/pageSize {
		return math.MaxInt / pageSize
	}
	return page
}

func (s *Service) today() time.Time {
	return truncateToDate(s.clock.Now())
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
