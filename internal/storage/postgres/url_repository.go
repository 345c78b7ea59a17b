// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// URLRepositoryConfig controls the Postgres connection pool.
type URLRepositoryConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// URLRepository implements analyzer.Repository on top of a pgx pool.
// Every method runs inside its own transaction.
type URLRepository struct {
	pool   txBeginner
	logger *zap.Logger
}

var _ analyzer.Repository = (*URLRepository)(nil)

// NewURLRepository opens a pool using cfg and verifies connectivity.
func NewURLRepository(ctx context.Context, cfg URLRepositoryConfig, logger *zap.Logger) (*URLRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewURLRepositoryWithPool(pool, logger)
}

// NewURLRepositoryWithPool constructs a repository from an existing pool (primarily for testing).
func NewURLRepositoryWithPool(pool txBeginner, logger *zap.Logger) (*URLRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLRepository{pool: pool, logger: logger}, nil
}

// Ping checks that a pooled connection can reach the database.
func (r *URLRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (r *URLRepository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const selectURLColumns = `SELECT id, address, created_at FROM urls`

// FindByAddress returns the URL stored under address or analyzer.ErrURLNotFound.
func (r *URLRepository) FindByAddress(ctx context.Context, address string) (analyzer.URL, error) {
	var u analyzer.URL
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanURL(tx.QueryRow(ctx, selectURLColumns+` WHERE address = $1`, address))
		return err
	})
	if err != nil {
		return analyzer.URL{}, err
	}
	return u, nil
}

// InsertURL stores address. When the address already exists it returns the
// existing row with created=false instead of failing.
func (r *URLRepository) InsertURL(ctx context.Context, address string, createdAt time.Time) (analyzer.URL, bool, error) {
	var (
		u       analyzer.URL
		created bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		query := `
INSERT INTO urls (address, created_at)
VALUES ($1, $2)
ON CONFLICT (address) DO NOTHING
RETURNING id, address, created_at`
		inserted, err := scanURL(tx.QueryRow(ctx, query, address, createdAt))
		switch {
		case err == nil:
			u, created = inserted, true
			return nil
		case !errors.Is(err, analyzer.ErrURLNotFound):
			return fmt.Errorf("insert url: %w", err)
		}
		u, err = scanURL(tx.QueryRow(ctx, selectURLColumns+` WHERE address = $1`, address))
		if err != nil {
			return fmt.Errorf("load existing url: %w", err)
		}
		return nil
	})
	if err != nil {
		return analyzer.URL{}, false, err
	}
	return u, created, nil
}

// GetURL returns the URL with the given id or analyzer.ErrURLNotFound.
func (r *URLRepository) GetURL(ctx context.Context, id int64) (analyzer.URL, error) {
	var u analyzer.URL
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanURL(tx.QueryRow(ctx, selectURLColumns+` WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return analyzer.URL{}, err
	}
	return u, nil
}

// ListURLs returns one page of URLs ordered by id descending, each joined with
// its most recent check. Total counts every stored URL.
func (r *URLRepository) ListURLs(ctx context.Context, page, pageSize int) (analyzer.URLPage, error) {
	if pageSize <= 0 {
		return analyzer.URLPage{}, fmt.Errorf("page size must be > 0")
	}
	page = analyzer.ClampPage(page, pageSize)
	result := analyzer.URLPage{Page: page, PageSize: pageSize, Rows: []analyzer.URLSummary{}}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM urls`).Scan(&result.Total); err != nil {
			return fmt.Errorf("count urls: %w", err)
		}
		query := `
SELECT u.id, u.address, u.created_at, c.status_code, c.checked_at
FROM urls AS u
LEFT JOIN LATERAL (
	SELECT status_code, checked_at
	FROM checks
	WHERE checks.url_id = u.id
	ORDER BY sequence_number DESC
	LIMIT 1
) AS c ON TRUE
ORDER BY u.id DESC
LIMIT $1 OFFSET $2`
		rows, err := tx.Query(ctx, query, pageSize, (page-1)*pageSize)
		if err != nil {
			return fmt.Errorf("list urls: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var row analyzer.URLSummary
			if err := rows.Scan(
				&row.URL.ID,
				&row.URL.Address,
				&row.URL.CreatedAt,
				&row.LastStatusCode,
				&row.LastCheckedAt,
			); err != nil {
				return fmt.Errorf("scan url row: %w", err)
			}
			result.Rows = append(result.Rows, row)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate url rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return analyzer.URLPage{}, err
	}
	return result, nil
}

// ListChecks returns the checks of a URL, most recent first.
func (r *URLRepository) ListChecks(ctx context.Context, urlID int64) ([]analyzer.Check, error) {
	checks := []analyzer.Check{}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		query := `
SELECT id, url_id, sequence_number, status_code, h1, title, description, checked_at
FROM checks
WHERE url_id = $1
ORDER BY sequence_number DESC`
		rows, err := tx.Query(ctx, query, urlID)
		if err != nil {
			return fmt.Errorf("list checks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var c analyzer.Check
			if err := rows.Scan(
				&c.ID,
				&c.URLID,
				&c.SequenceNumber,
				&c.StatusCode,
				&c.H1,
				&c.Title,
				&c.Description,
				&c.CheckedAt,
			); err != nil {
				return fmt.Errorf("scan check row: %w", err)
			}
			checks = append(checks, c)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate check rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checks, nil
}

// AppendCheck records result as the next check of urlID. The URL row is locked
// for the duration of the transaction so concurrent checks of the same URL get
// consecutive sequence numbers; checks of different URLs do not contend.
func (r *URLRepository) AppendCheck(
	ctx context.Context,
	urlID int64,
	result analyzer.FetchResult,
	checkedAt time.Time,
) (analyzer.Check, error) {
	check := analyzer.Check{
		URLID:       urlID,
		StatusCode:  result.StatusCode,
		H1:          result.SEO.H1,
		Title:       result.SEO.Title,
		Description: result.SEO.Description,
		CheckedAt:   checkedAt,
	}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var lockedID int64
		err := tx.QueryRow(ctx, `SELECT id FROM urls WHERE id = $1 FOR UPDATE`, urlID).Scan(&lockedID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return analyzer.ErrURLNotFound
			}
			return fmt.Errorf("lock url: %w", err)
		}

		next := `SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM checks WHERE url_id = $1`
		if err := tx.QueryRow(ctx, next, urlID).Scan(&check.SequenceNumber); err != nil {
			return fmt.Errorf("next sequence number: %w", err)
		}

		insert := `
INSERT INTO checks (url_id, sequence_number, status_code, h1, title, description, checked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
		if err := tx.QueryRow(ctx, insert,
			urlID,
			check.SequenceNumber,
			check.StatusCode,
			check.H1,
			check.Title,
			check.Description,
			checkedAt,
		).Scan(&check.ID); err != nil {
			return fmt.Errorf("insert check: %w", mapConstraintError(err))
		}
		return nil
	})
	if err != nil {
		return analyzer.Check{}, err
	}
	return check, nil
}

// scanURL maps pgx.ErrNoRows to analyzer.ErrURLNotFound.
func scanURL(row pgx.Row) (analyzer.URL, error) {
	var u analyzer.URL
	if err := row.Scan(&u.ID, &u.Address, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analyzer.URL{}, analyzer.ErrURLNotFound
		}
		return analyzer.URL{}, fmt.Errorf("scan url: %w", err)
	}
	return u, nil
}

func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", analyzer.ErrURLNotFound, pgErr.ConstraintName)
	case pgUniqueViolation:
		return fmt.Errorf("duplicate check sequence (%s): %w", pgErr.ConstraintName, err)
	default:
		return err
	}
}
