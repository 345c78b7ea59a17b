package postgres

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
)

var day = time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

func newMockRepository(t *testing.T) (*URLRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo, err := NewURLRepositoryWithPool(mock, nil)
	require.NoError(t, err)
	return repo, mock
}

func urlRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "address", "created_at"})
}

func TestNewURLRepositoryWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewURLRepositoryWithPool(nil, nil)
	require.Error(t, err)
}

func TestNewURLRepositoryRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewURLRepository(context.Background(), URLRepositoryConfig{}, nil)
	require.ErrorContains(t, err, "db.dsn is required")
}

func TestFindByAddress(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, address, created_at FROM urls WHERE address").
		WithArgs("https://example.com").
		WillReturnRows(urlRows().AddRow(int64(7), "https://example.com", day))
	mock.ExpectCommit()

	got, err := repo.FindByAddress(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, analyzer.URL{ID: 7, Address: "https://example.com", CreatedAt: day}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByAddressNotFoundRollsBack(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, address, created_at FROM urls WHERE address").
		WithArgs("https://missing.example").
		WillReturnRows(urlRows())
	mock.ExpectRollback()

	_, err := repo.FindByAddress(context.Background(), "https://missing.example")
	require.ErrorIs(t, err, analyzer.ErrURLNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertURLCreatesRow(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO urls").
		WithArgs("https://example.com", day).
		WillReturnRows(urlRows().AddRow(int64(1), "https://example.com", day))
	mock.ExpectCommit()

	got, created, err := repo.InsertURL(context.Background(), "https://example.com", day)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(1), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertURLConflictReturnsExisting(t *testing.T) {
	t.Parallel()

	earlier := day.AddDate(0, 0, -3)
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO urls").
		WithArgs("https://example.com", day).
		WillReturnRows(urlRows())
	mock.ExpectQuery("SELECT id, address, created_at FROM urls WHERE address").
		WithArgs("https://example.com").
		WillReturnRows(urlRows().AddRow(int64(4), "https://example.com", earlier))
	mock.ExpectCommit()

	got, created, err := repo.InsertURL(context.Background(), "https://example.com", day)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, analyzer.URL{ID: 4, Address: "https://example.com", CreatedAt: earlier}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertURLQueryErrorRollsBack(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO urls").
		WithArgs("https://example.com", day).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	_, _, err := repo.InsertURL(context.Background(), "https://example.com", day)
	require.ErrorContains(t, err, "connection lost")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetURLNotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, address, created_at FROM urls WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(urlRows())
	mock.ExpectRollback()

	_, err := repo.GetURL(context.Background(), 99)
	require.ErrorIs(t, err, analyzer.ErrURLNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListURLsJoinsLatestCheck(t *testing.T) {
	t.Parallel()

	status := 200
	checked := day.AddDate(0, 0, 1)
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM urls")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery("LEFT JOIN LATERAL").
		WithArgs(5, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "address", "created_at", "status_code", "checked_at"}).
			AddRow(int64(7), "https://b.example", day, &status, &checked).
			AddRow(int64(6), "https://a.example", day, (*int)(nil), (*time.Time)(nil)))
	mock.ExpectCommit()

	page, err := repo.ListURLs(context.Background(), 2, 5)
	require.NoError(t, err)
	require.Equal(t, 12, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 3, page.TotalPages())
	require.Len(t, page.Rows, 2)

	require.Equal(t, int64(7), page.Rows[0].URL.ID)
	require.NotNil(t, page.Rows[0].LastStatusCode)
	require.Equal(t, 200, *page.Rows[0].LastStatusCode)
	require.Equal(t, checked, *page.Rows[0].LastCheckedAt)

	require.Nil(t, page.Rows[1].LastStatusCode)
	require.Nil(t, page.Rows[1].LastCheckedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListURLsPastTheEndIsEmpty(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM urls")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("LEFT JOIN LATERAL").
		WithArgs(10, 90).
		WillReturnRows(pgxmock.NewRows([]string{"id", "address", "created_at", "status_code", "checked_at"}))
	mock.ExpectCommit()

	page, err := repo.ListURLs(context.Background(), 10, 10)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.NotNil(t, page.Rows)
	require.Empty(t, page.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListURLsCapsOverflowingOffset(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	maxPage := math.MaxInt / 10
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM urls")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("LEFT JOIN LATERAL").
		WithArgs(10, (maxPage-1)*10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "address", "created_at", "status_code", "checked_at"}))
	mock.ExpectCommit()

	page, err := repo.ListURLs(context.Background(), math.MaxInt, 10)
	require.NoError(t, err)
	require.Equal(t, maxPage, page.Page)
	require.Empty(t, page.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListURLsRejectsZeroPageSize(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	_, err := repo.ListURLs(context.Background(), 1, 0)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListChecksNewestFirst(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM checks").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "url_id", "sequence_number", "status_code", "h1", "title", "description", "checked_at",
		}).
			AddRow(int64(11), int64(3), 2, 500, "", "", "", day).
			AddRow(int64(10), int64(3), 1, 200, "Hello", "Home", "Desc", day))
	mock.ExpectCommit()

	checks, err := repo.ListChecks(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	require.Equal(t, 2, checks[0].SequenceNumber)
	require.Equal(t, 500, checks[0].StatusCode)
	require.Equal(t, "Hello", checks[1].H1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendCheckAssignsNextSequence(t *testing.T) {
	t.Parallel()

	result := analyzer.FetchResult{
		StatusCode: 404,
		SEO:        analyzer.SEO{H1: "Not here", Title: "Missing"},
	}
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(sequence_number), 0) + 1")).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(4))
	mock.ExpectQuery("INSERT INTO checks").
		WithArgs(int64(3), 4, 404, "Not here", "Missing", "", day).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(20)))
	mock.ExpectCommit()

	check, err := repo.AppendCheck(context.Background(), 3, result, day)
	require.NoError(t, err)
	require.Equal(t, analyzer.Check{
		ID:             20,
		URLID:          3,
		SequenceNumber: 4,
		StatusCode:     404,
		H1:             "Not here",
		Title:          "Missing",
		CheckedAt:      day,
	}, check)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendCheckUnknownURL(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.AppendCheck(context.Background(), 42, analyzer.FetchResult{StatusCode: 200}, day)
	require.ErrorIs(t, err, analyzer.ErrURLNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendCheckForeignKeyViolation(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(sequence_number), 0) + 1")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO checks").
		WithArgs(int64(5), 1, 200, "", "", "", day).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "checks_url_id_fkey"})
	mock.ExpectRollback()

	_, err := repo.AppendCheck(context.Background(), 5, analyzer.FetchResult{StatusCode: 200}, day)
	require.ErrorIs(t, err, analyzer.ErrURLNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxBeginFailure(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := repo.GetURL(context.Background(), 1)
	require.ErrorContains(t, err, "begin tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommitFailure(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, address, created_at FROM urls WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(urlRows().AddRow(int64(1), "https://example.com", day))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	_, err := repo.GetURL(context.Background(), 1)
	require.ErrorContains(t, err, "commit tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	require.Panics(t, func() {
		_ = repo.withTx(context.Background(), func(_ pgx.Tx) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	repo, err := NewURLRepositoryWithPool(mock, nil)
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, repo.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.ErrorContains(t, repo.Ping(context.Background()), "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://localhost/db", "pgx5://localhost/db"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, migrateURL(tt.in), tt.in)
	}
}

func TestMigrateRejectsUnknownInput(t *testing.T) {
	t.Parallel()

	require.ErrorContains(t, Migrate("", DirectionUp, nil), "db.dsn is required")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	t.Parallel()

	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Contains(t, names, "000001_create_urls.up.sql")
	require.Contains(t, names, "000002_create_checks.down.sql")
}
