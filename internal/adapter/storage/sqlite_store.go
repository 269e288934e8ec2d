package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"trendcraft/internal/adapter/storage/migrations"
	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

// sqliteTimeLayout is fixed width so text ordering matches time ordering
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements trend.Store on an embedded SQLite database
type SQLiteStore struct {
	db *sql.DB
}

var _ trend.Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path and runs pending migrations.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string, logger logging.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Up(db, migrations.SQLite, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for migrations
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DeleteTrends removes the stored trends of one (source, categorySource) pair
func (s *SQLiteStore) DeleteTrends(ctx context.Context, source trend.Source, categorySource trend.CategoryKey) (int64, error) {
	query, args, err := sq.Delete(trendsTable).
		Where(sq.Eq{"source": string(source), "category_source": string(categorySource)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete trends: %w", err)
	}
	return res.RowsAffected()
}

// InsertTrends writes the batch in a single transaction
func (s *SQLiteStore) InsertTrends(ctx context.Context, trends []trend.Trend) (int, error) {
	if len(trends) == 0 {
		return 0, nil
	}

	query, args, err := insertQuery(trends, sq.Question, func(t time.Time) interface{} {
		return t.UTC().Format(sqliteTimeLayout)
	})
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert trends: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// GetTrend retrieves a trend by ID
func (s *SQLiteStore) GetTrend(ctx context.Context, id string) (*trend.Trend, error) {
	query, args, err := sq.Select(trendColumns...).
		From(trendsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	t, err := scanSQLiteTrend(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	return &t, nil
}

// FindTrends returns trends matching the filter
func (s *SQLiteStore) FindTrends(ctx context.Context, filter trend.Filter) ([]trend.Trend, error) {
	query, args, err := findQuery(filter, sq.Question)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer func() { _ = rows.Close() }()

	trends := []trend.Trend{}
	for rows.Next() {
		t, err := scanSQLiteTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trends: %w", err)
	}
	return trends, nil
}

func scanSQLiteTrend(row scanner) (trend.Trend, error) {
	var t trend.Trend
	var r trendRow
	var since, created string
	err := row.Scan(
		&t.ID,
		&t.Topic,
		&t.Description,
		&r.category,
		&r.source,
		&t.EngagementScore,
		&t.GrowthRate,
		&since,
		&r.categorySource,
		&created,
	)
	if err != nil {
		return trend.Trend{}, err
	}
	r.apply(&t)

	if t.TrendingSince, err = time.Parse(sqliteTimeLayout, since); err != nil {
		return trend.Trend{}, fmt.Errorf("parse trending_since: %w", err)
	}
	if t.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
		return trend.Trend{}, fmt.Errorf("parse created_at: %w", err)
	}
	return t, nil
}
