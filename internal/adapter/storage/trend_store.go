// internal/adapter/storage/trend_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trendcraft/internal/domain/trend"
)

// TrendStore implements trend.Store on Postgres
type TrendStore struct {
	db *pgxpool.Pool
}

var _ trend.Store = (*TrendStore)(nil)

// NewTrendStore creates a new trend store
func NewTrendStore(db *pgxpool.Pool) *TrendStore {
	return &TrendStore{
		db: db,
	}
}

// DeleteTrends removes the stored trends of one (source, categorySource) pair
func (s *TrendStore) DeleteTrends(ctx context.Context, source trend.Source, categorySource trend.CategoryKey) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM trends WHERE source = $1 AND category_source = $2`,
		string(source), string(categorySource),
	)
	if err != nil {
		return 0, fmt.Errorf("error deleting trends: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertTrends writes the batch in a single transaction
func (s *TrendStore) InsertTrends(ctx context.Context, trends []trend.Trend) (int, error) {
	if len(trends) == 0 {
		return 0, nil
	}

	query, args, err := insertQuery(trends, sq.Dollar, func(t time.Time) interface{} { return t.UTC() })
	if err != nil {
		return 0, fmt.Errorf("error building insert: %w", err)
	}

	var inserted int64
	err = s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return 0, fmt.Errorf("error inserting trends: %s (SQLSTATE %s): %w", pgErr.Message, pgErr.Code, err)
		}
		return 0, fmt.Errorf("error inserting trends: %w", err)
	}
	return int(inserted), nil
}

// GetTrend retrieves a trend by ID
func (s *TrendStore) GetTrend(ctx context.Context, id string) (*trend.Trend, error) {
	query, args, err := sq.Select(trendColumns...).
		From(trendsTable).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building query: %w", err)
	}

	t, err := scanPostgresTrend(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying trend: %w", err)
	}
	return &t, nil
}

// FindTrends finds trends matching the filter
func (s *TrendStore) FindTrends(ctx context.Context, filter trend.Filter) ([]trend.Trend, error) {
	query, args, err := findQuery(filter, sq.Dollar)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	trends := []trend.Trend{}
	for rows.Next() {
		t, err := scanPostgresTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning trend: %w", err)
		}
		trends = append(trends, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trends: %w", err)
	}

	return trends, nil
}

func scanPostgresTrend(row scanner) (trend.Trend, error) {
	var t trend.Trend
	var r trendRow
	err := row.Scan(
		&t.ID,
		&t.Topic,
		&t.Description,
		&r.category,
		&r.source,
		&t.EngagementScore,
		&t.GrowthRate,
		&t.TrendingSince,
		&r.categorySource,
		&t.CreatedAt,
	)
	if err != nil {
		return trend.Trend{}, err
	}
	r.apply(&t)
	t.TrendingSince = t.TrendingSince.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
