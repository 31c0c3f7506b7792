package s0_data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorlab/internal/contracts"
)

// PriceRepository implements contracts.PriceProvider
// ⭐ SSOT: 가격 데이터 조회는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// Bars returns daily bars in [start, end] ordered by code, date.
// A bar without an adjustment factor is reported as missing data.
func (r *PriceRepository) Bars(ctx context.Context, securities []string, start, end time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT code, trade_date, close, adj_factor, volume
		FROM market.daily_bars
		WHERE trade_date BETWEEN $1 AND $2
		  AND ($3::text[] IS NULL OR code = ANY($3))
		ORDER BY code ASC, trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, start, end, securities)
	if err != nil {
		return nil, fmt.Errorf("query daily bars: %w", err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var (
			b   contracts.Bar
			adj sql.NullFloat64
		)
		if err := rows.Scan(&b.Code, &b.Date, &b.Close, &adj, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan daily bar: %w", err)
		}
		if !adj.Valid {
			return nil, &contracts.MissingDataError{Source: "prices", Security: b.Code, Date: b.Date, Field: "adj_factor"}
		}
		b.AdjFactor = adj.Float64
		b.Date = contracts.DateOf(b.Date)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily bars: %w", err)
	}
	return bars, nil
}

// SuspendedCodes returns the codes among securities with a zero-volume bar in [start, end]
func (r *PriceRepository) SuspendedCodes(ctx context.Context, securities []string, start, end time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT code
		FROM market.daily_bars
		WHERE trade_date BETWEEN $1 AND $2
		  AND code = ANY($3)
		  AND volume = 0
	`
	return queryCodes(ctx, r.pool, query, start, end, securities)
}

// TradedCodes returns every code with a bar on date
func (r *PriceRepository) TradedCodes(ctx context.Context, date time.Time) ([]string, error) {
	query := `
		SELECT code
		FROM market.daily_bars
		WHERE trade_date = $1
		ORDER BY code ASC
	`
	return queryCodes(ctx, r.pool, query, date)
}

func queryCodes(ctx context.Context, pool *pgxpool.Pool, query string, args ...interface{}) ([]string, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
