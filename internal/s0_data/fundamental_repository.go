package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorlab/internal/contracts"
)

// FundamentalRepository implements contracts.FundamentalProvider
type FundamentalRepository struct {
	pool *pgxpool.Pool
}

// NewFundamentalRepository creates a new fundamental repository
func NewFundamentalRepository(pool *pgxpool.Pool) *FundamentalRepository {
	return &FundamentalRepository{pool: pool}
}

// Fundamentals returns the precomputed momentum fields of securities on date
func (r *FundamentalRepository) Fundamentals(ctx context.Context, date time.Time, securities []string) ([]contracts.Fundamental, error) {
	query := `
		SELECT code, trade_date, d_return, w_return, m_return
		FROM market.fundamentals
		WHERE trade_date = $1
		  AND code = ANY($2)
		ORDER BY code ASC
	`

	rows, err := r.pool.Query(ctx, query, date, securities)
	if err != nil {
		return nil, fmt.Errorf("query fundamentals: %w", err)
	}
	defer rows.Close()

	var out []contracts.Fundamental
	for rows.Next() {
		var f contracts.Fundamental
		if err := rows.Scan(&f.Code, &f.Date, &f.DailyReturn, &f.WeekReturn, &f.MonthReturn); err != nil {
			return nil, fmt.Errorf("scan fundamental: %w", err)
		}
		f.Date = contracts.DateOf(f.Date)
		out = append(out, f)
	}
	return out, rows.Err()
}
