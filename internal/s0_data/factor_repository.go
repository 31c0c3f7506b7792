package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorlab/internal/contracts"
)

// FactorRepository implements contracts.FactorSource over the factor store
type FactorRepository struct {
	pool *pgxpool.Pool
}

// NewFactorRepository creates a new factor repository
func NewFactorRepository(pool *pgxpool.Pool) *FactorRepository {
	return &FactorRepository{pool: pool}
}

// Observations returns every stored value of factor in [start, end].
// A NULL value is kept as NaN: the security was observed without a value.
func (r *FactorRepository) Observations(ctx context.Context, factor string, start, end time.Time) ([]contracts.FactorObservation, error) {
	query := `
		SELECT code, trade_date, COALESCE(value, 'NaN'::float8)
		FROM factor.values
		WHERE factor_name = $1
		  AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC, code ASC
	`

	rows, err := r.pool.Query(ctx, query, factor, start, end)
	if err != nil {
		return nil, fmt.Errorf("query factor %s: %w", factor, err)
	}
	defer rows.Close()

	var out []contracts.FactorObservation
	for rows.Next() {
		var o contracts.FactorObservation
		if err := rows.Scan(&o.Code, &o.Date, &o.Value); err != nil {
			return nil, fmt.Errorf("scan factor %s: %w", factor, err)
		}
		o.Date = contracts.DateOf(o.Date)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &contracts.MissingDataError{Source: "factors", Date: start, Field: factor}
	}
	return out, nil
}
