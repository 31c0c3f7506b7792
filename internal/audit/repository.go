package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorlab/internal/contracts"
)

// RunRecord is the persisted summary of one group backtest run
type RunRecord struct {
	RunID      string          `json:"run_id"`
	Factor     string          `json:"factor"`
	Basket     string          `json:"basket"`
	Freq       string          `json:"freq"`
	Groups     int             `json:"groups"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Config     json.RawMessage `json:"config"`
	Indicators []IndicatorRow  `json:"indicators"`
	ICMean     *float64        `json:"ic_mean,omitempty"`
	ICIR       *float64        `json:"icir,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Repository handles backtest run history
// ⭐ SSOT: 백테스트 실행 이력 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun upserts a run summary; re-running the same run id replaces it
func (r *Repository) SaveRun(ctx context.Context, rec RunRecord) error {
	indicatorsJSON, err := json.Marshal(rec.Indicators)
	if err != nil {
		return fmt.Errorf("failed to marshal indicators: %w", err)
	}

	query := `
		INSERT INTO audit.backtest_runs (
			run_id, factor, basket, freq, groups, start_date, end_date,
			config, indicators, ic_mean, icir, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO UPDATE SET
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			config = EXCLUDED.config,
			indicators = EXCLUDED.indicators,
			ic_mean = EXCLUDED.ic_mean,
			icir = EXCLUDED.icir,
			duration_ms = EXCLUDED.duration_ms,
			created_at = EXCLUDED.created_at
	`

	_, err = r.pool.Exec(ctx, query,
		rec.RunID, rec.Factor, rec.Basket, rec.Freq, rec.Groups, rec.Start, rec.End,
		[]byte(rec.Config), indicatorsJSON, rec.ICMean, rec.ICIR, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}

	return nil
}

// GetRun retrieves one run by id
func (r *Repository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `
		SELECT run_id, factor, basket, freq, groups, start_date, end_date,
		       config, indicators, ic_mean, icir, duration_ms, created_at
		FROM audit.backtest_runs
		WHERE run_id = $1
	`

	rec, err := scanRun(r.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &contracts.MissingDataError{Source: "audit.backtest_runs", Field: "run " + runID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the latest runs, newest first. An empty factor lists all.
func (r *Repository) ListRuns(ctx context.Context, factor string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, factor, basket, freq, groups, start_date, end_date,
		       config, indicators, ic_mean, icir, duration_ms, created_at
		FROM audit.backtest_runs
		WHERE $1 = '' OR factor = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, factor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var rec RunRecord
	var configJSON, indicatorsJSON []byte

	err := row.Scan(
		&rec.RunID, &rec.Factor, &rec.Basket, &rec.Freq, &rec.Groups, &rec.Start, &rec.End,
		&configJSON, &indicatorsJSON, &rec.ICMean, &rec.ICIR, &rec.DurationMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Config = configJSON
	if err := json.Unmarshal(indicatorsJSON, &rec.Indicators); err != nil {
		return nil, fmt.Errorf("failed to unmarshal indicators: %w", err)
	}
	return &rec, nil
}
