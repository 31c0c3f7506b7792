package calendar

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorlab/pkg/redis"
)

// Repository reads the trading calendar from PostgreSQL
// ⭐ SSOT: 거래일 테이블 조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new calendar repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TradingDays implements DayRepository
func (r *Repository) TradingDays(ctx context.Context) ([]Day, error) {
	query := `
		SELECT trade_date, is_week_end, is_month_end, is_quarter_end
		FROM market.trade_calendar
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query trade calendar: %w", err)
	}
	defer rows.Close()

	var days []Day
	for rows.Next() {
		var d Day
		if err := rows.Scan(&d.Date, &d.WeekEnd, &d.MonthEnd, &d.QuarterEnd); err != nil {
			return nil, fmt.Errorf("scan trade calendar: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// CachedRepository serves the calendar from Redis when present
type CachedRepository struct {
	next  DayRepository
	cache *redis.Cache
}

// NewCachedRepository wraps next with a Redis cache
func NewCachedRepository(next DayRepository, client *redis.Client) *CachedRepository {
	return &CachedRepository{next: next, cache: redis.NewCache(client, "calendar")}
}

// TradingDays implements DayRepository
func (r *CachedRepository) TradingDays(ctx context.Context) ([]Day, error) {
	return redis.GetOrLoad(ctx, r.cache, "all", redis.TTLCalendar, func() ([]Day, error) {
		return r.next.TradingDays(ctx)
	})
}
