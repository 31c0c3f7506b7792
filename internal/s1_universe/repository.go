package s1_universe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/s0_data"
	"github.com/wonny/factorlab/pkg/redis"
)

// MembershipSource is everything the provider reads to resolve a basket
type MembershipSource interface {
	// Blocks returns the index block rows of indexCode on date
	Blocks(ctx context.Context, date time.Time, indexCode string) ([]contracts.BlockMember, error)
	// TradedCodes returns every code with a bar on date
	TradedCodes(ctx context.Context, date time.Time) ([]string, error)
	// Listings returns listing/delisting dates of every security
	Listings(ctx context.Context) ([]contracts.Listing, error)
	// STCodes returns the codes among securities flagged ST at any point in [start, end]
	STCodes(ctx context.Context, securities []string, start, end time.Time) ([]string, error)
	// SuspendedCodes returns the codes among securities with a zero-volume bar in [start, end]
	SuspendedCodes(ctx context.Context, securities []string, start, end time.Time) ([]string, error)
}

// Repository reads basket membership from PostgreSQL
// ⭐ SSOT: 구성종목/상장정보 조회는 여기서만
type Repository struct {
	db     *pgxpool.Pool
	prices *s0_data.PriceRepository
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, prices: s0_data.NewPriceRepository(db)}
}

// Blocks implements MembershipSource
func (r *Repository) Blocks(ctx context.Context, date time.Time, indexCode string) ([]contracts.BlockMember, error) {
	query := `
		SELECT code, trade_date, index_code, is_st
		FROM market.index_blocks
		WHERE trade_date = $1
		  AND index_code = $2
		ORDER BY code ASC
	`

	rows, err := r.db.Query(ctx, query, date, indexCode)
	if err != nil {
		return nil, fmt.Errorf("query index blocks: %w", err)
	}
	defer rows.Close()

	var members []contracts.BlockMember
	for rows.Next() {
		var m contracts.BlockMember
		if err := rows.Scan(&m.Code, &m.Date, &m.Index, &m.ST); err != nil {
			return nil, fmt.Errorf("scan index block: %w", err)
		}
		m.Date = contracts.DateOf(m.Date)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index blocks: %w", err)
	}
	return members, nil
}

// TradedCodes implements MembershipSource
func (r *Repository) TradedCodes(ctx context.Context, date time.Time) ([]string, error) {
	return r.prices.TradedCodes(ctx, date)
}

// SuspendedCodes implements MembershipSource
func (r *Repository) SuspendedCodes(ctx context.Context, securities []string, start, end time.Time) ([]string, error) {
	return r.prices.SuspendedCodes(ctx, securities, start, end)
}

// Listings implements MembershipSource
func (r *Repository) Listings(ctx context.Context) ([]contracts.Listing, error) {
	query := `
		SELECT code, list_date, delist_date
		FROM market.listings
		ORDER BY code ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []contracts.Listing
	for rows.Next() {
		var (
			l      contracts.Listing
			delist *time.Time
		)
		if err := rows.Scan(&l.Code, &l.ListDate, &delist); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.ListDate = contracts.DateOf(l.ListDate)
		if delist != nil {
			l.DelistDate = contracts.DateOf(*delist)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// STCodes implements MembershipSource
func (r *Repository) STCodes(ctx context.Context, securities []string, start, end time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT code
		FROM market.index_blocks
		WHERE trade_date BETWEEN $1 AND $2
		  AND code = ANY($3)
		  AND is_st
	`

	rows, err := r.db.Query(ctx, query, start, end, securities)
	if err != nil {
		return nil, fmt.Errorf("query st codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan st code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// CachedSource serves index block snapshots from Redis.
// Everything else goes straight to the wrapped source.
type CachedSource struct {
	MembershipSource
	cache *redis.Cache
}

// NewCachedSource wraps next with a Redis cache for block snapshots
func NewCachedSource(next MembershipSource, client *redis.Client) *CachedSource {
	return &CachedSource{MembershipSource: next, cache: redis.NewCache(client, "universe")}
}

// Blocks implements MembershipSource
func (s *CachedSource) Blocks(ctx context.Context, date time.Time, indexCode string) ([]contracts.BlockMember, error) {
	key := redis.MembershipKey(indexCode, date)
	return redis.GetOrLoad(ctx, s.cache, key, redis.TTLMembership, func() ([]contracts.BlockMember, error) {
		return s.MembershipSource.Blocks(ctx, date, indexCode)
	})
}
