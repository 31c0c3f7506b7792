// Package s1_universe resolves which securities a backtest may hold on a date.
package s1_universe

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/factorlab/internal/calendar"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/pkg/logger"
)

// DefaultNewListingDays is the seasoning window of the new_listing filter
const DefaultNewListingDays = 60

// Provider implements contracts.UniverseProvider
// ⭐ SSOT: S1 유니버스 조회
type Provider struct {
	source         MembershipSource
	cal            *calendar.Calendar
	newListingDays int
	logger         *logger.Logger

	listings map[string]contracts.Listing
}

// NewProvider creates a provider. newListingDays <= 0 selects the default.
func NewProvider(source MembershipSource, cal *calendar.Calendar, newListingDays int, log *logger.Logger) *Provider {
	if newListingDays <= 0 {
		newListingDays = DefaultNewListingDays
	}
	return &Provider{
		source:         source,
		cal:            cal,
		newListingDays: newListingDays,
		logger:         log,
	}
}

// Load reads listing dates once. Members fails until Load has succeeded.
func (p *Provider) Load(ctx context.Context) error {
	listings, err := p.source.Listings(ctx)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	byCode := make(map[string]contracts.Listing, len(listings))
	for _, l := range listings {
		byCode[l.Code] = l
	}
	p.listings = byCode

	p.logger.WithField("listings", len(byCode)).Debug("Listings loaded")
	return nil
}

// Members resolves basket on date, drops delisted securities and applies
// filters in the given order over the window [date, date].
func (p *Provider) Members(ctx context.Context, date time.Time, basket contracts.Basket, filters ...contracts.Filter) (*contracts.Universe, error) {
	if p.listings == nil {
		return nil, fmt.Errorf("universe provider: listings not loaded")
	}
	date = contracts.DateOf(date)

	codes, err := p.basketCodes(ctx, date, basket)
	if err != nil {
		return nil, err
	}
	u := contracts.NewUniverse(date, basket, codes)

	var delisted []string
	for _, code := range u.Members {
		if l, ok := p.listings[code]; ok && !l.ActiveOn(date) {
			delisted = append(delisted, code)
		}
	}
	u.Exclude(delisted, contracts.ReasonDelisted)

	applied := make(map[contracts.Filter]bool, len(filters))
	for _, f := range filters {
		if applied[f] {
			continue
		}
		applied[f] = true

		drop, err := p.filterCodes(ctx, u, f)
		if err != nil {
			return nil, fmt.Errorf("apply %s filter on %s: %w", f, date.Format("2006-01-02"), err)
		}
		u.Exclude(drop, f)
	}

	p.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"basket":   string(basket),
		"members":  u.Count(),
		"excluded": len(u.Excluded),
	}).Debug("Universe resolved")

	return u, nil
}

func (p *Provider) basketCodes(ctx context.Context, date time.Time, basket contracts.Basket) ([]string, error) {
	switch basket {
	case contracts.BasketAShare:
		codes, err := p.source.TradedCodes(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("traded codes on %s: %w", date.Format("2006-01-02"), err)
		}
		return codes, nil

	case contracts.BasketSZ50, contracts.BasketHS300, contracts.BasketZZ500, contracts.BasketZZ800, contracts.BasketZZ1000:
		indexCode, _ := basket.IndexCode()
		// 구성종목은 직전 월말 스냅샷 기준
		snapshot, err := p.cal.ClosedMonthEnd(date)
		if err != nil {
			return nil, fmt.Errorf("membership snapshot for %s: %w", date.Format("2006-01-02"), err)
		}
		blocks, err := p.source.Blocks(ctx, snapshot, indexCode)
		if err != nil {
			return nil, fmt.Errorf("%s blocks on %s: %w", basket, snapshot.Format("2006-01-02"), err)
		}
		codes := make([]string, len(blocks))
		for i, b := range blocks {
			codes[i] = b.Code
		}
		return codes, nil

	default:
		return nil, fmt.Errorf("unknown basket %q", basket)
	}
}

func (p *Provider) filterCodes(ctx context.Context, u *contracts.Universe, f contracts.Filter) ([]string, error) {
	if u.Count() == 0 {
		return nil, nil
	}

	switch f {
	case contracts.FilterST:
		return p.source.STCodes(ctx, u.Members, u.Date, u.Date)

	case contracts.FilterSuspended:
		return p.source.SuspendedCodes(ctx, u.Members, u.Date, u.Date)

	case contracts.FilterNewListing:
		from, err := p.cal.Shift(u.Date, calendar.Days(p.newListingDays), calendar.Pre)
		if err != nil {
			return nil, err
		}
		var fresh []string
		for _, code := range u.Members {
			l, ok := p.listings[code]
			if !ok {
				continue
			}
			if !l.ListDate.Before(from) && !l.ListDate.After(u.Date) {
				fresh = append(fresh, code)
			}
		}
		return fresh, nil

	default:
		return nil, fmt.Errorf("unknown filter %q", f)
	}
}
