package contracts

import (
	"context"
	"time"
)

// PriceProvider supplies daily bars (S0)
// ⭐ SSOT: 가격 조회 인터페이스
type PriceProvider interface {
	// Bars returns bars of the given securities in [start, end], ordered by code then date.
	// A nil securities slice means every security.
	Bars(ctx context.Context, securities []string, start, end time.Time) ([]Bar, error)
}

// FundamentalProvider supplies precomputed momentum fields (S0)
type FundamentalProvider interface {
	Fundamentals(ctx context.Context, date time.Time, securities []string) ([]Fundamental, error)
}

// FactorSource supplies sparse factor observations (S0)
type FactorSource interface {
	Observations(ctx context.Context, factor string, start, end time.Time) ([]FactorObservation, error)
}

// UniverseProvider resolves basket membership (S1)
// ⭐ SSOT: S1 유니버스 조회 인터페이스
type UniverseProvider interface {
	Members(ctx context.Context, date time.Time, basket Basket, filters ...Filter) (*Universe, error)
}
