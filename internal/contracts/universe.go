package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Basket is the closed set of universes a backtest can run on.
// ⭐ SSOT: 유니버스 이름 → 조회 로직은 switch 로만 연결 (동적 디스패치 금지)
type Basket string

const (
	BasketAShare Basket = "a_share" // 전 종목 (해당일 거래 종목)
	BasketSZ50   Basket = "sz50"
	BasketHS300  Basket = "hs300"
	BasketZZ500  Basket = "zz500"
	BasketZZ800  Basket = "zz800"
	BasketZZ1000 Basket = "zz1000"
)

// AllBaskets returns every supported basket
func AllBaskets() []Basket {
	return []Basket{BasketAShare, BasketSZ50, BasketHS300, BasketZZ500, BasketZZ800, BasketZZ1000}
}

// ParseBasket maps a case-insensitive name onto a Basket
func ParseBasket(s string) (Basket, error) {
	b := Basket(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllBaskets() {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown basket %q", s)
}

// IndexCode returns the block-table index column of an index basket.
// The full-market basket has no index code.
func (b Basket) IndexCode() (string, bool) {
	switch b {
	case BasketSZ50:
		return "000016", true
	case BasketHS300:
		return "000300", true
	case BasketZZ500:
		return "000905", true
	case BasketZZ800:
		return "000906", true
	case BasketZZ1000:
		return "000852", true
	default:
		return "", false
	}
}

// Filter is a named universe exclusion rule
type Filter string

const (
	FilterST         Filter = "st"          // ST 지정 종목 제외
	FilterSuspended  Filter = "suspended"   // 거래정지 (거래량 0) 제외
	FilterNewListing Filter = "new_listing" // 상장 N 거래일 미만 제외

	// ReasonDelisted is recorded for delisted members; it is always applied
	// and cannot be requested as a filter.
	ReasonDelisted Filter = "delisted"
)

// ParseFilter maps a case-insensitive name onto a Filter
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterST, FilterSuspended, FilterNewListing:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// Universe is the resolved membership of a basket on one date
type Universe struct {
	Date     time.Time         `json:"date"`
	Basket   Basket            `json:"basket"`
	Members  []string          `json:"members"`
	Excluded map[string]Filter `json:"excluded,omitempty"` // 제외 종목: 사유
}

// NewUniverse builds a universe with sorted, de-duplicated members
func NewUniverse(date time.Time, basket Basket, members []string) *Universe {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return &Universe{Date: date, Basket: basket, Members: out, Excluded: map[string]Filter{}}
}

// Contains checks if a security is a member
func (u *Universe) Contains(code string) bool {
	i := sort.SearchStrings(u.Members, code)
	return i < len(u.Members) && u.Members[i] == code
}

// Exclude removes codes from the membership, recording the reason
func (u *Universe) Exclude(codes []string, reason Filter) {
	if len(codes) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		drop[c] = struct{}{}
	}
	kept := u.Members[:0:0]
	for _, m := range u.Members {
		if _, ok := drop[m]; ok {
			u.Excluded[m] = reason
			continue
		}
		kept = append(kept, m)
	}
	u.Members = kept
}

// Count returns the number of members
func (u *Universe) Count() int {
	return len(u.Members)
}
