package audit

import (
	"encoding/json"
	"math"
	"time"
)

// nullable maps NaN/Inf onto JSON null
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON implements json.Marshaler
func (r IndicatorRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name             string   `json:"name"`
		AnnualizedReturn *float64 `json:"annualized_return"`
		MaxDrawdown      *float64 `json:"max_drawdown"`
		SharpeRatio      *float64 `json:"sharpe_ratio"`
	}{r.Name, nullable(r.AnnualizedReturn), nullable(r.MaxDrawdown), nullable(r.SharpeRatio)})
}

// MarshalJSON implements json.Marshaler
func (p ICPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date        string   `json:"date"`
		IC          *float64 `json:"ic"`
		Correlation *float64 `json:"correlation"`
		PValue      *float64 `json:"p_value"`
		N           int      `json:"n"`
	}{p.Date.Format(time.DateOnly), nullable(p.IC), nullable(p.Correlation), nullable(p.PValue), p.N})
}

// MarshalJSON implements json.Marshaler
func (s ICSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Series []ICPoint `json:"series"`
		Mean   *float64  `json:"ic_mean"`
		IR     *float64  `json:"icir"`
	}{s.Series, nullable(s.Mean), nullable(s.IR)})
}

// UnmarshalJSON restores null values as NaN
func (r *IndicatorRow) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name             string   `json:"name"`
		AnnualizedReturn *float64 `json:"annualized_return"`
		MaxDrawdown      *float64 `json:"max_drawdown"`
		SharpeRatio      *float64 `json:"sharpe_ratio"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = IndicatorRow{
		Name:             raw.Name,
		AnnualizedReturn: orNaN(raw.AnnualizedReturn),
		MaxDrawdown:      orNaN(raw.MaxDrawdown),
		SharpeRatio:      orNaN(raw.SharpeRatio),
	}
	return nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Stats returns IC mean and ICIR, nil where undefined. A nil summary has neither.
func (s *ICSummary) Stats() (mean, ir *float64) {
	if s == nil {
		return nil, nil
	}
	return nullable(s.Mean), nullable(s.IR)
}
