package backtest

import (
	"encoding/json"
	"time"

	"github.com/wonny/factorlab/internal/audit"
)

// Record summarizes the result for the run history
func (r *Result) Record() (audit.RunRecord, error) {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return audit.RunRecord{}, err
	}
	mean, ir := r.IC.Stats()

	return audit.RunRecord{
		RunID:      r.RunID,
		Factor:     r.Config.Factor,
		Basket:     string(r.Config.Basket),
		Freq:       r.Config.Freq,
		Groups:     r.Config.Groups,
		Start:      r.Start,
		End:        r.End,
		Config:     cfg,
		Indicators: r.Indicators,
		ICMean:     mean,
		ICIR:       ir,
		DurationMs: r.Duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}, nil
}
