// Package backtest runs factor grouping and portfolio backtests end to end.
package backtest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/calendar"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/grouping"
	"github.com/wonny/factorlab/internal/s0_data"
	"github.com/wonny/factorlab/pkg/logger"
)

// DefaultFreq is the rebalance step used when Config.Freq is empty
const DefaultFreq = "m"

// Config holds one group backtest run.
// A zero Start means the first rebalance date; a zero End means the last
// rebalance date shifted by Freq ("m", "w", "2w", "5" ...).
type Config struct {
	RunID      string             `json:"run_id,omitempty"`
	Factor     string             `json:"factor"`
	Start      time.Time          `json:"start,omitempty"`
	End        time.Time          `json:"end,omitempty"`
	Freq       string             `json:"freq"`
	Basket     contracts.Basket   `json:"basket"`
	Filters    []contracts.Filter `json:"filters,omitempty"`
	Groups     int                `json:"groups"`
	LongShort  bool               `json:"long_short"`
	IC         bool               `json:"ic"`
	RankIC     bool               `json:"rank_ic"`
	ReturnMode s0_data.ReturnMode `json:"return_mode,omitempty"`
}

// Result holds group backtest results
type Result struct {
	RunID          string                             `json:"run_id"`
	Config         Config                             `json:"config"`
	Start          time.Time                          `json:"start"`
	End            time.Time                          `json:"end"`
	RebalanceDates []time.Time                        `json:"rebalance_dates"`
	Returns        *grouping.Matrix                   `json:"returns"`
	NetValue       *grouping.Matrix                   `json:"net_value"`
	Indicators     []audit.IndicatorRow               `json:"indicators"`
	IC             *audit.ICSummary                   `json:"ic,omitempty"`
	Degenerate     []contracts.DegenerateCrossSection `json:"degenerate,omitempty"`
	Timings        []contracts.StageTiming            `json:"timings"`
	Duration       time.Duration                      `json:"duration"`
}

// Deps are the collaborators of a GroupEngine.
// Universe may be nil when every run uses the a_share basket without filters.
type Deps struct {
	Factors      contracts.FactorSource
	Prices       contracts.PriceProvider
	Fundamentals contracts.FundamentalProvider
	Universe     contracts.UniverseProvider
	Calendar     *calendar.Calendar
	Workers      int
}

// GroupEngine runs single-factor grouping backtests
// ⭐ SSOT: 분위 그룹 백테스트 실행은 여기서만
type GroupEngine struct {
	deps     Deps
	analyzer *audit.Analyzer
	logger   *logger.Logger
}

// NewGroupEngine creates a new group backtest engine
func NewGroupEngine(deps Deps, log *logger.Logger) *GroupEngine {
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	return &GroupEngine{
		deps:     deps,
		analyzer: audit.NewAnalyzer(log),
		logger:   log,
	}
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return fmt.Sprintf("run_%s", time.Now().Format("20060102_150405"))
}

// runState is the resolved window of one backtest
type runState struct {
	cfg       Config
	step      calendar.Step
	sparse    grouping.SparseFactor
	rebalance []time.Time // within [start, end]
	start     time.Time
	end       time.Time
	horizon   time.Time // last rebalance date shifted by one step
	dates     []time.Time
	log       *logger.Logger
	timings   []contracts.StageTiming
}

func (r *runState) timed(stage contracts.Stage, began time.Time, rows int) {
	elapsed := time.Since(began)
	r.timings = append(r.timings, contracts.StageTiming{Stage: stage, Duration: elapsed.Milliseconds(), Rows: rows})
	r.log.WithStage(stage).WithFields(map[string]interface{}{
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("Stage completed")
}

// Run loads cfg.Factor from the factor source and runs the backtest
func (e *GroupEngine) Run(ctx context.Context, cfg Config) (*Result, error) {
	obs, err := e.loadFactor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return e.RunObservations(ctx, cfg, obs)
}

func (e *GroupEngine) loadFactor(ctx context.Context, cfg Config) ([]contracts.FactorObservation, error) {
	if e.deps.Factors == nil {
		return nil, fmt.Errorf("no factor source configured")
	}
	if e.deps.Calendar == nil {
		return nil, fmt.Errorf("no calendar configured")
	}
	from, to := cfg.Start, cfg.End
	if from.IsZero() {
		from = e.deps.Calendar.First()
	}
	if to.IsZero() {
		to = e.deps.Calendar.Last()
	}
	obs, err := e.deps.Factors.Observations(ctx, cfg.Factor, from, to)
	if err != nil {
		return nil, fmt.Errorf("load factor %s: %w", cfg.Factor, err)
	}
	return obs, nil
}

// RunObservations runs the backtest on an in-memory factor
func (e *GroupEngine) RunObservations(ctx context.Context, cfg Config, obs []contracts.FactorObservation) (*Result, error) {
	began := time.Now()
	r, err := e.prepare(cfg, obs)
	if err != nil {
		return nil, err
	}

	r.log.WithFields(map[string]interface{}{
		"factor":     r.cfg.Factor,
		"start":      r.start.Format("2006-01-02"),
		"end":        r.end.Format("2006-01-02"),
		"freq":       r.step.String(),
		"basket":     string(r.cfg.Basket),
		"groups":     r.cfg.Groups,
		"rebalances": len(r.rebalance),
	}).Info("Starting group backtest")

	// S1: 리밸런싱일별 유니버스
	t := time.Now()
	resolver, err := e.resolveUniverses(ctx, r)
	if err != nil {
		return nil, err
	}
	r.timed(contracts.StageUniverse, t, len(r.rebalance))

	// S2: 일별 패널 (forward fill)
	t = time.Now()
	panel, err := grouping.BuildPanel(r.sparse, r.dates, resolver)
	if err != nil {
		return nil, fmt.Errorf("build panel: %w", err)
	}
	r.timed(contracts.StagePanel, t, len(panel.Securities()))

	// S3: 순위 → 그룹
	t = time.Now()
	buckets, err := grouping.Bucket(grouping.Rank(panel), r.cfg.Groups)
	if err != nil {
		return nil, fmt.Errorf("bucket: %w", err)
	}
	degenerate := buckets.Degenerate()
	for _, dg := range degenerate {
		r.log.WithStage(contracts.StageBucket).WithFields(map[string]interface{}{
			"date":     dg.Date.Format("2006-01-02"),
			"distinct": dg.Distinct,
			"groups":   dg.Groups,
		}).Warn("Degenerate cross-section")
	}
	r.timed(contracts.StageBucket, t, len(degenerate))

	// S0 + S4: 수익률 결합 (T-1 그룹 → T 수익률)
	t = time.Now()
	bars, err := e.deps.Prices.Bars(ctx, panel.Securities(), r.start, r.end)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	r.timed(contracts.StageData, t, len(bars))

	t = time.Now()
	aligned, err := grouping.LagAndAlign(buckets, s0_data.Returns(bars))
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	r.timed(contracts.StageAlign, t, len(aligned))

	// S5: 그룹 수익률 / 순자산
	t = time.Now()
	returns, err := grouping.Aggregate(aligned, r.dates, r.cfg.Groups, r.cfg.LongShort)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	netValue := grouping.NetValue(returns)
	r.timed(contracts.StageAggregate, t, returns.Rows())

	// S6: 성과 지표
	t = time.Now()
	result := &Result{
		RunID:          r.cfg.RunID,
		Config:         r.cfg,
		Start:          r.start,
		End:            r.end,
		RebalanceDates: r.rebalance,
		Returns:        returns,
		NetValue:       netValue,
		Indicators:     e.analyzer.Evaluate(netValue),
		Degenerate:     degenerate,
	}
	if r.cfg.IC {
		summary, err := e.informationCoefficient(ctx, r, panel)
		if err != nil {
			return nil, err
		}
		result.IC = &summary
	}
	r.timed(contracts.StageAudit, t, len(result.Indicators))

	result.Timings = r.timings
	result.Duration = time.Since(began)

	r.log.WithFields(map[string]interface{}{
		"duration_ms": result.Duration.Milliseconds(),
		"rows":        returns.Rows(),
		"degenerate":  len(degenerate),
	}).Info("Group backtest completed")

	return result, nil
}

// RunIC computes only the IC series of cfg.Factor
func (e *GroupEngine) RunIC(ctx context.Context, cfg Config, obs []contracts.FactorObservation) (*audit.ICSummary, error) {
	r, err := e.prepare(cfg, obs)
	if err != nil {
		return nil, err
	}
	resolver, err := e.resolveUniverses(ctx, r)
	if err != nil {
		return nil, err
	}
	panel, err := grouping.BuildPanel(r.sparse, r.dates, resolver)
	if err != nil {
		return nil, fmt.Errorf("build panel: %w", err)
	}
	summary, err := e.informationCoefficient(ctx, r, panel)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// LoadIC loads cfg.Factor from the factor source and runs RunIC
func (e *GroupEngine) LoadIC(ctx context.Context, cfg Config) (*audit.ICSummary, error) {
	obs, err := e.loadFactor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return e.RunIC(ctx, cfg, obs)
}

// prepare validates cfg and resolves the run window
func (e *GroupEngine) prepare(cfg Config, obs []contracts.FactorObservation) (*runState, error) {
	if e.deps.Calendar == nil {
		return nil, fmt.Errorf("group backtest: no calendar configured")
	}
	if cfg.Groups < 1 {
		return nil, fmt.Errorf("group count must be >= 1, got %d", cfg.Groups)
	}
	if cfg.Freq == "" {
		cfg.Freq = DefaultFreq
	}
	if cfg.Basket == "" {
		cfg.Basket = contracts.BasketAShare
	}
	if cfg.RunID == "" {
		cfg.RunID = GenerateRunID()
	}
	step, err := calendar.ParseStep(cfg.Freq)
	if err != nil {
		return nil, err
	}

	sparse := grouping.SparseFromObservations(obs)
	all := sparse.RebalanceDates()
	if len(all) == 0 {
		return nil, &contracts.MissingDataError{Source: "factor", Field: cfg.Factor}
	}

	r := &runState{
		cfg:   cfg,
		step:  step,
		start: contracts.DateOf(cfg.Start),
		end:   contracts.DateOf(cfg.End),
		log:   e.logger.WithRun(cfg.RunID),
	}
	if cfg.Start.IsZero() {
		r.start = all[0]
	}
	for _, d := range all {
		if d.Before(r.start) || (!cfg.End.IsZero() && d.After(r.end)) {
			continue
		}
		if !e.deps.Calendar.IsTradingDay(d) {
			return nil, &contracts.TimingViolationError{
				Stage:  contracts.StagePanel,
				Date:   d,
				Reason: "rebalance date is not a trading day",
			}
		}
		r.rebalance = append(r.rebalance, d)
	}
	if len(r.rebalance) == 0 {
		return nil, &contracts.MissingDataError{Source: "factor", Date: r.start, Field: cfg.Factor}
	}

	r.horizon, err = e.deps.Calendar.Shift(r.rebalance[len(r.rebalance)-1], step, calendar.Post)
	if err != nil {
		return nil, fmt.Errorf("shift last rebalance date: %w", err)
	}
	if cfg.End.IsZero() {
		r.end = r.horizon
	}
	if r.end.Before(r.start) {
		return nil, &contracts.TimingViolationError{
			Stage:  contracts.StageData,
			Date:   r.end,
			Reason: "end precedes start",
		}
	}

	r.sparse = make(grouping.SparseFactor, len(sparse))
	keep := make(map[time.Time]struct{}, len(r.rebalance))
	for _, d := range r.rebalance {
		keep[d] = struct{}{}
	}
	for code, byDate := range sparse {
		for d, v := range byDate {
			if _, ok := keep[d]; !ok {
				continue
			}
			if r.sparse[code] == nil {
				r.sparse[code] = make(map[time.Time]float64)
			}
			r.sparse[code][d] = v
		}
	}

	r.dates, err = e.deps.Calendar.TradingDates(r.start, r.end, contracts.PeriodDay)
	if err != nil {
		return nil, fmt.Errorf("trading dates: %w", err)
	}
	return r, nil
}

// resolveUniverses prefetches membership of every rebalance date.
// The full market without filters needs no resolution.
func (e *GroupEngine) resolveUniverses(ctx context.Context, r *runState) (grouping.UniverseResolver, error) {
	if r.cfg.Basket == contracts.BasketAShare && len(r.cfg.Filters) == 0 {
		return nil, nil
	}
	if e.deps.Universe == nil {
		return nil, fmt.Errorf("basket %s requires a universe provider", r.cfg.Basket)
	}

	universes := make([]*contracts.Universe, len(r.rebalance))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.deps.Workers)
	for i, d := range r.rebalance {
		i, d := i, d
		g.Go(func() error {
			u, err := e.deps.Universe.Members(gctx, d, r.cfg.Basket, r.cfg.Filters...)
			if err != nil {
				return fmt.Errorf("universe on %s: %w", d.Format("2006-01-02"), err)
			}
			universes[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDate := make(map[time.Time][]string, len(universes))
	for _, u := range universes {
		byDate[u.Date] = u.Members
	}
	return func(d time.Time) []string { return byDate[d] }, nil
}

// informationCoefficient correlates each rebalance cross-section with the
// return up to the next rebalance date (the last one up to the horizon).
func (e *GroupEngine) informationCoefficient(ctx context.Context, r *runState, panel *grouping.Panel) (audit.ICSummary, error) {
	mode := r.cfg.ReturnMode
	if mode == "" {
		mode = s0_data.ReturnModeCustom
	}
	source, err := s0_data.NewForwardReturnSource(mode, e.deps.Prices, e.deps.Fundamentals, r.step.Period)
	if err != nil {
		return audit.ICSummary{}, err
	}

	position := make(map[time.Time]int, len(r.dates))
	for i, d := range r.dates {
		position[d] = i
	}

	points := make([]audit.ICPoint, 0, len(r.rebalance))
	for k, d := range r.rebalance {
		to := r.horizon
		if k+1 < len(r.rebalance) {
			to = r.rebalance[k+1]
		}

		factor := panel.CrossSection(position[d])
		codes := make([]string, 0, len(factor))
		for code := range factor {
			codes = append(codes, code)
		}
		forward, err := source.Forward(ctx, d, to, codes)
		if err != nil {
			return audit.ICSummary{}, fmt.Errorf("forward returns %s: %w", d.Format("2006-01-02"), err)
		}
		points = append(points, audit.ICAt(d, factor, forward, r.cfg.RankIC))
	}

	summary := audit.SummarizeIC(points)
	r.log.WithStage(contracts.StageAudit).WithFields(map[string]interface{}{
		"points":  len(points),
		"ic_mean": summary.Mean,
		"icir":    summary.IR,
		"rank":    r.cfg.RankIC,
	}).Info("IC computed")
	return summary, nil
}
