package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/backtest"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/runconfig"
	"github.com/wonny/factorlab/internal/s0_data"
	"github.com/wonny/factorlab/internal/scheduler/jobs"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 프레임워크",
	Long: `팩터 분위 백테스트와 포트폴리오 백테스트를 실행합니다.

백테스트는 다음을 계산합니다:
- 분위별 일간 수익률 / 순자산가치
- 연환산 수익률, MDD, Sharpe
- IC / Rank IC (선택)

Example:
  go run ./cmd/quant backtest group --factor size --basket hs300 --groups 5
  go run ./cmd/quant backtest group --run size_hs300
  go run ./cmd/quant backtest portfolio --weights-csv weights.csv --freq m`,
}

var (
	backtestGroupCmd = &cobra.Command{
		Use:   "group",
		Short: "단일 팩터 분위 백테스트",
		Long: `팩터를 리밸런싱일마다 G개 그룹으로 나누어 그룹별 성과를 계산합니다.

Flags:
  --factor       팩터 이름 (DB)
  --factor-csv   팩터 CSV (code,<date>,... 형식, DB 대신 사용)
  --run          job 파일(--jobs)의 run 이름 (다른 플래그 무시)
  --start/--end  기간 (YYYY-MM-DD, 기본: 팩터 첫 리밸런싱일 ~ 마지막 + freq)
  --freq         리밸런싱 주기 (d, w, m, q, 2w, 5 ...)
  --basket       a_share, sz50, hs300, zz500, zz800, zz1000
  --filter       st, suspended, new_listing (반복 가능)

Example:
  go run ./cmd/quant backtest group --factor size --basket hs300 --filter st --filter suspended
  go run ./cmd/quant backtest group --factor-csv size.csv --long-short --ic --report`,
		RunE: runGroupBacktest,
	}

	backtestPortfolioCmd = &cobra.Command{
		Use:   "portfolio",
		Short: "비중 기반 포트폴리오 백테스트",
		Long: `리밸런싱일별 종목 비중(date,code,weight CSV)으로 포트폴리오 수익률을 계산합니다.

Example:
  go run ./cmd/quant backtest portfolio --weights-csv weights.csv --freq m --strategy top_decile`,
		RunE: runPortfolioBacktest,
	}

	// Flags
	groupFlags      backtestFlags
	backtestRunName string
	backtestReport  bool
	backtestOutDir  string
	backtestSave    bool

	portfolioWeights  string
	portfolioFreq     string
	portfolioStrategy string
)

// backtestFlags are shared by `backtest group` and `ic`
type backtestFlags struct {
	factor     string
	factorCSV  string
	start      string
	end        string
	freq       string
	basket     string
	filters    []string
	groups     int
	longShort  bool
	ic         bool
	rankIC     bool
	returnMode string
}

func (f *backtestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.factor, "factor", "", "팩터 이름")
	cmd.Flags().StringVar(&f.factorCSV, "factor-csv", "", "팩터 CSV 경로")
	cmd.Flags().StringVar(&f.start, "start", "", "시작 날짜 (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "종료 날짜 (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.freq, "freq", backtest.DefaultFreq, "리밸런싱 주기")
	cmd.Flags().StringVar(&f.basket, "basket", "", "유니버스 바스켓 (기본: BACKTEST_BASKET)")
	cmd.Flags().StringSliceVar(&f.filters, "filter", nil, "유니버스 필터")
	cmd.Flags().IntVar(&f.groups, "groups", 0, "그룹 수 (기본: BACKTEST_GROUPS)")
	cmd.Flags().BoolVar(&f.longShort, "long-short", false, "long-short 컬럼 추가")
	cmd.Flags().BoolVar(&f.ic, "ic", false, "IC 계산")
	cmd.Flags().BoolVar(&f.rankIC, "rank-ic", false, "Spearman Rank IC 사용")
	cmd.Flags().StringVar(&f.returnMode, "return-mode", "custom", "IC 선행 수익률 (custom | standard)")
}

// toRun expresses the flags as a job-file run so both paths share validation
func (f *backtestFlags) toRun(a *app) runconfig.Run {
	run := runconfig.Run{
		Factor:     f.factor,
		FactorCSV:  f.factorCSV,
		Window:     runconfig.Window{Start: f.start, End: f.end},
		Freq:       f.freq,
		Basket:     f.basket,
		Filters:    f.filters,
		Groups:     f.groups,
		LongShort:  &f.longShort,
		IC:         &f.ic,
		RankIC:     &f.rankIC,
		ReturnMode: f.returnMode,
	}
	if run.Factor == "" && run.FactorCSV != "" {
		run.Factor = "csv"
	}
	run.Name = run.Factor
	if run.Basket == "" {
		run.Basket = a.cfg.Backtest.Basket
	}
	if run.Groups == 0 {
		run.Groups = a.cfg.Backtest.Groups
	}
	return run
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestGroupCmd)
	backtestCmd.AddCommand(backtestPortfolioCmd)

	groupFlags.register(backtestGroupCmd)
	backtestGroupCmd.Flags().StringVar(&backtestRunName, "run", "", "job 파일의 run 이름")
	backtestGroupCmd.Flags().BoolVar(&backtestReport, "report", false, "xlsx 리포트 저장")
	backtestGroupCmd.Flags().StringVar(&backtestOutDir, "out", "", "리포트 경로 (기본: BACKTEST_REPORT_DIR)")
	backtestGroupCmd.Flags().BoolVar(&backtestSave, "save", false, "실행 결과를 audit.backtest_runs에 기록")

	backtestPortfolioCmd.Flags().StringVar(&portfolioWeights, "weights-csv", "", "비중 CSV (date,code,weight)")
	backtestPortfolioCmd.Flags().StringVar(&portfolioFreq, "freq", backtest.DefaultFreq, "리밸런싱 주기")
	backtestPortfolioCmd.Flags().StringVar(&portfolioStrategy, "strategy", "portfolio", "전략 이름")
	backtestPortfolioCmd.MarkFlagRequired("weights-csv")
}

// selectRun returns the run to execute: a named job-file entry or the flags
func selectRun(a *app, flags *backtestFlags, name string) (runconfig.Run, error) {
	if name != "" {
		file, _, err := runconfig.Load(jobsFile)
		if err != nil {
			return runconfig.Run{}, fmt.Errorf("load job file: %w", err)
		}
		for _, run := range file.Runs {
			if run.Name == name {
				return run, nil
			}
		}
		return runconfig.Run{}, fmt.Errorf("run %q not found in %s", name, jobsFile)
	}

	run := flags.toRun(a)
	if err := runconfig.Validate(&runconfig.File{Runs: []runconfig.Run{run}}); err != nil {
		return runconfig.Run{}, err
	}
	return run, nil
}

func runGroupBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := selectRun(a, &groupFlags, backtestRunName)
	if err != nil {
		return err
	}
	if backtestRunName == "" {
		run.Output = runconfig.Output{Report: &backtestReport, Dir: backtestOutDir}
	}

	fmt.Println("🚀 Starting group backtest...")
	var store jobs.RunStore
	if backtestSave {
		store = a.runs
	}
	job := jobs.NewBacktestJob(run, a.engine, store, a.cfg.Backtest.ReportDir, a.log)
	result, path, err := job.Execute(ctx)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printGroupResult(result)
	if path != "" {
		PrintSuccess("Report saved: " + path)
	}
	if backtestSave {
		PrintSuccess("Run recorded: " + result.RunID)
	}
	return nil
}

func printGroupResult(result *backtest.Result) {
	PrintRunHeader("Group Backtest: "+result.Config.Factor, result.RunID, result.Start, result.End)
	PrintKeyValue("Basket", string(result.Config.Basket), 10)
	PrintKeyValue("Groups", fmt.Sprintf("%d", result.Config.Groups), 10)
	PrintKeyValue("Freq", result.Config.Freq, 10)
	PrintKeyValue("Rebalances", fmt.Sprintf("%d", len(result.RebalanceDates)), 10)
	PrintKeyValue("Days", fmt.Sprintf("%d", result.Returns.Rows()), 10)
	PrintKeyValue("Duration", result.Duration.Round(time.Millisecond).String(), 10)

	PrintIndicators(result.Indicators)
	if result.IC != nil {
		PrintIC(result.IC, result.Config.RankIC)
	}
	PrintDegenerate(result.Degenerate)
	if verbose {
		PrintTimings(result.Timings)
	}
	fmt.Println()
}

func runPortfolioBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	file, err := os.Open(portfolioWeights)
	if err != nil {
		return fmt.Errorf("open weights csv: %w", err)
	}
	weights, err := backtest.LoadWeightsCSV(file)
	file.Close()
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := backtest.NewPortfolioEngine(a.prices, a.cal, a.log)
	result, err := engine.Run(ctx, backtest.PortfolioConfig{
		Strategy: portfolioStrategy,
		Freq:     portfolioFreq,
		Weights:  weights,
	})
	if err != nil {
		return fmt.Errorf("portfolio backtest failed: %w", err)
	}

	PrintRunHeader("Portfolio Backtest: "+result.Strategy, result.RunID, result.Start, result.End)
	PrintKeyValue("Rebalances", fmt.Sprintf("%d", len(weights)), 10)
	PrintKeyValue("Days", fmt.Sprintf("%d", result.Returns.Rows()), 10)
	PrintIndicators(result.Indicators)
	fmt.Println()
	return nil
}

// loadObservations reads a factor CSV when given
func loadObservations(path string) ([]contracts.FactorObservation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open factor csv: %w", err)
	}
	defer file.Close()
	return s0_data.LoadFactorCSV(file)
}
