package jobs

import (
	"context"
	"fmt"
	"os"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/backtest"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/runconfig"
	"github.com/wonny/factorlab/internal/s0_data"
	"github.com/wonny/factorlab/internal/scheduler"
	"github.com/wonny/factorlab/pkg/logger"
)

// GroupRunner runs grouping backtests (backtest.GroupEngine)
type GroupRunner interface {
	Run(ctx context.Context, cfg backtest.Config) (*backtest.Result, error)
	RunObservations(ctx context.Context, cfg backtest.Config, obs []contracts.FactorObservation) (*backtest.Result, error)
}

// RunStore persists run summaries (audit.Repository)
type RunStore interface {
	SaveRun(ctx context.Context, rec audit.RunRecord) error
}

// BacktestJob runs one job-file entry
// ⭐ SSOT: 백테스트 스케줄은 이 Job에서만
type BacktestJob struct {
	run       runconfig.Run
	engine    GroupRunner
	store     RunStore
	reportDir string
	logger    *logger.Logger
}

// NewBacktestJob creates a job. reportDir is used when the run sets no output dir.
// store may be nil, in which case the run is not recorded.
func NewBacktestJob(run runconfig.Run, engine GroupRunner, store RunStore, reportDir string, log *logger.Logger) *BacktestJob {
	return &BacktestJob{
		run:       run,
		engine:    engine,
		store:     store,
		reportDir: reportDir,
		logger:    log,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return j.run.Name
}

// Schedule returns the cron schedule of the run
func (j *BacktestJob) Schedule() string {
	return j.run.Schedule
}

// Run executes the backtest
func (j *BacktestJob) Run(ctx context.Context) error {
	_, _, err := j.Execute(ctx)
	return err
}

// Execute runs the backtest and writes the report when requested.
// The report path is empty when no report was written.
func (j *BacktestJob) Execute(ctx context.Context) (*backtest.Result, string, error) {
	cfg, err := j.run.BacktestConfig()
	if err != nil {
		return nil, "", fmt.Errorf("run %s: %w", j.run.Name, err)
	}

	var result *backtest.Result
	if j.run.FactorCSV != "" {
		obs, err := loadFactorCSV(j.run.FactorCSV)
		if err != nil {
			return nil, "", err
		}
		result, err = j.engine.RunObservations(ctx, cfg, obs)
		if err != nil {
			return nil, "", fmt.Errorf("run %s: %w", j.run.Name, err)
		}
	} else {
		result, err = j.engine.Run(ctx, cfg)
		if err != nil {
			return nil, "", fmt.Errorf("run %s: %w", j.run.Name, err)
		}
	}

	if j.store != nil {
		rec, err := result.Record()
		if err != nil {
			return nil, "", fmt.Errorf("run %s record: %w", j.run.Name, err)
		}
		if err := j.store.SaveRun(ctx, rec); err != nil {
			return nil, "", err
		}
	}

	var path string
	if j.run.WantsReport() {
		dir := j.run.Output.Dir
		if dir == "" {
			dir = j.reportDir
		}
		path, err = backtest.SaveReport(dir, result)
		if err != nil {
			return nil, "", fmt.Errorf("run %s report: %w", j.run.Name, err)
		}
	}

	j.logger.WithRun(result.RunID).WithFields(map[string]interface{}{
		"job":    j.run.Name,
		"report": path,
	}).Info("Backtest job finished")

	return result, path, nil
}

func loadFactorCSV(path string) ([]contracts.FactorObservation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open factor csv: %w", err)
	}
	defer file.Close()
	return s0_data.LoadFactorCSV(file)
}

// Registrar accepts jobs (scheduler.Scheduler)
type Registrar interface {
	AddJob(job scheduler.Job) error
}

// Register adds every scheduled run of f to s. Runs without a schedule are skipped.
func Register(s Registrar, f *runconfig.File, engine GroupRunner, store RunStore, reportDir string, log *logger.Logger) (int, error) {
	added := 0
	for _, run := range f.Runs {
		if run.Schedule == "" {
			continue
		}
		if err := s.AddJob(NewBacktestJob(run, engine, store, reportDir, log)); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
