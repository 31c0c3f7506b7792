package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/runconfig"
	"github.com/wonny/factorlab/internal/scheduler"
	"github.com/wonny/factorlab/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `job 파일(--jobs)의 schedule이 지정된 run을 cron으로 실행합니다.
실패한 작업은 재시도하지 않습니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 스케줄된 run 목록

Example:
  go run ./cmd/quant scheduler start --jobs configs/backtests.yaml
  go run ./cmd/quant scheduler list`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 job 파일의 모든 스케줄 run을 등록합니다.

--run-now를 지정하면 대기 전에 모든 run을 한 번씩 즉시 실행합니다.
스케줄러는 Ctrl+C로 종료할 수 있으며, 종료 시 실행 통계를 출력합니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "스케줄된 run 목록",
		RunE:  listJobs,
	}
)

var runNow bool

func init() {
	schedulerStartCmd.Flags().BoolVar(&runNow, "run-now", false, "시작 직후 모든 run을 한 번 실행")

	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== factorlab Scheduler ===")
	fmt.Println()

	file, _, err := runconfig.Load(jobsFile)
	if err != nil {
		return fmt.Errorf("load job file: %w", err)
	}

	// Initialize dependencies
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	for _, w := range runconfig.CheckWarnings(file) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}

	sched := scheduler.New(a.log)
	added, err := jobs.Register(sched, file, a.engine, a.runs, a.cfg.Backtest.ReportDir, a.log)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("no run in %s has a schedule", jobsFile)
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %s (next: %s)\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
	if runNow {
		if err := runAllNow(sched); err != nil {
			sched.Stop()
			return err
		}
	}

	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printStats(sched)
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	file, _, err := runconfig.Load(jobsFile)
	if err != nil {
		return fmt.Errorf("load job file: %w", err)
	}

	widths := []int{28, 18, 8, 8}
	PrintTableHeader([]string{"Run", "Schedule", "Basket", "Freq"}, widths)
	for _, run := range file.Runs {
		schedule := run.Schedule
		if schedule == "" {
			schedule = "(manual)"
		} else if _, err := runconfig.ScheduleParser.Parse(schedule); err != nil {
			schedule += " ❌"
		}
		PrintTableRow([]string{run.Name, schedule, run.Basket, run.Freq}, widths)
	}

	return nil
}

// runAllNow runs every registered job once, in name order
func runAllNow(sched *scheduler.Scheduler) error {
	fmt.Println("\nRunning all jobs now:")
	for _, jobName := range sched.GetAllJobs() {
		result, err := sched.RunJob(jobName)
		if err != nil {
			return fmt.Errorf("run %s: %w", jobName, err)
		}
		if result.Success {
			PrintSuccess(fmt.Sprintf("%s (%s)", jobName, result.Duration.Round(time.Millisecond)))
		} else {
			PrintWarning(fmt.Sprintf("%s: %s", jobName, result.Error))
		}
	}
	return nil
}

func printStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range names {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}

		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
			if history, err := sched.GetJobHistory(jobName); err == nil {
				fmt.Printf("   Last Error: %s\n", lastError(history))
			}
		}

		fmt.Println()
	}
}

// lastError returns the error of the most recent failed result
func lastError(history []scheduler.JobResult) string {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Success {
			return history[i].Error
		}
	}
	return ""
}
