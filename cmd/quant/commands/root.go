package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jobsFile string
	env      string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "factorlab - 단일 팩터 분위 백테스트",
	Long: `factorlab Unified CLI

단일 팩터를 리밸런싱일마다 G개 분위로 나누고
분위별 수익률, 순자산가치, 성과 지표, IC를 계산합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant backtest group --factor size --basket hs300
  go run ./cmd/quant backtest portfolio --weights-csv weights.csv
  go run ./cmd/quant ic --factor size --rank-ic
  go run ./cmd/quant api
  go run ./cmd/quant scheduler start
  go run ./cmd/quant test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&jobsFile, "jobs", "configs/backtests.yaml", "backtest job file (YAML)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug log level)")
}
