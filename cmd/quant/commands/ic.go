package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/audit"
)

// icCmd represents the ic command
var icCmd = &cobra.Command{
	Use:   "ic",
	Short: "팩터 IC 계산",
	Long: `리밸런싱일마다 팩터와 다음 리밸런싱까지의 선행 수익률 간 상관(IC)을 계산합니다.
p-value > 0.05 인 날의 IC는 0으로 처리합니다.

Example:
  go run ./cmd/quant ic --factor size --rank-ic
  go run ./cmd/quant ic --factor-csv size.csv --return-mode standard --freq w`,
	RunE: runIC,
}

var icFlags backtestFlags

func init() {
	rootCmd.AddCommand(icCmd)
	icFlags.register(icCmd)
}

func runIC(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	icFlags.ic = true
	run, err := selectRun(a, &icFlags, "")
	if err != nil {
		return err
	}
	cfg, err := run.BacktestConfig()
	if err != nil {
		return err
	}

	var summary *audit.ICSummary
	if run.FactorCSV != "" {
		obs, err := loadObservations(run.FactorCSV)
		if err != nil {
			return err
		}
		summary, err = a.engine.RunIC(ctx, cfg, obs)
		if err != nil {
			return fmt.Errorf("ic failed: %w", err)
		}
	} else {
		summary, err = a.engine.LoadIC(ctx, cfg)
		if err != nil {
			return fmt.Errorf("ic failed: %w", err)
		}
	}

	PrintRunHeader("IC: "+cfg.Factor, cfg.RunID, cfg.Start, cfg.End)
	PrintIC(summary, cfg.RankIC)
	fmt.Println()
	return nil
}
