package commands

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintRunHeader prints a formatted run header
func PrintRunHeader(title, runID string, start, end time.Time) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	fmt.Printf("  Run ID    : %s\n", runID)
	if !start.IsZero() {
		fmt.Printf("  Period    : %s ~ %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// formatPct renders a ratio as a signed percentage; NaN as "-"
func formatPct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", v*100)
}

// formatNum renders a float with 4 decimals; NaN as "-"
func formatNum(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

// PrintIndicators prints the indicator table
func PrintIndicators(rows []audit.IndicatorRow) {
	fmt.Println()
	fmt.Println("📊 Indicators")
	widths := []int{12, 14, 12, 10}
	PrintTableHeader([]string{"Column", "Annual Return", "Max DD", "Sharpe"}, widths)
	for _, r := range rows {
		PrintTableRow([]string{r.Name, formatPct(r.AnnualizedReturn), formatPct(r.MaxDrawdown), formatNum(r.SharpeRatio)}, widths)
	}
}

// PrintIC prints the IC series and its summary
func PrintIC(summary *audit.ICSummary, rank bool) {
	title := "📈 IC (Pearson)"
	if rank {
		title = "📈 Rank IC (Spearman)"
	}
	fmt.Println()
	fmt.Println(title)
	widths := []int{10, 8, 8, 8, 5}
	PrintTableHeader([]string{"Date", "IC", "Raw", "p-value", "N"}, widths)
	for _, p := range summary.Series {
		PrintTableRow([]string{
			p.Date.Format("2006-01-02"),
			formatNum(p.IC),
			formatNum(p.Correlation),
			formatNum(p.PValue),
			fmt.Sprintf("%d", p.N),
		}, widths)
	}
	fmt.Println()
	PrintKeyValue("IC mean", formatNum(summary.Mean), 8)
	PrintKeyValue("ICIR", formatNum(summary.IR), 8)
}

// PrintDegenerate lists dates whose cross-section could not fill every bucket
func PrintDegenerate(items []contracts.DegenerateCrossSection) {
	if len(items) == 0 {
		return
	}
	fmt.Println()
	PrintWarning(fmt.Sprintf("%d degenerate cross-section(s)", len(items)))
	for _, d := range items {
		fmt.Printf("   • %s: %d distinct value(s) for %d groups\n", d.Date.Format("2006-01-02"), d.Distinct, d.Groups)
	}
}

// PrintTimings prints per-stage durations
func PrintTimings(timings []contracts.StageTiming) {
	fmt.Println()
	fmt.Println("⏱  Stages")
	for _, t := range timings {
		PrintKeyValue(string(t.Stage), fmt.Sprintf("%dms (%d rows)", t.Duration, t.Rows), 12)
	}
}
