package backtest

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/grouping"
)

// Report sheet names
const (
	SheetReturns    = "returns"
	SheetNetValue   = "net_value"
	SheetIndicators = "indicators"
	SheetIC         = "ic"
)

// WriteReport renders a group backtest result as an xlsx workbook
func WriteReport(w io.Writer, result *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetReturns); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeMatrix(f, SheetReturns, result.Returns); err != nil {
		return err
	}
	if err := addSheet(f, SheetNetValue); err != nil {
		return err
	}
	if err := writeMatrix(f, SheetNetValue, result.NetValue); err != nil {
		return err
	}
	if err := addSheet(f, SheetIndicators); err != nil {
		return err
	}
	if err := writeIndicators(f, SheetIndicators, result.Indicators); err != nil {
		return err
	}
	if result.IC != nil {
		if err := addSheet(f, SheetIC); err != nil {
			return err
		}
		if err := writeIC(f, SheetIC, result.IC); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveReport writes the workbook to <dir>/<run id>.xlsx and returns the path
func SaveReport(dir string, result *Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, result.RunID+".xlsx")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer file.Close()

	if err := WriteReport(file, result); err != nil {
		return "", err
	}
	return path, nil
}

func addSheet(f *excelize.File, name string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cellValue leaves NaN cells blank
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func writeMatrix(f *excelize.File, sheet string, m *grouping.Matrix) error {
	header := []interface{}{"date"}
	for _, c := range m.Columns() {
		header = append(header, c)
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}

	for r, d := range m.Dates() {
		row := []interface{}{d.Format("2006-01-02")}
		for _, v := range m.Row(r) {
			row = append(row, cellValue(v))
		}
		if err := writeRow(f, sheet, r+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeIndicators(f *excelize.File, sheet string, rows []audit.IndicatorRow) error {
	if err := writeRow(f, sheet, 1, []interface{}{"name", "annualized_return", "max_drawdown", "sharpe_ratio"}); err != nil {
		return err
	}
	for i, r := range rows {
		row := []interface{}{r.Name, cellValue(r.AnnualizedReturn), cellValue(r.MaxDrawdown), cellValue(r.SharpeRatio)}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeIC(f *excelize.File, sheet string, s *audit.ICSummary) error {
	if err := writeRow(f, sheet, 1, []interface{}{"date", "ic", "correlation", "p_value", "n"}); err != nil {
		return err
	}
	for i, p := range s.Series {
		row := []interface{}{p.Date.Format("2006-01-02"), cellValue(p.IC), cellValue(p.Correlation), cellValue(p.PValue), p.N}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	footer := len(s.Series) + 3
	if err := writeRow(f, sheet, footer, []interface{}{"ic_mean", cellValue(s.Mean)}); err != nil {
		return err
	}
	return writeRow(f, sheet, footer+1, []interface{}{"icir", cellValue(s.IR)})
}
