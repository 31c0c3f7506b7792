package runconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/factorlab/internal/backtest"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/s0_data"
)

// Load reads a YAML job file, applies defaults and validates it.
// The raw bytes are returned for auditing.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*File, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return f, data, nil
}

// Parse decodes, merges defaults into every run and validates
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode job file: %w", err)
	}

	for i := range f.Runs {
		f.Runs[i] = f.Runs[i].withDefaults(f.Defaults)
	}

	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// withDefaults fills every unset field of r from d
func (r Run) withDefaults(d Run) Run {
	if r.Factor == "" {
		r.Factor = d.Factor
	}
	if r.FactorCSV == "" {
		r.FactorCSV = d.FactorCSV
	}
	if r.Window.Start == "" {
		r.Window.Start = d.Window.Start
	}
	if r.Window.End == "" {
		r.Window.End = d.Window.End
	}
	if r.Freq == "" {
		r.Freq = d.Freq
	}
	if r.Basket == "" {
		r.Basket = d.Basket
	}
	if r.Filters == nil {
		r.Filters = d.Filters
	}
	if r.Groups == 0 {
		r.Groups = d.Groups
	}
	if r.LongShort == nil {
		r.LongShort = d.LongShort
	}
	if r.IC == nil {
		r.IC = d.IC
	}
	if r.RankIC == nil {
		r.RankIC = d.RankIC
	}
	if r.ReturnMode == "" {
		r.ReturnMode = d.ReturnMode
	}
	if r.Schedule == "" {
		r.Schedule = d.Schedule
	}
	if r.Output.Report == nil {
		r.Output.Report = d.Output.Report
	}
	if r.Output.Dir == "" {
		r.Output.Dir = d.Output.Dir
	}
	return r
}

// Hash generates SHA256 hash from a run (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(r Run) (string, error) {
	jsonBytes, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// RunID is "<name>_<first 12 hash chars>", stable for an unchanged run
func RunID(r Run) (string, error) {
	hash, err := Hash(r)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", r.Name, hash[:12]), nil
}

// BacktestConfig converts a validated run into an engine config
func (r Run) BacktestConfig() (backtest.Config, error) {
	runID, err := RunID(r)
	if err != nil {
		return backtest.Config{}, err
	}
	basket, err := contracts.ParseBasket(r.Basket)
	if err != nil {
		return backtest.Config{}, err
	}
	mode, err := s0_data.ParseReturnMode(r.ReturnMode)
	if err != nil {
		return backtest.Config{}, err
	}

	cfg := backtest.Config{
		RunID:      runID,
		Factor:     r.Factor,
		Freq:       r.Freq,
		Basket:     basket,
		Groups:     r.Groups,
		LongShort:  flag(r.LongShort),
		IC:         flag(r.IC),
		RankIC:     flag(r.RankIC),
		ReturnMode: mode,
	}
	for _, name := range r.Filters {
		f, err := contracts.ParseFilter(name)
		if err != nil {
			return backtest.Config{}, err
		}
		cfg.Filters = append(cfg.Filters, f)
	}
	if cfg.Start, err = parseDate(r.Window.Start); err != nil {
		return backtest.Config{}, err
	}
	if cfg.End, err = parseDate(r.Window.End); err != nil {
		return backtest.Config{}, err
	}
	return cfg, nil
}

// WantsReport reports whether an xlsx report should be written
func (r Run) WantsReport() bool {
	return flag(r.Output.Report)
}

func flag(b *bool) bool {
	return b != nil && *b
}

// parseDate accepts "" (zero time) or YYYY-MM-DD
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
