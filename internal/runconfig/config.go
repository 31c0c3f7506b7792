package runconfig

// File is a backtest job file: shared defaults plus a list of runs
type File struct {
	Version  string `yaml:"version" json:"version"`
	Defaults Run    `yaml:"defaults" json:"defaults"`
	Runs     []Run  `yaml:"runs" json:"runs"`
}

// Run is one grouping backtest
type Run struct {
	Name       string   `yaml:"name" json:"name"`
	Factor     string   `yaml:"factor" json:"factor"`
	FactorCSV  string   `yaml:"factor_csv,omitempty" json:"factor_csv,omitempty"` // 지정 시 DB 대신 CSV 사용
	Window     Window   `yaml:"window" json:"window"`
	Freq       string   `yaml:"freq" json:"freq"`
	Basket     string   `yaml:"basket" json:"basket"`
	Filters    []string `yaml:"filters" json:"filters"`
	Groups     int      `yaml:"groups" json:"groups"`
	LongShort  *bool    `yaml:"long_short" json:"long_short"`
	IC         *bool    `yaml:"ic" json:"ic"`
	RankIC     *bool    `yaml:"rank_ic" json:"rank_ic"`
	ReturnMode string   `yaml:"return_mode" json:"return_mode"` // custom | standard
	Schedule   string   `yaml:"schedule" json:"schedule"`       // cron (초 포함 6필드)
	Output     Output   `yaml:"output" json:"output"`
}

// Window bounds a run; empty values fall back to the factor's own dates
type Window struct {
	Start string `yaml:"start" json:"start"` // YYYY-MM-DD
	End   string `yaml:"end" json:"end"`     // YYYY-MM-DD
}

// Output controls the artifacts of a run
type Output struct {
	Report *bool  `yaml:"report" json:"report"`
	Dir    string `yaml:"dir" json:"dir"`
}
