package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그와 진단 레코드에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5 → S6
//   Data  Universe  Panel  Bucket  Align  Aggregate  Audit

// Stage represents a backtest pipeline stage
type Stage string

const (
	// StageData S0: 가격/수익률/팩터 로딩
	// 위치: internal/s0_data/
	StageData Stage = "S0_DATA"

	// StageUniverse S1: 바스켓 구성 종목 + 필터
	// 위치: internal/s1_universe/
	StageUniverse Stage = "S1_UNIVERSE"

	// StagePanel S2: 리밸런싱일 팩터 → 일별 패널 (forward fill)
	// 위치: internal/grouping/panel.go
	StagePanel Stage = "S2_PANEL"

	// StageBucket S3: 백분위 순위 → 그룹 번호
	// 위치: internal/grouping/rank.go
	StageBucket Stage = "S3_BUCKET"

	// StageAlign S4: 1기간 시차 적용 후 수익률 결합
	// 위치: internal/grouping/align.go
	StageAlign Stage = "S4_ALIGN"

	// StageAggregate S5: 그룹별 평균 수익률, 순자산가치
	// 위치: internal/grouping/aggregate.go
	StageAggregate Stage = "S5_AGGREGATE"

	// StageAudit S6: 연환산 수익률, MDD, 샤프, IC/ICIR
	// 위치: internal/audit/
	StageAudit Stage = "S6_AUDIT"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageData:
		return "S0"
	case StageUniverse:
		return "S1"
	case StagePanel:
		return "S2"
	case StageBucket:
		return "S3"
	case StageAlign:
		return "S4"
	case StageAggregate:
		return "S5"
	case StageAudit:
		return "S6"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageData,
		StageUniverse,
		StagePanel,
		StageBucket,
		StageAlign,
		StageAggregate,
		StageAudit,
	}
}

// StageTiming records how long a stage took within one run
type StageTiming struct {
	Stage    Stage `json:"stage"`
	Duration int64 `json:"duration_ms"`
	Rows     int   `json:"rows"`
}
