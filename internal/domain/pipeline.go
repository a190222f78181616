package domain

import "time"

// Stage names one step of the pipeline
type Stage string

const (
	StageExtract  Stage = "extract"
	StageClean    Stage = "clean"
	StageEngineer Stage = "engineer"
	StageLoad     Stage = "load"
)

// Stages lists the pipeline steps in execution order
var Stages = []Stage{StageExtract, StageClean, StageEngineer, StageLoad}

// StopReason explains why extraction ended
type StopReason string

const (
	StopTargetReached StopReason = "target_reached"
	StopEmptyPage     StopReason = "empty_page"
	StopPageError     StopReason = "page_error"
	StopCancelled     StopReason = "cancelled"
)

// ExtractReport summarizes one extraction
type ExtractReport struct {
	TargetCount int        `json:"targetCount"`
	Pages       int        `json:"pages"`
	Records     int        `json:"records"`
	StopReason  StopReason `json:"stopReason"`
	LastError   string     `json:"lastError,omitempty"`
}

// FeatureReport summarizes the derived field distribution of an engineered dataset
type FeatureReport struct {
	Records         int               `json:"records"`
	CalorieCategory map[Category]int  `json:"calorieCategory"`
	SugarCategory   map[Category]int  `json:"sugarCategory"`
	HealthRisk      map[RiskLevel]int `json:"healthRisk"`
	BrandSize       map[BrandSize]int `json:"brandSize"`
	UltraProcessed  int               `json:"ultraProcessed"`
	UndefinedRatio  int               `json:"undefinedRatio"`
	// Unmeasured records lack energy or sugars and were categorized as Low
	Unmeasured      int               `json:"unmeasured"`
}

// StepResult records the outcome of a single pipeline step
type StepResult struct {
	Stage    Stage         `json:"stage"`
	Skipped  bool          `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunReport is the execution report written after every pipeline run
type RunReport struct {
	RunID          string          `json:"runId"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     time.Time       `json:"finishedAt"`
	Steps          []StepResult    `json:"steps"`
	StepsCompleted []Stage         `json:"stepsCompleted"`
	Errors         []string        `json:"errors"`
	SuccessRate    float64         `json:"successRate"`
	Extract        *ExtractReport  `json:"extract,omitempty"`
	Cleaning       *CleaningReport `json:"cleaning,omitempty"`
	Features       *FeatureReport  `json:"features,omitempty"`
	Load           *LoadResult     `json:"load,omitempty"`
}

// Succeeded reports whether every step completed
func (r RunReport) Succeeded() bool {
	return len(r.Errors) == 0 && len(r.StepsCompleted) == len(Stages)
}
