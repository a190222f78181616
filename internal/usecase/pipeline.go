package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/pkg/logger"
	"github.com/google/uuid"
)

// PipelineObserver receives stage outcomes, e.g. to export them as metrics
type PipelineObserver interface {
	StageFinished(stage domain.Stage, skipped bool, err error, duration time.Duration)
	Extracted(report domain.ExtractReport)
	Cleaned(report domain.CleaningReport)
	Engineered(report domain.FeatureReport)
	Loaded(result domain.LoadResult)
	RunFinished(report domain.RunReport)
}

type nopObserver struct{}

func (nopObserver) StageFinished(domain.Stage, bool, error, time.Duration) {}
func (nopObserver) Extracted(domain.ExtractReport)                        {}
func (nopObserver) Cleaned(domain.CleaningReport)                         {}
func (nopObserver) Engineered(domain.FeatureReport)                       {}
func (nopObserver) Loaded(domain.LoadResult)                              {}
func (nopObserver) RunFinished(domain.RunReport)                          {}

// PipelineConfig holds runner behaviour
type PipelineConfig struct {
	// TargetCount is the minimum number of records extraction aims for
	TargetCount int
	// SkipExisting skips a stage whose output snapshot is already present
	SkipExisting bool
}

// Pipeline runs extract, clean, engineer and load in sequence. Each stage reads
// its predecessor's snapshot, so stages can also be run one at a time.
type Pipeline struct {
	config    PipelineConfig
	store     domain.SnapshotStore
	extractor *Extractor
	cleaner   *Cleaner
	engineer  *FeatureEngineer
	loader    domain.Loader
	observer  PipelineObserver
	log       *logger.Logger

	mu      sync.Mutex
	running bool
}

// NewPipeline creates a new pipeline runner
func NewPipeline(
	config PipelineConfig,
	store domain.SnapshotStore,
	extractor *Extractor,
	cleaner *Cleaner,
	engineer *FeatureEngineer,
	loader domain.Loader,
	log *logger.Logger,
) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		config:    config,
		store:     store,
		extractor: extractor,
		cleaner:   cleaner,
		engineer:  engineer,
		loader:    loader,
		observer:  nopObserver{},
		log:       log,
	}
}

// SetObserver installs an observer for stage outcomes
func (p *Pipeline) SetObserver(observer PipelineObserver) {
	if observer == nil {
		observer = nopObserver{}
	}
	p.observer = observer
}

// Running reports whether a run is in progress
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Run executes every stage in order
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	return p.RunStages(ctx, domain.Stages...)
}

// RunStages executes the given stages in order, stopping at the first failure.
// The execution report is written whatever the outcome. Only one run may be active;
// a concurrent call returns ErrRunInProgress.
func (p *Pipeline) RunStages(ctx context.Context, stages ...domain.Stage) (domain.RunReport, error) {
	if !p.acquire() {
		return domain.RunReport{}, domain.ErrRunInProgress
	}
	defer p.release()

	return p.run(ctx, stages)
}

// Start reserves the pipeline and runs every stage in the background.
// It returns ErrRunInProgress without starting anything when a run is active.
// done, if not nil, is called once the run has finished and the pipeline is free again.
func (p *Pipeline) Start(ctx context.Context, done func(domain.RunReport, error)) error {
	if !p.acquire() {
		return domain.ErrRunInProgress
	}

	go func() {
		report, err := p.run(ctx, domain.Stages)
		p.release()
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

// run executes stages in order; the caller holds the running flag
func (p *Pipeline) run(ctx context.Context, stages []domain.Stage) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:          uuid.New().String(),
		StartedAt:      time.Now().UTC(),
		Steps:          []domain.StepResult{},
		StepsCompleted: []domain.Stage{},
		Errors:         []string{},
	}
	log := p.log.WithField("run_id", report.RunID)
	log.WithField("stages", stages).Info("pipeline run started")

	var runErr error
	for _, stage := range stages {
		start := time.Now()
		skipped, err := p.runStage(ctx, stage, &report)
		step := domain.StepResult{
			Stage:    stage,
			Skipped:  skipped,
			Duration: time.Since(start),
		}
		p.observer.StageFinished(stage, skipped, err, step.Duration)

		if err != nil {
			step.Error = err.Error()
			report.Steps = append(report.Steps, step)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", stage, err))
			log.WithError(err).WithField("stage", stage).Error("pipeline stage failed")
			runErr = fmt.Errorf("%s stage: %w", stage, err)
			break
		}

		report.Steps = append(report.Steps, step)
		report.StepsCompleted = append(report.StepsCompleted, stage)
		log.WithFields(map[string]interface{}{
			"stage":    stage,
			"skipped":  skipped,
			"duration": step.Duration.String(),
		}).Info("pipeline stage completed")
	}

	report.FinishedAt = time.Now().UTC()
	if len(stages) > 0 {
		report.SuccessRate = float64(len(report.StepsCompleted)) / float64(len(stages))
	}

	if err := p.store.WriteReport(report); err != nil {
		log.WithError(err).Error("failed to write execution report")
		if runErr == nil {
			runErr = fmt.Errorf("write execution report: %w", err)
		}
	}

	p.observer.RunFinished(report)
	log.WithFields(map[string]interface{}{
		"completed":    len(report.StepsCompleted),
		"success_rate": report.SuccessRate,
		"duration":     report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("pipeline run finished")

	return report, runErr
}

func (p *Pipeline) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// runStage executes one stage, recording its report on the run report
func (p *Pipeline) runStage(ctx context.Context, stage domain.Stage, report *domain.RunReport) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if p.config.SkipExisting && p.store.Exists(stage) {
		p.log.WithField("stage", stage).Info("output snapshot exists, skipping stage")
		return true, nil
	}

	switch stage {
	case domain.StageExtract:
		r, err := p.extract(ctx)
		report.Extract = &r
		return false, err
	case domain.StageClean:
		r, err := p.clean()
		if err == nil {
			report.Cleaning = &r
		}
		return false, err
	case domain.StageEngineer:
		r, err := p.engineerFeatures()
		if err == nil {
			report.Features = &r
		}
		return false, err
	case domain.StageLoad:
		r, err := p.load(ctx)
		if err == nil {
			report.Load = &r
		}
		return false, err
	}

	return false, fmt.Errorf("unknown stage %q", stage)
}

// extract fetches the catalog and writes the raw snapshot. A page failure only
// shortens the dataset; cancellation before any record arrived fails the stage.
func (p *Pipeline) extract(ctx context.Context) (domain.ExtractReport, error) {
	ds, report := p.extractor.Extract(ctx, p.config.TargetCount)
	p.observer.Extracted(report)

	if report.StopReason == domain.StopCancelled && ds.Len() == 0 {
		return report, fmt.Errorf("extraction cancelled: %w", context.Cause(ctx))
	}

	if err := p.store.WriteRaw(ds); err != nil {
		return report, fmt.Errorf("write raw snapshot: %w", err)
	}
	return report, nil
}

func (p *Pipeline) clean() (domain.CleaningReport, error) {
	raw, err := p.store.ReadRaw()
	if err != nil {
		return domain.CleaningReport{}, predecessorError(domain.StageExtract, err)
	}

	cleaned := p.cleaner.Clean(raw)
	p.observer.Cleaned(cleaned.Report)

	if err := p.store.WriteCleaned(cleaned); err != nil {
		return cleaned.Report, fmt.Errorf("write cleaned snapshot: %w", err)
	}
	return cleaned.Report, nil
}

func (p *Pipeline) engineerFeatures() (domain.FeatureReport, error) {
	cleaned, err := p.store.ReadCleaned()
	if err != nil {
		return domain.FeatureReport{}, predecessorError(domain.StageClean, err)
	}

	engineered := p.engineer.Engineer(cleaned)
	summary := Summarize(engineered)
	p.observer.Engineered(summary)

	p.log.WithFields(map[string]interface{}{
		"stage":           domain.StageEngineer,
		"records":         summary.Records,
		"high_risk":       summary.HealthRisk[domain.RiskHigh],
		"ultra_processed": summary.UltraProcessed,
		"undefined_ratio": summary.UndefinedRatio,
	}).Info("feature engineering finished")

	if summary.Unmeasured > 0 {
		p.log.WithField("records", summary.Unmeasured).Warn("records without energy or sugars categorized as Low")
	}

	if err := p.store.WriteEngineered(engineered); err != nil {
		return summary, fmt.Errorf("write engineered snapshot: %w", err)
	}
	return summary, nil
}

func (p *Pipeline) load(ctx context.Context) (domain.LoadResult, error) {
	engineered, err := p.store.ReadEngineered()
	if err != nil {
		return domain.LoadResult{}, predecessorError(domain.StageEngineer, err)
	}

	result, err := p.loader.Load(ctx, engineered)
	if err != nil {
		return result, fmt.Errorf("load: %w", err)
	}
	p.observer.Loaded(result)

	p.log.WithFields(map[string]interface{}{
		"stage":           domain.StageLoad,
		"products":        result.Products,
		"nutrients":       result.Nutrients,
		"derived_metrics": result.DerivedMetrics,
	}).Info("load finished")

	return result, nil
}

// predecessorError explains which stage has to run first when its snapshot is missing
func predecessorError(predecessor domain.Stage, err error) error {
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return fmt.Errorf("run the %s stage first: %w", predecessor, err)
	}
	return fmt.Errorf("read %s snapshot: %w", predecessor, err)
}
