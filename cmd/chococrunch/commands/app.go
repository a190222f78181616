package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chococrunch/pipeline/config"
	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/internal/infrastructure/openfoodfacts"
	"github.com/chococrunch/pipeline/internal/infrastructure/snapshot"
	"github.com/chococrunch/pipeline/internal/infrastructure/store"
	"github.com/chococrunch/pipeline/internal/usecase"
	"github.com/chococrunch/pipeline/pkg/logger"
)

// app holds the dependencies shared by all commands
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	snapshots *snapshot.Store
	loader    *lazyLoader
	pipeline  *usecase.Pipeline
}

// newApp loads configuration and wires the pipeline
func newApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if targetCount > 0 {
		cfg.Catalog.TargetCount = targetCount
	}
	if skipExisting {
		cfg.Pipeline.SkipExisting = true
	}

	log := logger.New(cfg)

	client := openfoodfacts.NewClient(openfoodfacts.Config{
		BaseURL:      cfg.Catalog.BaseURL,
		SearchTerm:   cfg.Catalog.SearchTerm,
		PageSize:     cfg.Catalog.PageSize,
		Timeout:      cfg.Catalog.Timeout,
		RequestDelay: cfg.Catalog.RequestDelay,
		UserAgent:    cfg.Catalog.UserAgent,
	}, log)

	cleanerConfig := usecase.CleanerConfig{
		MinCompleteness:  cfg.Cleaning.MinCompleteness,
		IQRMultiplier:    cfg.Cleaning.IQRMultiplier,
		DropUnidentified: cfg.Cleaning.DropUnidentified,
	}
	for _, name := range cfg.Cleaning.OutlierColumns {
		col, ok := domain.ParseNutrientColumn(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown outlier column %q", domain.ErrInvalidConfig, name)
		}
		cleanerConfig.OutlierColumns = append(cleanerConfig.OutlierColumns, col)
	}
	cleaner, err := usecase.NewCleaner(cleanerConfig, log)
	if err != nil {
		return nil, err
	}

	engineer, err := usecase.NewFeatureEngineer(usecase.FeatureConfig{
		CalorieLow:      cfg.Features.CalorieLow,
		CalorieHigh:     cfg.Features.CalorieHigh,
		SugarLow:        cfg.Features.SugarLow,
		SugarHigh:       cfg.Features.SugarHigh,
		BrandMajorOver:  cfg.Features.BrandMajorOver,
		BrandMediumOver: cfg.Features.BrandMediumOver,
		BrandNormalize:  cfg.Features.BrandNormalize,
	})
	if err != nil {
		return nil, err
	}

	snapshots := snapshot.NewStore(cfg.Storage.DataDir)
	loader := &lazyLoader{
		cfg: store.Config{
			Driver:  cfg.Storage.Driver,
			DSN:     cfg.Storage.DSN,
			DataDir: cfg.Storage.DataDir,
		},
		log: log,
	}

	pipeline := usecase.NewPipeline(
		usecase.PipelineConfig{
			TargetCount:  cfg.Catalog.TargetCount,
			SkipExisting: cfg.Pipeline.SkipExisting,
		},
		snapshots,
		usecase.NewExtractor(client, log),
		cleaner,
		engineer,
		loader,
		log,
	)

	return &app{
		cfg:       cfg,
		log:       log,
		snapshots: snapshots,
		loader:    loader,
		pipeline:  pipeline,
	}, nil
}

// Close releases the database connection if one was opened
func (a *app) Close() error {
	return a.loader.Close()
}

// lazyLoader opens the relational store on first use, so stages that never
// load do not need a reachable database
type lazyLoader struct {
	cfg store.Config
	log *logger.Logger

	mu    sync.Mutex
	store *store.Store
}

func (l *lazyLoader) Load(ctx context.Context, ds domain.EngineeredDataset) (domain.LoadResult, error) {
	l.mu.Lock()
	if l.store == nil {
		s, err := store.Open(ctx, l.cfg, l.log)
		if err != nil {
			l.mu.Unlock()
			return domain.LoadResult{}, err
		}
		l.store = s
	}
	s := l.store
	l.mu.Unlock()

	return s.Load(ctx, ds)
}

func (l *lazyLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}

// printReport writes a short run summary, or the full report as JSON
func printReport(w io.Writer, report domain.RunReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "run %s: %d/%d stages, success rate %.0f%%\n",
		report.RunID, len(report.StepsCompleted), len(report.Steps), report.SuccessRate*100)
	for _, step := range report.Steps {
		status := "ok"
		switch {
		case step.Error != "":
			status = "FAILED: " + step.Error
		case step.Skipped:
			status = "skipped"
		}
		fmt.Fprintf(w, "  %-9s %-10s %s\n", step.Stage, step.Duration.Round(time.Millisecond), status)
	}
	if report.Extract != nil {
		fmt.Fprintf(w, "  extracted %d records in %d pages (%s)\n",
			report.Extract.Records, report.Extract.Pages, report.Extract.StopReason)
	}
	if report.Cleaning != nil {
		fmt.Fprintf(w, "  cleaned %d -> %d records, %d values imputed\n",
			report.Cleaning.InputRecords, report.Cleaning.OutputRecords, report.Cleaning.TotalImputed())
	}
	if report.Features != nil {
		fmt.Fprintf(w, "  engineered %d records, %d high risk, %d ultra-processed\n",
			report.Features.Records, report.Features.HealthRisk[domain.RiskHigh], report.Features.UltraProcessed)
	}
	if report.Load != nil {
		fmt.Fprintf(w, "  loaded %d products\n", report.Load.Products)
	}
	return nil
}
