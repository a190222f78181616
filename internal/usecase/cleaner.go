package usecase

import (
	"fmt"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/pkg/logger"
)

// CleanerConfig holds the completeness and outlier thresholds for one cleaning pass
type CleanerConfig struct {
	// MinCompleteness is the fraction of nutrient columns a record must populate to survive
	MinCompleteness float64
	// IQRMultiplier widens the [Q1, Q3] interval on both sides
	IQRMultiplier float64
	// OutlierColumns are screened for outliers; other nutrient columns are not
	OutlierColumns []domain.NutrientColumn
	// DropUnidentified removes records without a product code and repeated codes
	DropUnidentified bool
}

// DefaultCleanerConfig returns the standard thresholds
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		MinCompleteness: 0.70,
		IQRMultiplier:   1.5,
		OutlierColumns: []domain.NutrientColumn{
			domain.ColumnEnergyKcal,
			domain.ColumnSugars,
			domain.ColumnFat,
		},
		DropUnidentified: true,
	}
}

// Cleaner drops unusable records, imputes remaining gaps and strips outliers
type Cleaner struct {
	config CleanerConfig
	log    *logger.Logger
}

// NewCleaner creates a cleaner, rejecting inconsistent thresholds
func NewCleaner(config CleanerConfig, log *logger.Logger) (*Cleaner, error) {
	if config.MinCompleteness <= 0 || config.MinCompleteness > 1 {
		return nil, fmt.Errorf("%w: min completeness %v not in (0, 1]", domain.ErrInvalidConfig, config.MinCompleteness)
	}
	if config.IQRMultiplier < 0 {
		return nil, fmt.Errorf("%w: negative IQR multiplier %v", domain.ErrInvalidConfig, config.IQRMultiplier)
	}
	seen := make(map[domain.NutrientColumn]bool)
	for _, col := range config.OutlierColumns {
		if _, ok := domain.ParseNutrientColumn(string(col)); !ok {
			return nil, fmt.Errorf("%w: unknown outlier column %q", domain.ErrInvalidConfig, col)
		}
		if seen[col] {
			return nil, fmt.Errorf("%w: duplicate outlier column %q", domain.ErrInvalidConfig, col)
		}
		seen[col] = true
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Cleaner{
		config: config,
		log:    log.WithField("stage", string(domain.StageClean)),
	}, nil
}

// Clean runs the identity pass, the completeness filter with median imputation,
// and the IQR outlier filter, in that order. raw is not modified.
func (c *Cleaner) Clean(raw domain.RawDataset) domain.CleanedDataset {
	report := domain.CleaningReport{
		InputRecords: raw.Len(),
		Imputed:      make(map[domain.NutrientColumn]int),
		Medians:      make(map[domain.NutrientColumn]float64),
	}

	records := make([]domain.ProductRecord, len(raw.Records))
	copy(records, raw.Records)

	if c.config.DropUnidentified {
		records = c.dropUnidentified(records, &report)
	}

	records = c.dropIncomplete(records, &report)
	records = c.imputeMedians(records, &report)
	records = c.dropOutliers(records, &report)

	report.OutputRecords = len(records)

	c.log.WithFields(map[string]interface{}{
		"input":        report.InputRecords,
		"unidentified": report.DroppedUnidentified,
		"duplicates":   report.DroppedDuplicates,
		"incomplete":   report.DroppedIncomplete,
		"imputed":      report.TotalImputed(),
		"outliers":     report.DroppedOutliers,
		"output":       report.OutputRecords,
	}).Info("cleaning finished")

	return domain.CleanedDataset{Records: records, Report: report}
}

// dropUnidentified removes records with an empty product code and keeps the first
// occurrence of every repeated code
func (c *Cleaner) dropUnidentified(records []domain.ProductRecord, report *domain.CleaningReport) []domain.ProductRecord {
	seen := make(map[string]bool, len(records))
	kept := records[:0:0]

	for _, r := range records {
		if r.ProductCode == "" {
			report.DroppedUnidentified++
			continue
		}
		if seen[r.ProductCode] {
			report.DroppedDuplicates++
			continue
		}
		seen[r.ProductCode] = true
		kept = append(kept, r)
	}

	return kept
}

// dropIncomplete is phase A's filter: a record survives when it populates at
// least MinCompleteness of the nutrient columns
func (c *Cleaner) dropIncomplete(records []domain.ProductRecord, report *domain.CleaningReport) []domain.ProductRecord {
	required := c.config.MinCompleteness * float64(len(domain.NutrientColumns))
	kept := records[:0:0]

	for _, r := range records {
		if float64(r.Nutrients.Populated()) < required {
			report.DroppedIncomplete++
			continue
		}
		kept = append(kept, r)
	}

	return kept
}

// imputeMedians fills remaining gaps with the column median of the surviving records.
// A column with no values at all is left as is.
func (c *Cleaner) imputeMedians(records []domain.ProductRecord, report *domain.CleaningReport) []domain.ProductRecord {
	for _, col := range domain.NutrientColumns {
		values := columnValues(records, col)
		if len(values) == len(records) {
			continue
		}

		m, ok := median(values)
		if !ok {
			c.log.WithField("column", col).Warn("column has no values, leaving gaps")
			continue
		}
		report.Medians[col] = m

		for i := range records {
			if records[i].Nutrients.Get(col) == nil {
				records[i].Nutrients = records[i].Nutrients.With(col, m)
				report.Imputed[col]++
			}
		}
	}

	return records
}

// dropOutliers is phase B: bounds for every monitored column are computed from the
// same input before anything is removed, so the survivors are the intersection of
// the per-column acceptance sets whatever the column order
func (c *Cleaner) dropOutliers(records []domain.ProductRecord, report *domain.CleaningReport) []domain.ProductRecord {
	var bounds []domain.CleaningBounds
	for _, col := range c.config.OutlierColumns {
		b, ok := iqrBounds(columnValues(records, col), c.config.IQRMultiplier)
		if !ok {
			continue
		}
		b.Column = col
		bounds = append(bounds, b)
	}
	report.Bounds = bounds

	kept := records[:0:0]
	for _, r := range records {
		if withinBounds(r, bounds) {
			kept = append(kept, r)
			continue
		}
		report.DroppedOutliers++
	}

	return kept
}

// iqrBounds computes [Q1 - k*IQR, Q3 + k*IQR] for a sample
func iqrBounds(values []float64, k float64) (domain.CleaningBounds, bool) {
	q1, ok := quantile(values, 0.25)
	if !ok {
		return domain.CleaningBounds{}, false
	}
	q3, _ := quantile(values, 0.75)
	iqr := q3 - q1

	return domain.CleaningBounds{
		Q1:    q1,
		Q3:    q3,
		Lower: q1 - k*iqr,
		Upper: q3 + k*iqr,
	}, true
}

func withinBounds(r domain.ProductRecord, bounds []domain.CleaningBounds) bool {
	for _, b := range bounds {
		v := r.Nutrients.Get(b.Column)
		if v == nil || !b.Contains(*v) {
			return false
		}
	}
	return true
}

// columnValues collects the present values of a column
func columnValues(records []domain.ProductRecord, col domain.NutrientColumn) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v := r.Nutrients.Get(col); v != nil {
			values = append(values, *v)
		}
	}
	return values
}
