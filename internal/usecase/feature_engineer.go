package usecase

import (
	"fmt"
	"strings"

	"github.com/chococrunch/pipeline/internal/domain"
)

// FeatureConfig holds the category cut points.
// Values below Low are Low, values above High are High; both thresholds are Moderate.
type FeatureConfig struct {
	CalorieLow  float64 // kcal per 100g
	CalorieHigh float64
	SugarLow    float64 // g per 100g
	SugarHigh   float64

	// BrandMajorOver and BrandMediumOver are exclusive occurrence counts
	BrandMajorOver  int
	BrandMediumOver int

	// BrandNormalize counts brands under a normalized key instead of the
	// trimmed brand field
	BrandNormalize bool
}

// DefaultFeatureConfig returns the standard cut points
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		CalorieLow:      250,
		CalorieHigh:     500,
		SugarLow:        10,
		SugarHigh:       25,
		BrandMajorOver:  50,
		BrandMediumOver: 10,
	}
}

// Validate checks that each threshold pair is ordered
func (c FeatureConfig) Validate() error {
	if c.CalorieLow > c.CalorieHigh {
		return fmt.Errorf("%w: calorie thresholds %v > %v", domain.ErrInvalidConfig, c.CalorieLow, c.CalorieHigh)
	}
	if c.SugarLow > c.SugarHigh {
		return fmt.Errorf("%w: sugar thresholds %v > %v", domain.ErrInvalidConfig, c.SugarLow, c.SugarHigh)
	}
	if c.BrandMediumOver > c.BrandMajorOver {
		return fmt.Errorf("%w: brand thresholds %d > %d", domain.ErrInvalidConfig, c.BrandMediumOver, c.BrandMajorOver)
	}
	return nil
}

// FeatureEngineer derives classification fields from a cleaned dataset.
// It holds no state between calls.
type FeatureEngineer struct {
	config     FeatureConfig
	normalizer *BrandNormalizer
}

// NewFeatureEngineer creates a feature engineer, rejecting unordered thresholds
func NewFeatureEngineer(config FeatureConfig) (*FeatureEngineer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &FeatureEngineer{
		config:     config,
		normalizer: NewBrandNormalizer(),
	}, nil
}

// Engineer maps every record to an EngineeredRecord. Brand sizes depend on the
// whole dataset, so results are only comparable between datasets of similar size.
func (f *FeatureEngineer) Engineer(ds domain.CleanedDataset) domain.EngineeredDataset {
	brandCounts := make(map[string]int)
	for _, r := range ds.Records {
		if key := f.brandKey(r.Brand); key != "" {
			brandCounts[key]++
		}
	}

	records := make([]domain.EngineeredRecord, len(ds.Records))
	for i, r := range ds.Records {
		calorie := Categorize(r.Nutrients.EnergyKcal, f.config.CalorieLow, f.config.CalorieHigh)
		sugar := Categorize(r.Nutrients.Sugars, f.config.SugarLow, f.config.SugarHigh)

		brandSize := domain.BrandMinor
		if key := f.brandKey(r.Brand); key != "" {
			brandSize = f.config.BrandSizeFor(brandCounts[key])
		}

		records[i] = domain.EngineeredRecord{
			ProductRecord:    r,
			CalorieCategory:  calorie,
			SugarCategory:    sugar,
			SugarToCarbRatio: SugarToCarbRatio(r.Nutrients.Sugars, r.Nutrients.Carbohydrates),
			IsUltraProcessed: r.NovaGroup != nil && *r.NovaGroup == 4,
			HealthRiskScore:  HealthRisk(calorie, sugar),
			BrandSize:        brandSize,
		}
	}

	return domain.EngineeredDataset{Records: records}
}

// brandKey returns the key a brand is counted under, "" when there is no brand
func (f *FeatureEngineer) brandKey(brand string) string {
	if f.config.BrandNormalize {
		return f.normalizer.Key(brand)
	}
	return strings.TrimSpace(brand)
}

// Categorize buckets a value: below low is Low, above high is High, otherwise Moderate.
// An absent value is never High and is reported as Low; Summarize counts such
// records as Unmeasured.
func Categorize(value *float64, low, high float64) domain.Category {
	switch {
	case value == nil || *value < low:
		return domain.CategoryLow
	case *value > high:
		return domain.CategoryHigh
	default:
		return domain.CategoryModerate
	}
}

// SugarToCarbRatio divides sugars by carbohydrates. The ratio is absent when
// carbohydrates is zero or either operand is missing.
func SugarToCarbRatio(sugars, carbohydrates *float64) *float64 {
	if sugars == nil || carbohydrates == nil || *carbohydrates == 0 {
		return nil
	}
	ratio := *sugars / *carbohydrates
	return &ratio
}

// HealthRisk combines the calorie and sugar categories
func HealthRisk(calorie, sugar domain.Category) domain.RiskLevel {
	switch {
	case calorie == domain.CategoryHigh && sugar == domain.CategoryHigh:
		return domain.RiskHigh
	case calorie != domain.CategoryHigh && sugar != domain.CategoryHigh:
		return domain.RiskLow
	default:
		return domain.RiskModerate
	}
}

// BrandSizeFor classifies a brand occurrence count
func (c FeatureConfig) BrandSizeFor(count int) domain.BrandSize {
	switch {
	case count > c.BrandMajorOver:
		return domain.BrandMajor
	case count > c.BrandMediumOver:
		return domain.BrandMedium
	default:
		return domain.BrandMinor
	}
}

// Summarize counts the derived field distribution of an engineered dataset
func Summarize(ds domain.EngineeredDataset) domain.FeatureReport {
	report := domain.FeatureReport{
		Records:         ds.Len(),
		CalorieCategory: make(map[domain.Category]int),
		SugarCategory:   make(map[domain.Category]int),
		HealthRisk:      make(map[domain.RiskLevel]int),
		BrandSize:       make(map[domain.BrandSize]int),
	}

	for _, r := range ds.Records {
		report.CalorieCategory[r.CalorieCategory]++
		report.SugarCategory[r.SugarCategory]++
		report.HealthRisk[r.HealthRiskScore]++
		report.BrandSize[r.BrandSize]++
		if r.IsUltraProcessed {
			report.UltraProcessed++
		}
		if r.SugarToCarbRatio == nil {
			report.UndefinedRatio++
		}
		if r.Nutrients.EnergyKcal == nil || r.Nutrients.Sugars == nil {
			report.Unmeasured++
		}
	}

	return report
}
