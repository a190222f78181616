package snapshot

import (
	"fmt"
	"strconv"

	"github.com/chococrunch/pipeline/internal/domain"
)

// Column names shared by every snapshot file
const (
	colProductCode    = "product_code"
	colProductName    = "product_name"
	colBrand          = "brand"
	colNovaGroup      = "nova_group"
	colNutritionScore = "nutrition_score"
	colNutritionGrade = "nutrition_grade"

	colCalorieCategory  = "calorie_category"
	colSugarCategory    = "sugar_category"
	colSugarToCarbRatio = "sugar_to_carb_ratio"
	colIsUltraProcessed = "is_ultra_processed"
	colHealthRiskScore  = "health_risk_score"
	colBrandSize        = "brand_size"
)

// productHeader is the column order of raw and cleaned snapshots
func productHeader() []string {
	header := []string{colProductCode, colProductName, colBrand}
	for _, col := range domain.NutrientColumns {
		header = append(header, string(col))
	}
	return append(header, colNovaGroup, colNutritionScore, colNutritionGrade)
}

// engineeredHeader is the column order of the engineered snapshot
func engineeredHeader() []string {
	return append(productHeader(),
		colCalorieCategory,
		colSugarCategory,
		colSugarToCarbRatio,
		colIsUltraProcessed,
		colHealthRiskScore,
		colBrandSize,
	)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func encodeProduct(r domain.ProductRecord) []string {
	row := []string{r.ProductCode, r.ProductName, r.Brand}
	for _, col := range domain.NutrientColumns {
		row = append(row, formatFloat(r.Nutrients.Get(col)))
	}
	return append(row, formatInt(r.NovaGroup), formatFloat(r.NutritionScore), r.NutritionGrade)
}

func encodeEngineered(r domain.EngineeredRecord) []string {
	return append(encodeProduct(r.ProductRecord),
		string(r.CalorieCategory),
		string(r.SugarCategory),
		formatFloat(r.SugarToCarbRatio),
		strconv.FormatBool(r.IsUltraProcessed),
		string(r.HealthRiskScore),
		string(r.BrandSize),
	)
}

// row gives named access to one CSV record
type row struct {
	index  map[string]int
	fields []string
	line   int
}

func (r row) get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

func (r row) floatField(name string) (*float64, error) {
	s := r.get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: column %s: %w", r.line, name, err)
	}
	return &v, nil
}

func (r row) intField(name string) (*int, error) {
	s := r.get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("line %d: column %s: %w", r.line, name, err)
	}
	return &v, nil
}

func decodeProduct(r row) (domain.ProductRecord, error) {
	record := domain.ProductRecord{
		ProductCode:    r.get(colProductCode),
		ProductName:    r.get(colProductName),
		Brand:          r.get(colBrand),
		NutritionGrade: r.get(colNutritionGrade),
	}

	for _, col := range domain.NutrientColumns {
		v, err := r.floatField(string(col))
		if err != nil {
			return record, err
		}
		if v != nil {
			record.Nutrients = record.Nutrients.With(col, *v)
		}
	}

	var err error
	if record.NovaGroup, err = r.intField(colNovaGroup); err != nil {
		return record, err
	}
	if record.NutritionScore, err = r.floatField(colNutritionScore); err != nil {
		return record, err
	}

	return record, nil
}

func decodeEngineered(r row) (domain.EngineeredRecord, error) {
	base, err := decodeProduct(r)
	if err != nil {
		return domain.EngineeredRecord{}, err
	}
	record := domain.EngineeredRecord{ProductRecord: base}

	var ok bool
	if record.CalorieCategory, ok = domain.ParseCategory(r.get(colCalorieCategory)); !ok {
		return record, fmt.Errorf("line %d: invalid %s %q", r.line, colCalorieCategory, r.get(colCalorieCategory))
	}
	if record.SugarCategory, ok = domain.ParseCategory(r.get(colSugarCategory)); !ok {
		return record, fmt.Errorf("line %d: invalid %s %q", r.line, colSugarCategory, r.get(colSugarCategory))
	}
	if record.HealthRiskScore, ok = domain.ParseRiskLevel(r.get(colHealthRiskScore)); !ok {
		return record, fmt.Errorf("line %d: invalid %s %q", r.line, colHealthRiskScore, r.get(colHealthRiskScore))
	}
	if record.BrandSize, ok = domain.ParseBrandSize(r.get(colBrandSize)); !ok {
		return record, fmt.Errorf("line %d: invalid %s %q", r.line, colBrandSize, r.get(colBrandSize))
	}
	if record.SugarToCarbRatio, err = r.floatField(colSugarToCarbRatio); err != nil {
		return record, err
	}
	if record.IsUltraProcessed, err = strconv.ParseBool(r.get(colIsUltraProcessed)); err != nil {
		return record, fmt.Errorf("line %d: column %s: %w", r.line, colIsUltraProcessed, err)
	}

	return record, nil
}
