package openfoodfacts

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/chococrunch/pipeline/internal/domain"
)

// Nutriment keys for the per-100g values the pipeline keeps
const (
	NutrimentEnergyKcal    = "energy-kcal_100g"
	NutrimentCarbohydrates = "carbohydrates_100g"
	NutrimentSugars        = "sugars_100g"
	NutrimentFat           = "fat_100g"
	NutrimentSaturatedFat  = "saturated-fat_100g"
	NutrimentProteins      = "proteins_100g"
	NutrimentFiber         = "fiber_100g"
	NutrimentSalt          = "salt_100g"
	NutrimentSodium        = "sodium_100g"
)

// nutrimentColumns maps catalog nutriment keys to record columns
var nutrimentColumns = map[string]domain.NutrientColumn{
	NutrimentEnergyKcal:    domain.ColumnEnergyKcal,
	NutrimentCarbohydrates: domain.ColumnCarbohydrates,
	NutrimentSugars:        domain.ColumnSugars,
	NutrimentFat:           domain.ColumnFat,
	NutrimentSaturatedFat:  domain.ColumnSaturatedFat,
	NutrimentProteins:      domain.ColumnProteins,
	NutrimentFiber:         domain.ColumnFiber,
	NutrimentSalt:          domain.ColumnSalt,
	NutrimentSodium:        domain.ColumnSodium,
}

// searchResponse is the search endpoint payload
type searchResponse struct {
	Products []Product `json:"products"`
}

// Product is one catalog entry as returned by the API.
// Numeric fields arrive as numbers or strings depending on the contributor.
type Product struct {
	Code            interface{}            `json:"code"`
	ProductName     string                 `json:"product_name"`
	Brands          string                 `json:"brands"`
	NovaGroup       interface{}            `json:"nova_group"`
	NutriscoreScore interface{}            `json:"nutriscore_score"`
	NutritionGrades string                 `json:"nutrition_grades"`
	Nutriments      map[string]interface{} `json:"nutriments"`
}

// MapToProductRecord converts a catalog product to our domain ProductRecord
func MapToProductRecord(p Product) domain.ProductRecord {
	record := domain.ProductRecord{
		ProductCode:    strings.TrimSpace(cast.ToString(p.Code)),
		ProductName:    strings.TrimSpace(p.ProductName),
		Brand:          strings.TrimSpace(p.Brands),
		Nutrients:      extractNutrients(p.Nutriments),
		NutritionScore: optionalFloat(p.NutriscoreScore),
		NutritionGrade: strings.ToLower(strings.TrimSpace(p.NutritionGrades)),
	}

	if nova := optionalFloat(p.NovaGroup); nova != nil {
		group := int(*nova)
		if float64(group) == *nova && group >= 1 && group <= 4 {
			record.NovaGroup = &group
		}
	}

	return record
}

// extractNutrients picks the tracked per-100g values out of the nutriments object
func extractNutrients(nutriments map[string]interface{}) domain.Nutrients {
	nutrients := domain.Nutrients{}

	for key, col := range nutrimentColumns {
		if v := optionalFloat(nutriments[key]); v != nil {
			nutrients = nutrients.With(col, *v)
		}
	}

	return nutrients
}

// optionalFloat converts a loosely typed JSON value, returning nil for blanks and garbage
func optionalFloat(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v = s
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
